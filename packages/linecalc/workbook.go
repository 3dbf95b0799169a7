package linecalc

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Workbook is an ordered set of worksheets evaluated together. it is the
// unit of concurrency: passes, previews and structural operations are
// serialized, while ApplyEdit only records and never waits for a pass.
type Workbook struct {
	id      uuid.UUID
	config  Config
	env     *Environment
	storage *Storage
	tracker *ChangeTracker
	lookup  SheetLookup
	logger  logrus.FieldLogger
	metrics *Metrics

	passMu sync.Mutex   // serializes passes, previews and structural operations
	regMu  sync.RWMutex // guards the worksheet table and line arenas

	autoMu sync.Mutex
	auto   *AutoRecompute
}

type workbookOptions struct {
	config   Config
	logger   logrus.FieldLogger
	provider RateProvider
	lookup   SheetLookup
	clock    Clock
}

// Option configures a Workbook
type Option func(*workbookOptions)

func WithConfig(cfg Config) Option {
	return func(o *workbookOptions) { o.config = cfg }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *workbookOptions) { o.logger = logger }
}

// WithRateProvider sets the live exchange rate source. without one every
// conversion uses the fallback rates.
func WithRateProvider(provider RateProvider) Option {
	return func(o *workbookOptions) { o.provider = provider }
}

// WithSheetLookup replaces the workbook's own caches as the source of
// cross-sheet values
func WithSheetLookup(lookup SheetLookup) Option {
	return func(o *workbookOptions) { o.lookup = lookup }
}

func WithClock(clock Clock) Option {
	return func(o *workbookOptions) { o.clock = clock }
}

// NewWorkbook creates an empty workbook
func NewWorkbook(opts ...Option) (*Workbook, error) {
	options := workbookOptions{config: DefaultConfig(), clock: &WallClock{}}
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.config.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	if options.logger == nil {
		logger, err := NewLogger(options.config.LogLevel)
		if err != nil {
			return nil, err
		}
		options.logger = logger
	}
	logger := options.logger.WithField("workbook", id.String())

	metrics := NewMetrics()
	units := NewUnitTable()
	env := &Environment{
		functions: NewBuiltInFunctions(options.clock, units),
		units:     units,
		currency:  NewCurrencyConverter(options.config, options.provider, logger, metrics),
		logger:    logger,
		metrics:   metrics,
	}

	wb := &Workbook{
		id:      id,
		config:  options.config,
		env:     env,
		storage: NewStorage(),
		tracker: NewChangeTracker(),
		logger:  logger,
		metrics: metrics,
	}
	wb.lookup = options.lookup
	if wb.lookup == nil {
		wb.lookup = &workbookLookup{worksheets: wb.storage.worksheets}
	}
	return wb, nil
}

func (wb *Workbook) ID() uuid.UUID {
	return wb.id
}

func (wb *Workbook) Config() Config {
	return wb.config
}

// Metrics returns the workbook's collectors
func (wb *Workbook) Metrics() *Metrics {
	return wb.metrics
}

// workbookLookup serves cross-sheet reads from the workbook's own caches
type workbookLookup struct {
	worksheets *WorksheetTable
}

func (l *workbookLookup) LineResult(sheet string, id LineID) (Result, bool) {
	ws, ok := l.worksheets.GetWorksheetByName(sheet)
	if !ok {
		return Result{}, false
	}
	return ws.cache.Peek(id)
}

func (l *workbookLookup) LineAt(sheet string, pos int) (LineID, bool) {
	ws, ok := l.worksheets.GetWorksheetByName(sheet)
	if !ok {
		return 0, false
	}
	id := ws.lineAt(pos)
	return id, id != 0
}

func validateSheetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.WithStack(NewApplicationError(InvalidArgument, "worksheet name must not be empty"))
	}
	if strings.ContainsRune(name, '\'') {
		return errors.WithStack(NewApplicationError(InvalidArgument, "worksheet name %q must not contain an apostrophe", name))
	}
	return nil
}

func (wb *Workbook) worksheet(sheet SheetID) (*Worksheet, error) {
	ws, ok := wb.storage.worksheets.GetWorksheet(sheet)
	if !ok {
		return nil, sheetNotFound(sheet)
	}
	return ws, nil
}

// AddWorksheet appends an empty worksheet
func (wb *Workbook) AddWorksheet(name string) (SheetID, error) {
	if err := validateSheetName(name); err != nil {
		return 0, err
	}

	wb.passMu.Lock()
	defer wb.passMu.Unlock()
	wb.regMu.Lock()
	defer wb.regMu.Unlock()

	if wb.storage.worksheets.Contains(name) {
		return 0, errors.WithStack(NewApplicationError(AlreadyExists, "worksheet %q already exists", name))
	}
	ws := NewWorksheet(wb.storage, name)
	id := wb.storage.worksheets.DefineWorksheet(ws)

	// lines that referenced the name before it existed must see it now
	wb.markReadersDirty(ws.key)
	wb.logger.WithField("sheet", name).Debug("worksheet added")
	return id, nil
}

// RemoveWorksheet deletes a worksheet. references to it in other sheets
// become #REF.
func (wb *Workbook) RemoveWorksheet(sheet SheetID) ([]TextRewrite, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()
	wb.applyPending()

	wb.regMu.Lock()
	defer wb.regMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return nil, err
	}

	wb.storage.worksheets.UndefineWorksheet(sheet)
	var rewrites []TextRewrite
	for _, other := range wb.storage.worksheets.All() {
		rewrites = append(rewrites, other.rewriteSheetRefs(ws.key, 0, func(RefSpan) string { return brokenRef })...)
	}
	wb.storage.sheetGraph.Remove(ws.key)
	for _, id := range ws.order {
		ws.release(ws.lines[id])
	}
	wb.tracker.Forget(sheet)
	if wb.tracker.Active() == sheet {
		wb.tracker.SetActive(0)
	}
	wb.logger.WithField("sheet", ws.name).Debug("worksheet removed")
	return rewrites, nil
}

// RenameWorksheet renames a worksheet and every reference to it
func (wb *Workbook) RenameWorksheet(sheet SheetID, name string) ([]TextRewrite, error) {
	if err := validateSheetName(name); err != nil {
		return nil, err
	}

	wb.passMu.Lock()
	defer wb.passMu.Unlock()
	wb.applyPending()

	wb.regMu.Lock()
	defer wb.regMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return nil, err
	}
	if other, exists := wb.storage.worksheets.GetWorksheetByName(name); exists && other != ws {
		return nil, errors.WithStack(NewApplicationError(AlreadyExists, "worksheet %q already exists", name))
	}

	oldKey, oldName := ws.key, ws.name
	wb.storage.worksheets.RenameWorksheet(sheet, name)
	if oldKey == ws.key {
		return nil, nil
	}
	wb.storage.sheetGraph.Rename(oldKey, ws.key)

	// a rename keeps every reference pointing at the same sheet, so the
	// rewritten lines are not edits. the readers' cross-sheet index is
	// keyed by the old name though, and has to be rebuilt.
	var rewrites []TextRewrite
	for _, other := range wb.storage.worksheets.All() {
		edited := maps.Clone(other.edited)
		changed := other.rewriteSheetRefs(oldKey, 0, func(ref RefSpan) string {
			return renderSheetRef(name, ref.Line)
		})
		for _, rewrite := range changed {
			if _, before := edited[rewrite.Line]; !before {
				delete(other.edited, rewrite.Line)
			}
		}
		if len(changed) > 0 && other != ws {
			other.graph.InvalidateCrossIndex()
		}
		rewrites = append(rewrites, changed...)
	}
	wb.markReadersDirty(ws.key)
	wb.logger.WithFields(logrus.Fields{"from": oldName, "to": name}).Debug("worksheet renamed")
	return rewrites, nil
}

// markReadersDirty queues every sheet reading key for a refresh
func (wb *Workbook) markReadersDirty(key string) {
	for _, readerKey := range wb.storage.sheetGraph.SheetsDependingOn(key) {
		if reader, ok := wb.storage.worksheets.getWorksheetByKey(readerKey); ok {
			reader.dirtyDeps[key] = struct{}{}
		}
	}
}

// Worksheets returns the ids of all worksheets in creation order
func (wb *Workbook) Worksheets() []SheetID {
	wb.regMu.RLock()
	defer wb.regMu.RUnlock()

	all := wb.storage.worksheets.All()
	ids := make([]SheetID, len(all))
	for i, ws := range all {
		ids[i] = ws.id
	}
	return ids
}

// WorksheetByName finds a worksheet, ignoring case
func (wb *Workbook) WorksheetByName(name string) (SheetID, bool) {
	wb.regMu.RLock()
	defer wb.regMu.RUnlock()

	ws, ok := wb.storage.worksheets.GetWorksheetByName(name)
	if !ok {
		return 0, false
	}
	return ws.id, true
}

func (wb *Workbook) WorksheetName(sheet SheetID) (string, error) {
	wb.regMu.RLock()
	defer wb.regMu.RUnlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return "", err
	}
	return ws.name, nil
}

// Lines returns the line ids of a sheet in display order
func (wb *Workbook) Lines(sheet SheetID) ([]LineID, error) {
	wb.regMu.RLock()
	defer wb.regMu.RUnlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return nil, err
	}
	return ws.LineIDs(), nil
}

// LineText returns the text of a line as of the last applied edit
func (wb *Workbook) LineText(sheet SheetID, line LineID) (string, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return "", err
	}
	l, ok := ws.Line(line)
	if !ok {
		return "", lineNotFound(ws.name, line)
	}
	return l.Text, nil
}

// InsertLine inserts a line at a 1-based position. references below it are
// renumbered everywhere in the workbook.
func (wb *Workbook) InsertLine(sheet SheetID, pos int, text string) (LineID, []TextRewrite, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()
	wb.applyPending()

	wb.regMu.Lock()
	defer wb.regMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return 0, nil, err
	}
	if pos < 1 || pos > ws.Len()+1 {
		return 0, nil, errors.WithStack(NewApplicationError(InvalidArgument, "position %d out of range 1..%d", pos, ws.Len()+1))
	}

	id := ws.insertLine(pos, text)
	rewrites := ws.rewriteLocalRefs()
	for _, other := range wb.storage.worksheets.All() {
		// the new text already uses the new numbering. ids are per sheet,
		// so the skip only applies to the sheet the line went into.
		skip := LineID(0)
		if other == ws {
			skip = id
		}
		rewrites = append(rewrites, other.rewriteSheetRefs(ws.key, skip, func(ref RefSpan) string {
			if ref.Line >= pos {
				return renderSheetRef(ref.Sheet, ref.Line+1)
			}
			return renderSheetRef(ref.Sheet, ref.Line)
		})...)
	}
	return id, rewrites, nil
}

// DeleteLine removes a line. references to it become #REF, references
// below it are renumbered.
func (wb *Workbook) DeleteLine(sheet SheetID, line LineID) ([]TextRewrite, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()
	wb.applyPending()

	wb.regMu.Lock()
	defer wb.regMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return nil, err
	}
	pos := ws.positionOf(line)
	if pos == 0 {
		return nil, lineNotFound(ws.name, line)
	}

	ws.deleteLine(line)
	rewrites := ws.rewriteLocalRefs()
	for _, other := range wb.storage.worksheets.All() {
		rewrites = append(rewrites, other.rewriteSheetRefs(ws.key, 0, func(ref RefSpan) string {
			switch {
			case ref.Line == pos:
				return brokenRef
			case ref.Line > pos:
				return renderSheetRef(ref.Sheet, ref.Line-1)
			}
			return renderSheetRef(ref.Sheet, ref.Line)
		})...)
	}
	return rewrites, nil
}

// SetLines replaces every line of a sheet. the returned ids are fresh.
func (wb *Workbook) SetLines(sheet SheetID, texts []string) ([]LineID, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()
	wb.applyPending()

	wb.regMu.Lock()
	defer wb.regMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return nil, err
	}

	for _, id := range ws.LineIDs() {
		ws.deleteLine(id)
	}
	ids := make([]LineID, len(texts))
	for i := range texts {
		ids[i] = ws.insertLine(i+1, "")
	}
	// texts are set once every line exists so forward references bind
	for i, text := range texts {
		ws.setText(ws.lines[ids[i]], text)
	}
	ws.structural = true
	return ids, nil
}

// ApplyEdit records new text for a line. the edit takes effect at the
// start of the next pass; a later edit of the same line replaces it.
func (wb *Workbook) ApplyEdit(sheet SheetID, line LineID, text string) (ChangeSet, error) {
	wb.regMu.RLock()
	ws, err := wb.worksheet(sheet)
	if err == nil {
		if _, ok := ws.Line(line); !ok {
			err = lineNotFound(ws.name, line)
		}
	}
	wb.regMu.RUnlock()
	if err != nil {
		return ChangeSet{}, err
	}

	changes := wb.tracker.Record(LineKey{Sheet: sheet, Line: line}, text)

	wb.autoMu.Lock()
	auto := wb.auto
	wb.autoMu.Unlock()
	if auto != nil {
		auto.Notify()
	}
	return changes, nil
}

// PendingChanges returns the edits not yet applied
func (wb *Workbook) PendingChanges() ChangeSet {
	return wb.tracker.Pending()
}

// applyPending moves recorded edits into the line texts. returns the keys
// of the sheets that changed. callers hold passMu.
func (wb *Workbook) applyPending() []string {
	edits := wb.tracker.Drain()
	if len(edits) == 0 {
		return nil
	}

	wb.regMu.RLock()
	defer wb.regMu.RUnlock()

	touched := make(map[string]struct{})
	for _, edit := range edits {
		ws, ok := wb.storage.worksheets.GetWorksheet(edit.key.Sheet)
		if !ok {
			continue
		}
		line, ok := ws.Line(edit.key.Line)
		if !ok {
			continue
		}
		if ws.setText(line, edit.text) {
			touched[ws.key] = struct{}{}
		}
	}
	return sortedKeys(touched)
}

// RunScheduledRecompute applies pending edits and recomputes the edited
// sheets and the active sheet, sources first
func (wb *Workbook) RunScheduledRecompute() (map[LineKey]Result, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()

	touched := wb.applyPending()
	visit := make(map[string]struct{})
	for _, key := range touched {
		visit[key] = struct{}{}
		if wb.config.EagerPropagation {
			for _, reader := range wb.storage.sheetGraph.TransitiveDependents(key) {
				visit[reader] = struct{}{}
			}
		}
	}
	if active, ok := wb.storage.worksheets.GetWorksheet(wb.tracker.Active()); ok {
		visit[active.key] = struct{}{}
		for _, source := range wb.storage.sheetGraph.TransitiveSources(active.key) {
			visit[source] = struct{}{}
		}
	}

	results := make(map[LineKey]Result)
	wb.recomputeSheets(context.Background(), sortedKeys(visit), results)
	return results, nil
}

// OnSheetActivated makes sheet the active sheet, refreshes the sheets it
// reads and then the sheet itself
func (wb *Workbook) OnSheetActivated(sheet SheetID) (Strategy, map[LineKey]Result, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return nil, nil, err
	}
	wb.tracker.SetActive(sheet)
	wb.applyPending()

	results := make(map[LineKey]Result)
	ctx := context.Background()
	wb.recomputeSheets(ctx, wb.storage.sheetGraph.TransitiveSources(ws.key), results)
	strategy := wb.recomputeSheet(ctx, ws, results)
	return strategy, results, nil
}

// RecomputeAll brings every sheet up to date
func (wb *Workbook) RecomputeAll() (map[LineKey]Result, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()

	wb.applyPending()
	var keys []string
	for _, ws := range wb.storage.worksheets.All() {
		keys = append(keys, ws.key)
	}
	results := make(map[LineKey]Result)
	wb.recomputeSheets(context.Background(), keys, results)
	return results, nil
}

// EvaluateLine previews text as the content of line without committing
// anything. the sheet and its sources are brought up to date first.
func (wb *Workbook) EvaluateLine(sheet SheetID, line LineID, text string) (Result, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return Result{}, err
	}
	if _, ok := ws.Line(line); !ok {
		return Result{}, lineNotFound(ws.name, line)
	}

	wb.applyPending()
	ctx := context.Background()
	results := make(map[LineKey]Result)
	wb.recomputeSheets(ctx, wb.storage.sheetGraph.TransitiveSources(ws.key), results)
	wb.recomputeSheet(ctx, ws, results)

	parsed := ParseLine(text, ws.parserContext())
	switch {
	case parsed.Kind != LineExpression:
		return Empty(), nil
	case parsed.Err != nil:
		return errorFrom(parsed.Err), nil
	}
	resolver := newPreviewResolver(ws, wb.lookup, line)
	return parsed.AST.Eval(newEvalContext(ctx, wb.env, resolver, line)), nil
}

// Result returns the cached result of a line. lines never computed are
// Empty.
func (wb *Workbook) Result(sheet SheetID, line LineID) (Result, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return Result{}, err
	}
	if _, ok := ws.Line(line); !ok {
		return Result{}, lineNotFound(ws.name, line)
	}
	result, ok := ws.cache.Peek(line)
	if !ok {
		return Empty(), nil
	}
	return result, nil
}

// Results returns the cached results of a sheet in line order
func (wb *Workbook) Results(sheet SheetID) ([]Result, error) {
	wb.passMu.Lock()
	defer wb.passMu.Unlock()

	ws, err := wb.worksheet(sheet)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, ws.Len())
	for _, id := range ws.order {
		result, ok := ws.cache.Peek(id)
		if !ok {
			result = Empty()
		}
		results = append(results, result)
	}
	return results, nil
}
