package linecalc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// CalculationStack tracks the lines being evaluated in one pass
type CalculationStack struct {
	items      []LineID            // stack of lines being evaluated
	processing map[LineID]int      // line -> index in items (cycle detection)
	completed  map[LineID]struct{} // already settled in this pass
}

// NewCalculationStack creates a new calculation stack
func NewCalculationStack() *CalculationStack {
	return &CalculationStack{
		items:      make([]LineID, 0),
		processing: make(map[LineID]int),
		completed:  make(map[LineID]struct{}),
	}
}

// push adds a line to the stack
func (cs *CalculationStack) push(id LineID) {
	cs.processing[id] = len(cs.items)
	cs.items = append(cs.items, id)
}

// pop removes and returns the top line from the stack
func (cs *CalculationStack) pop() (LineID, bool) {
	if len(cs.items) == 0 {
		return 0, false
	}
	id := cs.items[len(cs.items)-1]
	cs.items = cs.items[:len(cs.items)-1]
	delete(cs.processing, id)
	return id, true
}

// isProcessing checks if a line is currently being evaluated
func (cs *CalculationStack) isProcessing(id LineID) bool {
	_, exists := cs.processing[id]
	return exists
}

// above returns id and every line pushed after it
func (cs *CalculationStack) above(id LineID) []LineID {
	index, exists := cs.processing[id]
	if !exists {
		return nil
	}
	return cs.items[index:]
}

// markCompleted marks a line as settled for this pass
func (cs *CalculationStack) markCompleted(id LineID) {
	cs.completed[id] = struct{}{}
}

// isCompleted checks if a line has been settled
func (cs *CalculationStack) isCompleted(id LineID) bool {
	_, exists := cs.completed[id]
	return exists
}

// readSet collects what one evaluation read, in first-read order
type readSet struct {
	lines     []LineID
	seenLines map[LineID]struct{}
	sheets    []string
	seenSheet map[string]struct{}
}

func newReadSet() *readSet {
	return &readSet{
		seenLines: make(map[LineID]struct{}),
		seenSheet: make(map[string]struct{}),
	}
}

func (rs *readSet) addLine(id LineID) {
	if _, seen := rs.seenLines[id]; !seen {
		rs.seenLines[id] = struct{}{}
		rs.lines = append(rs.lines, id)
	}
}

func (rs *readSet) addSheet(key string) {
	if _, seen := rs.seenSheet[key]; !seen {
		rs.seenSheet[key] = struct{}{}
		rs.sheets = append(rs.sheets, key)
	}
}

// pass is one recompute of one worksheet. it is the Resolver its lines
// evaluate against: every read is recorded as a dependency and pending
// lines are evaluated on demand.
type pass struct {
	ctx    context.Context
	ws     *Worksheet
	env    *Environment
	lookup SheetLookup

	full    bool
	loops   bool
	seeds   map[LineID]struct{}
	pending map[LineID]struct{}
	stack   *CalculationStack
	reads   []*readSet

	cyclic    map[LineID]struct{}
	changed   map[LineID]struct{}
	evaluated []LineID
	cacheHits int
}

func newPass(ctx context.Context, ws *Worksheet, env *Environment, lookup SheetLookup) *pass {
	return &pass{
		ctx:     ctx,
		ws:      ws,
		env:     env,
		lookup:  lookup,
		seeds:   make(map[LineID]struct{}),
		pending: make(map[LineID]struct{}),
		stack:   NewCalculationStack(),
		cyclic:  make(map[LineID]struct{}),
		changed: make(map[LineID]struct{}),
	}
}

// plan fills seeds and pending for a strategy and returns the visiting
// order
func (p *pass) plan(strategy Strategy) []LineID {
	var seeds []LineID
	switch s := strategy.(type) {
	case FullStrategy:
		p.full = true
		order := p.ws.LineIDs()
		for _, id := range order {
			p.pending[id] = struct{}{}
		}
		return order
	case SelectiveCrossSheetStrategy:
		seeds = s.Lines
	case DependencyAwareStrategy:
		seeds = s.Seeds
	default:
		return nil
	}

	live := make([]LineID, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := p.ws.Line(id); ok {
			p.seeds[id] = struct{}{}
			live = append(live, id)
		}
	}
	for id := range p.ws.graph.Affected(live) {
		if _, ok := p.ws.Line(id); ok {
			p.pending[id] = struct{}{}
		}
	}
	order, loops := p.ws.graph.CalculationOrder(p.pending, p.ws.positionOf)
	p.loops = loops
	return order
}

// ensure settles a line for this pass and returns its result
func (p *pass) ensure(id LineID) Result {
	if p.stack.isProcessing(id) {
		p.markCycle(id)
		return ErrorResult(ErrorKindCircularReference, "circular reference through LN%d", p.ws.positionOf(id))
	}

	cached, hasCache := p.ws.cache.Peek(id)
	_, pending := p.pending[id]
	if p.stack.isCompleted(id) || (!pending && hasCache) {
		return cached
	}
	if pending && !p.needsEvaluation(id) {
		p.stack.markCompleted(id)
		p.cacheHits++
		return cached
	}
	return p.evaluate(id)
}

// needsEvaluation decides whether a pending line must run again. the check
// only looks one level up: a precedent that is still pending gets the
// benefit of the doubt.
func (p *pass) needsEvaluation(id LineID) bool {
	if p.full {
		return true
	}
	if _, seed := p.seeds[id]; seed {
		return true
	}
	line, ok := p.ws.Line(id)
	if !ok {
		return false
	}
	if _, cached := p.ws.cache.Get(id, line.textID); !cached {
		return true
	}
	node, ok := p.ws.graph.lookup(id)
	if !ok {
		return false
	}
	for precedent := range node.precedents {
		if _, changed := p.changed[precedent]; changed {
			return true
		}
		if _, pending := p.pending[precedent]; pending && !p.stack.isCompleted(precedent) {
			return true
		}
	}
	return false
}

// markCycle marks every line on the stack from target upward as a member
// of a cycle
func (p *pass) markCycle(target LineID) {
	for _, id := range p.stack.above(target) {
		p.cyclic[id] = struct{}{}
	}
}

func (p *pass) evaluate(id LineID) Result {
	line, ok := p.ws.Line(id)
	if !ok {
		return Empty()
	}

	p.stack.push(id)
	reads := newReadSet()
	p.reads = append(p.reads, reads)
	result := p.evalLine(line)
	p.reads = p.reads[:len(p.reads)-1]
	p.stack.pop()

	cycle := p.ws.graph.RecordDependencies(id, reads.lines, reads.sheets)
	// a loop closed through a cached line never reaches the stack
	if !cycle && p.loops {
		cycle = p.ws.graph.InCycle(id)
	}
	if _, member := p.cyclic[id]; member || cycle {
		result = ErrorResult(ErrorKindCircularReference, "LN%d is part of a circular reference", p.ws.positionOf(id))
	}
	p.stack.markCompleted(id)

	if old, had := p.ws.cache.Peek(id); !had || !old.Equal(result) {
		p.changed[id] = struct{}{}
	}
	p.ws.cache.Put(id, line.textID, result)
	p.evaluated = append(p.evaluated, id)
	return result
}

func (p *pass) evalLine(line *Line) Result {
	switch {
	case line.Kind != LineExpression:
		return Empty()
	case line.Err != nil:
		return errorFrom(line.Err)
	}
	return line.AST.Eval(newEvalContext(p.ctx, p.env, p, line.ID))
}

func (p *pass) currentReads() *readSet {
	if len(p.reads) == 0 {
		return nil
	}
	return p.reads[len(p.reads)-1]
}

func (p *pass) ReadLine(id LineID) Result {
	if reads := p.currentReads(); reads != nil {
		reads.addLine(id)
	}
	return p.ensure(id)
}

func (p *pass) LineAt(pos int) LineID {
	return p.ws.lineAt(pos)
}

func (p *pass) PositionOf(id LineID) int {
	return p.ws.positionOf(id)
}

func (p *pass) IsComment(id LineID) bool {
	return p.ws.isComment(id)
}

func (p *pass) ReadSheetLine(sheet string, pos int) Result {
	key := foldName(sheet)
	if key == p.ws.key {
		id := p.ws.lineAt(pos)
		if id == 0 {
			return ErrorResult(ErrorKindUnresolvedReference, "line %d does not exist", pos)
		}
		return p.ReadLine(id)
	}
	if reads := p.currentReads(); reads != nil {
		reads.addSheet(key)
	}
	return readForeignLine(p.lookup, sheet, pos)
}

// readForeignLine reads a settled line of another sheet through lookup
func readForeignLine(lookup SheetLookup, sheet string, pos int) Result {
	id, ok := lookup.LineAt(sheet, pos)
	if !ok {
		return ErrorResult(ErrorKindUnresolvedReference, "worksheet %q has no line %d", sheet, pos)
	}
	result, ok := lookup.LineResult(sheet, id)
	if !ok {
		return Empty()
	}
	return result
}

// recomputeSheet classifies and runs one pass over ws, adding the results
// of every evaluated line to results
func (wb *Workbook) recomputeSheet(ctx context.Context, ws *Worksheet, results map[LineKey]Result) Strategy {
	start := time.Now()
	strategy := ClassifyRecompute(ws.changes(), ws.graph)
	tier := strategy.Tier().String()
	wb.metrics.recomputePasses.WithLabelValues(tier).Inc()
	if strategy.Tier() == TierClean {
		return strategy
	}

	p := newPass(ctx, ws, wb.env, wb.lookup)
	for _, id := range p.plan(strategy) {
		p.ensure(id)
	}

	ws.clearChanges()
	ws.computed = true
	switch strategy.Tier() {
	case TierFull, TierSelectiveCrossSheet:
		ws.graph.markCrossIndexValid()
	}
	if ws.graph.takeSheetsChanged() || p.full {
		wb.storage.sheetGraph.SetSheetEdges(ws.key, ws.graph.ReferencedSheets())
	}
	if len(p.changed) > 0 {
		for _, readerKey := range wb.storage.sheetGraph.SheetsDependingOn(ws.key) {
			if reader, ok := wb.storage.worksheets.getWorksheetByKey(readerKey); ok {
				reader.dirtyDeps[ws.key] = struct{}{}
			}
		}
	}

	for _, id := range p.evaluated {
		result, _ := ws.cache.Peek(id)
		results[LineKey{Sheet: ws.id, Line: id}] = result
	}

	wb.metrics.lineEvaluations.WithLabelValues(tier).Add(float64(len(p.evaluated)))
	wb.metrics.cacheHits.Add(float64(p.cacheHits))
	wb.metrics.recomputeDuration.Observe(time.Since(start).Seconds())
	wb.logger.WithFields(logrus.Fields{
		"sheet":     ws.name,
		"tier":      tier,
		"evaluated": len(p.evaluated),
		"changed":   len(p.changed),
	}).Debug("recompute pass")
	return strategy
}

// recomputeSheets runs a pass over every sheet keyed in keys, sources
// before readers. sheet edges are only known after a sheet's first pass, so
// readers left dirty by a later source get another round. the round limit
// stops sheets that read each other.
func (wb *Workbook) recomputeSheets(ctx context.Context, keys []string, results map[LineKey]Result) {
	for round := 0; round <= len(keys) && len(keys) > 0; round++ {
		for _, key := range wb.storage.sheetGraph.TopologicalSheets(keys) {
			if ws, ok := wb.storage.worksheets.getWorksheetByKey(key); ok {
				wb.recomputeSheet(ctx, ws, results)
			}
		}

		var dirty []string
		for _, key := range keys {
			if ws, ok := wb.storage.worksheets.getWorksheetByKey(key); ok && len(ws.dirtyDeps) > 0 {
				dirty = append(dirty, key)
			}
		}
		keys = dirty
	}
}

// previewResolver evaluates a line without touching the graph or cache.
// the line itself and everything reading it are off limits.
type previewResolver struct {
	ws      *Worksheet
	lookup  SheetLookup
	blocked map[LineID]struct{}
}

func newPreviewResolver(ws *Worksheet, lookup SheetLookup, line LineID) *previewResolver {
	blocked := map[LineID]struct{}{line: {}}
	for _, id := range ws.graph.Invalidate(line) {
		blocked[id] = struct{}{}
	}
	return &previewResolver{ws: ws, lookup: lookup, blocked: blocked}
}

func (r *previewResolver) ReadLine(id LineID) Result {
	if _, blocked := r.blocked[id]; blocked {
		return ErrorResult(ErrorKindCircularReference, "circular reference through LN%d", r.ws.positionOf(id))
	}
	result, ok := r.ws.cache.Peek(id)
	if !ok {
		return Empty()
	}
	return result
}

func (r *previewResolver) LineAt(pos int) LineID {
	return r.ws.lineAt(pos)
}

func (r *previewResolver) PositionOf(id LineID) int {
	return r.ws.positionOf(id)
}

func (r *previewResolver) IsComment(id LineID) bool {
	return r.ws.isComment(id)
}

func (r *previewResolver) ReadSheetLine(sheet string, pos int) Result {
	if foldName(sheet) == r.ws.key {
		id := r.ws.lineAt(pos)
		if id == 0 {
			return ErrorResult(ErrorKindUnresolvedReference, "line %d does not exist", pos)
		}
		return r.ReadLine(id)
	}
	return readForeignLine(r.lookup, sheet, pos)
}
