package linecalc

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// SheetID identifies a worksheet for the lifetime of a workbook
type SheetID uint32

// LineID identifies a line within its worksheet. ids are never reused, 0
// means no line.
type LineID uint32

// LineKey addresses a line across the workbook
type LineKey struct {
	Sheet SheetID
	Line  LineID
}

func (k LineKey) String() string {
	return fmt.Sprintf("%d:%d", k.Sheet, k.Line)
}

// foldName is the case-insensitive key of a worksheet name
func foldName(name string) string {
	return cases.Fold().String(name)
}

// WorksheetTable manages worksheet storage and name/ID mappings. names are
// matched case-insensitively.
type WorksheetTable struct {
	nameToID   map[string]SheetID // folded name -> ID
	worksheets map[SheetID]*Worksheet
	order      []SheetID // creation order
	nextID     SheetID
}

// NewWorksheetTable creates a new worksheet table
func NewWorksheetTable() *WorksheetTable {
	return &WorksheetTable{
		nameToID:   make(map[string]SheetID),
		worksheets: make(map[SheetID]*Worksheet),
		nextID:     1, // start at 1, reserve 0 for no worksheet
	}
}

// DefineWorksheet registers a worksheet under its name and returns its ID
func (wt *WorksheetTable) DefineWorksheet(worksheet *Worksheet) SheetID {
	id := wt.nextID
	wt.nextID++
	worksheet.id = id
	wt.nameToID[worksheet.key] = id
	wt.worksheets[id] = worksheet
	wt.order = append(wt.order, id)
	return id
}

// UndefineWorksheet removes a worksheet. returns false if it did not exist.
func (wt *WorksheetTable) UndefineWorksheet(id SheetID) bool {
	worksheet, exists := wt.worksheets[id]
	if !exists {
		return false
	}
	delete(wt.nameToID, worksheet.key)
	delete(wt.worksheets, id)
	wt.order = slices.DeleteFunc(wt.order, func(other SheetID) bool { return other == id })
	return true
}

// RenameWorksheet moves a worksheet to a new name
func (wt *WorksheetTable) RenameWorksheet(id SheetID, name string) bool {
	worksheet, exists := wt.worksheets[id]
	if !exists {
		return false
	}
	delete(wt.nameToID, worksheet.key)
	worksheet.name = name
	worksheet.key = foldName(name)
	wt.nameToID[worksheet.key] = id
	return true
}

// GetWorksheet retrieves a worksheet by ID
func (wt *WorksheetTable) GetWorksheet(id SheetID) (*Worksheet, bool) {
	worksheet, exists := wt.worksheets[id]
	return worksheet, exists
}

// GetWorksheetByName retrieves a worksheet by name, ignoring case
func (wt *WorksheetTable) GetWorksheetByName(name string) (*Worksheet, bool) {
	return wt.getWorksheetByKey(foldName(name))
}

func (wt *WorksheetTable) getWorksheetByKey(key string) (*Worksheet, bool) {
	id, exists := wt.nameToID[key]
	if !exists {
		return nil, false
	}
	return wt.worksheets[id], true
}

// Contains checks if a worksheet name is taken, ignoring case
func (wt *WorksheetTable) Contains(name string) bool {
	_, exists := wt.nameToID[foldName(name)]
	return exists
}

// All returns the worksheets in creation order
func (wt *WorksheetTable) All() []*Worksheet {
	result := make([]*Worksheet, 0, len(wt.order))
	for _, id := range wt.order {
		result = append(result, wt.worksheets[id])
	}
	return result
}

// Count returns the number of worksheets
func (wt *WorksheetTable) Count() int {
	return len(wt.worksheets)
}

// Line is one line of a worksheet: its text and everything parsed from it
type Line struct {
	ID     LineID
	Text   string
	textID TextID // interned normalized text, part of the cache key
	exprID uint32 // shared pure AST, 0 when the line owns its AST
	ParsedLine
}

// Worksheet is an ordered list of lines with its own dependency graph and
// result cache.
//
// architecture:
// - lines live in an arena indexed by LineID; a deleted slot stays nil
// - order maps positions to ids, positions maps ids back to positions
// - change state accumulates between recompute passes
type Worksheet struct {
	id      SheetID
	name    string
	key     string
	storage *Storage

	lines     []*Line
	order     []LineID
	positions []int // LineID -> 1-based position, 0 once deleted

	graph *DependencyGraph
	cache *ResultCache

	// change state, consumed by the next pass
	edited     map[LineID]struct{}
	structural bool
	dirtyDeps  map[string]struct{}
	computed   bool // a pass has filled the cache
}

// NewWorksheet creates an empty worksheet backed by the shared tables in
// storage
func NewWorksheet(storage *Storage, name string) *Worksheet {
	return &Worksheet{
		name:      name,
		key:       foldName(name),
		storage:   storage,
		lines:     make([]*Line, 1), // reserve 0 for no line
		positions: make([]int, 1),
		graph:     NewDependencyGraph(),
		cache:     NewResultCache(),
		edited:    make(map[LineID]struct{}),
		dirtyDeps: make(map[string]struct{}),
	}
}

func (w *Worksheet) ID() SheetID {
	return w.id
}

func (w *Worksheet) Name() string {
	return w.name
}

// Len returns the number of lines
func (w *Worksheet) Len() int {
	return len(w.order)
}

// LineIDs returns the line ids in display order
func (w *Worksheet) LineIDs() []LineID {
	return slices.Clone(w.order)
}

// Line returns a live line by id
func (w *Worksheet) Line(id LineID) (*Line, bool) {
	if id == 0 || int(id) >= len(w.lines) || w.lines[id] == nil {
		return nil, false
	}
	return w.lines[id], true
}

// lineAt returns the id at a 1-based position, or 0
func (w *Worksheet) lineAt(pos int) LineID {
	if pos < 1 || pos > len(w.order) {
		return 0
	}
	return w.order[pos-1]
}

// positionOf returns the 1-based position of a line, or 0 once deleted
func (w *Worksheet) positionOf(id LineID) int {
	if id == 0 || int(id) >= len(w.positions) {
		return 0
	}
	return w.positions[id]
}

func (w *Worksheet) isComment(id LineID) bool {
	line, ok := w.Line(id)
	return ok && line.Kind == LineComment
}

func (w *Worksheet) parserContext() *ParserContext {
	return &ParserContext{LineAt: w.lineAt}
}

// insertLine places a new line at pos, shifting the lines below it down
func (w *Worksheet) insertLine(pos int, text string) LineID {
	id := LineID(len(w.lines))
	line := &Line{ID: id}
	w.lines = append(w.lines, line)
	w.positions = append(w.positions, 0)
	w.order = slices.Insert(w.order, pos-1, id)
	w.reindex(pos)
	w.setText(line, text)
	w.structural = true
	return id
}

// deleteLine removes a line and returns the lines that read it
func (w *Worksheet) deleteLine(id LineID) []LineID {
	line, ok := w.Line(id)
	if !ok {
		return nil
	}
	pos := w.positions[id]
	w.release(line)
	w.lines[id] = nil
	w.positions[id] = 0
	w.order = slices.Delete(w.order, pos-1, pos)
	w.reindex(pos)
	w.cache.Invalidate(id)
	delete(w.edited, id)
	w.structural = true
	return w.graph.RemoveLine(id)
}

// reindex refreshes positions from pos to the end
func (w *Worksheet) reindex(pos int) {
	for i := max(pos-1, 0); i < len(w.order); i++ {
		w.positions[w.order[i]] = i + 1
	}
}

// setText replaces the text of a line and reparses it. returns false when
// the text did not change.
func (w *Worksheet) setText(line *Line, text string) bool {
	if line.textID != 0 && line.Text == text {
		return false
	}
	w.release(line)
	line.Text = text

	normalized := Normalize(text)
	line.textID = w.storage.strings.Intern(normalized)

	key := ASTKey(normalized)
	if id, ast, ok := w.storage.expressions.Acquire(key); ok {
		line.exprID = id
		line.ParsedLine = ParsedLine{Kind: LineExpression, AST: ast}
	} else {
		line.ParsedLine = ParseLine(text, w.parserContext())
		if line.Pure() {
			line.exprID = w.storage.expressions.InternExpression(key, line.AST)
		}
	}

	w.graph.MarkVolatile(line.ID, line.Volatile)
	w.edited[line.ID] = struct{}{}
	return true
}

// release drops the interned text and expression of a line
func (w *Worksheet) release(line *Line) {
	if line.textID != 0 {
		w.storage.strings.Release(line.textID)
		line.textID = 0
	}
	if line.exprID != 0 {
		w.storage.expressions.Release(line.exprID)
		line.exprID = 0
	}
}

// hasEdits reports whether any line text changed since the last pass
func (w *Worksheet) hasEdits() bool {
	return len(w.edited) > 0
}

// isClean reports whether the last pass still covers every line
func (w *Worksheet) isClean() bool {
	return w.computed && !w.structural && !w.hasEdits() && len(w.dirtyDeps) == 0
}

// changes snapshots the change state for classification. a clean sheet
// classifies as clean without scanning its lines.
func (w *Worksheet) changes() SheetChanges {
	changes := SheetChanges{
		HasCache:   w.computed,
		Structural: w.structural,
	}
	if w.isClean() {
		return changes
	}
	for id := range w.edited {
		if _, ok := w.Line(id); ok {
			changes.EditedLines = append(changes.EditedLines, id)
		}
	}
	slices.Sort(changes.EditedLines)
	changes.DirtyDependencies = sortedKeys(w.dirtyDeps)
	for _, id := range w.order {
		if w.lines[id].HasCrossRef {
			changes.CrossSheetLines = append(changes.CrossSheetLines, id)
		}
	}
	changes.VolatileLines = w.graph.VolatileLines()
	return changes
}

func (w *Worksheet) clearChanges() {
	clear(w.edited)
	clear(w.dirtyDeps)
	w.structural = false
}

// TextRewrite is a line text changed by a structural operation, for the
// host to apply to its editor
type TextRewrite struct {
	Sheet SheetID
	Line  LineID
	Text  string
}

// rewriteLocalRefs re-renders every local reference of the sheet from the
// current position of its bound line. a deleted target becomes #REF.
func (w *Worksheet) rewriteLocalRefs() []TextRewrite {
	return w.rewriteRefs(0, func(ref RefSpan) (string, bool) {
		switch ref.Kind {
		case RefLine:
			if ref.Target == 0 {
				return "", false
			}
			pos := w.positionOf(ref.Target)
			if pos == 0 {
				return brokenRef, true
			}
			return fmt.Sprintf("LN%d", pos), true
		case RefRange:
			if ref.Target == 0 || ref.EndTarget == 0 {
				return "", false
			}
			from, to := w.positionOf(ref.Target), w.positionOf(ref.EndTarget)
			if from == 0 || to == 0 {
				return brokenRef, true
			}
			return fmt.Sprintf("LN%d:LN%d", from, to), true
		}
		return "", false
	})
}

// rewriteSheetRefs re-renders the references of this sheet to the sheet
// keyed source. render returns the new text of one reference. skip names a
// line to leave alone, or 0.
func (w *Worksheet) rewriteSheetRefs(source string, skip LineID, render func(ref RefSpan) string) []TextRewrite {
	return w.rewriteRefs(skip, func(ref RefSpan) (string, bool) {
		if ref.Kind != RefSheet || foldName(ref.Sheet) != source {
			return "", false
		}
		return render(ref), true
	})
}

// rewriteRefs applies replace to the reference spans of every line and
// stores the texts that changed beyond letter case
func (w *Worksheet) rewriteRefs(skip LineID, replace func(ref RefSpan) (string, bool)) []TextRewrite {
	var rewrites []TextRewrite
	for _, id := range w.order {
		line := w.lines[id]
		if id == skip || len(line.Refs) == 0 {
			continue
		}
		text := spliceRefs(line.Text, line.Refs, replace)
		if strings.EqualFold(text, line.Text) {
			continue
		}
		w.setText(line, text)
		rewrites = append(rewrites, TextRewrite{Sheet: w.id, Line: id, Text: text})
	}
	return rewrites
}

const brokenRef = "#REF"

func spliceRefs(text string, refs []RefSpan, replace func(ref RefSpan) (string, bool)) string {
	runes := []rune(text)
	var b strings.Builder
	last := 0
	for _, ref := range refs {
		replacement, ok := replace(ref)
		if !ok {
			continue
		}
		b.WriteString(string(runes[last:ref.Start]))
		b.WriteString(replacement)
		last = ref.End
	}
	b.WriteString(string(runes[last:]))
	return b.String()
}

func renderSheetRef(sheet string, line int) string {
	return fmt.Sprintf("S.%s.LN%d", renderSheetName(sheet), line)
}
