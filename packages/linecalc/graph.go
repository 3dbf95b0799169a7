package linecalc

import (
	"slices"
	"sort"
)

// lineNode is one arena slot of the dependency graph, indexed by LineID
type lineNode struct {
	precedents map[LineID]struct{} // lines this line reads
	dependents map[LineID]struct{} // lines reading this line
	sheets     map[string]struct{} // folded names of sheets this line reads
	volatile   bool
}

// DependencyGraph manages line dependencies and calculation order for one
// worksheet. edges point reader -> source and are diffed in after every
// evaluation.
type DependencyGraph struct {
	nodes        []lineNode
	crossReaders map[string]map[LineID]struct{} // sheet key -> lines reading it

	// crossIndexValid is false while crossReaders may not reflect the line
	// texts, e.g. right after a source sheet was renamed
	crossIndexValid bool
	sheetsChanged   bool
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:           make([]lineNode, 1), // reserve 0 for no line
		crossReaders:    make(map[string]map[LineID]struct{}),
		crossIndexValid: true,
	}
}

func (dg *DependencyGraph) node(id LineID) *lineNode {
	for int(id) >= len(dg.nodes) {
		dg.nodes = append(dg.nodes, lineNode{})
	}
	return &dg.nodes[id]
}

func (dg *DependencyGraph) lookup(id LineID) (*lineNode, bool) {
	if id == 0 || int(id) >= len(dg.nodes) {
		return nil, false
	}
	return &dg.nodes[id], true
}

// RecordDependencies replaces the recorded reads of line with the given
// lines and sheet keys. only the difference is applied. a self-edge is
// dropped and reported as cyclic.
func (dg *DependencyGraph) RecordDependencies(line LineID, lines []LineID, sheets []string) bool {
	cyclic := false
	next := make(map[LineID]struct{}, len(lines))
	for _, source := range lines {
		if source == line {
			cyclic = true
			continue
		}
		dg.node(source) // grow the arena before taking pointers
		next[source] = struct{}{}
	}
	node := dg.node(line)

	for source := range node.precedents {
		if _, keep := next[source]; !keep {
			delete(node.precedents, source)
			if src, ok := dg.lookup(source); ok {
				delete(src.dependents, line)
			}
		}
	}
	for source := range next {
		if _, exists := node.precedents[source]; exists {
			continue
		}
		if node.precedents == nil {
			node.precedents = make(map[LineID]struct{})
		}
		node.precedents[source] = struct{}{}
		src := &dg.nodes[source]
		if src.dependents == nil {
			src.dependents = make(map[LineID]struct{})
		}
		src.dependents[line] = struct{}{}
	}

	dg.setSheets(line, sheets)
	return cyclic
}

func (dg *DependencyGraph) setSheets(line LineID, sheets []string) {
	node := dg.node(line)
	next := make(map[string]struct{}, len(sheets))
	for _, key := range sheets {
		next[key] = struct{}{}
	}
	for key := range node.sheets {
		if _, keep := next[key]; keep {
			continue
		}
		delete(node.sheets, key)
		if readers, ok := dg.crossReaders[key]; ok {
			delete(readers, line)
			if len(readers) == 0 {
				delete(dg.crossReaders, key)
			}
		}
		dg.sheetsChanged = true
	}
	for key := range next {
		if _, exists := node.sheets[key]; exists {
			continue
		}
		if node.sheets == nil {
			node.sheets = make(map[string]struct{})
		}
		node.sheets[key] = struct{}{}
		if dg.crossReaders[key] == nil {
			dg.crossReaders[key] = make(map[LineID]struct{})
		}
		dg.crossReaders[key][line] = struct{}{}
		dg.sheetsChanged = true
	}
}

// RemoveLine drops every edge of a deleted line and returns its former
// dependents
func (dg *DependencyGraph) RemoveLine(line LineID) []LineID {
	node, ok := dg.lookup(line)
	if !ok {
		return nil
	}
	dependents := sortedLineIDs(node.dependents)
	for _, dependent := range dependents {
		if dep, ok := dg.lookup(dependent); ok {
			delete(dep.precedents, line)
		}
	}
	dg.RecordDependencies(line, nil, nil)
	*node = lineNode{}
	return dependents
}

// DirectDependents returns lines directly reading this line
func (dg *DependencyGraph) DirectDependents(line LineID) []LineID {
	node, ok := dg.lookup(line)
	if !ok {
		return nil
	}
	return sortedLineIDs(node.dependents)
}

// DirectPrecedents returns lines this line directly reads
func (dg *DependencyGraph) DirectPrecedents(line LineID) []LineID {
	node, ok := dg.lookup(line)
	if !ok {
		return nil
	}
	return sortedLineIDs(node.precedents)
}

// Invalidate returns every line transitively reading line, breadth first
func (dg *DependencyGraph) Invalidate(line LineID) []LineID {
	visited := map[LineID]struct{}{line: {}}
	var result []LineID
	queue := []LineID{line}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node, ok := dg.lookup(current)
		if !ok {
			continue
		}
		for _, dependent := range sortedLineIDs(node.dependents) {
			if _, seen := visited[dependent]; seen {
				continue
			}
			visited[dependent] = struct{}{}
			result = append(result, dependent)
			queue = append(queue, dependent)
		}
	}
	return result
}

// Affected returns the seeds plus all their transitive dependents
func (dg *DependencyGraph) Affected(seeds []LineID) map[LineID]struct{} {
	affected := make(map[LineID]struct{}, len(seeds))
	queue := make([]LineID, 0, len(seeds))
	for _, seed := range seeds {
		if _, seen := affected[seed]; !seen {
			affected[seed] = struct{}{}
			queue = append(queue, seed)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node, ok := dg.lookup(current)
		if !ok {
			continue
		}
		for dependent := range node.dependents {
			if _, seen := affected[dependent]; !seen {
				affected[dependent] = struct{}{}
				queue = append(queue, dependent)
			}
		}
	}
	return affected
}

// CalculationOrder returns subset ordered so every line comes after the
// lines it reads. ties and cycles are broken by position.
func (dg *DependencyGraph) CalculationOrder(subset map[LineID]struct{}, position func(LineID) int) ([]LineID, bool) {
	roots := make([]LineID, 0, len(subset))
	for id := range subset {
		roots = append(roots, id)
	}
	sort.Slice(roots, func(i, j int) bool { return position(roots[i]) < position(roots[j]) })

	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[LineID]bool, len(subset))
	order := make([]LineID, 0, len(subset))
	hasCycle := false

	var visit func(id LineID)
	visit = func(id LineID) {
		if completed, exists := state[id]; exists {
			if !completed {
				// currently visiting - cycle detected
				hasCycle = true
			}
			return
		}

		// mark as visiting
		state[id] = false

		if node, ok := dg.lookup(id); ok {
			precedents := make([]LineID, 0, len(node.precedents))
			for precedent := range node.precedents {
				if _, in := subset[precedent]; in {
					precedents = append(precedents, precedent)
				}
			}
			sort.Slice(precedents, func(i, j int) bool { return position(precedents[i]) < position(precedents[j]) })
			for _, precedent := range precedents {
				visit(precedent)
			}
		}

		// mark as visited
		state[id] = true
		order = append(order, id)
	}

	for _, id := range roots {
		visit(id)
	}
	return order, hasCycle
}

// InCycle reports whether line can reach itself through its precedents
func (dg *DependencyGraph) InCycle(line LineID) bool {
	node, ok := dg.lookup(line)
	if !ok {
		return false
	}
	visited := make(map[LineID]struct{})
	stack := sortedLineIDs(node.precedents)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == line {
			return true
		}
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		if n, ok := dg.lookup(current); ok {
			for precedent := range n.precedents {
				stack = append(stack, precedent)
			}
		}
	}
	return false
}

// CrossSheetReaders returns the lines reading the given sheet key
func (dg *DependencyGraph) CrossSheetReaders(sheetKey string) []LineID {
	return sortedLineIDs(dg.crossReaders[sheetKey])
}

// ReferencedSheets returns the keys of all sheets read by any line
func (dg *DependencyGraph) ReferencedSheets() []string {
	keys := make([]string, 0, len(dg.crossReaders))
	for key := range dg.crossReaders {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (dg *DependencyGraph) CrossIndexValid() bool {
	return dg.crossIndexValid
}

func (dg *DependencyGraph) InvalidateCrossIndex() {
	dg.crossIndexValid = false
}

func (dg *DependencyGraph) markCrossIndexValid() {
	dg.crossIndexValid = true
}

// takeSheetsChanged reports and resets whether any line's set of read
// sheets changed since the last call
func (dg *DependencyGraph) takeSheetsChanged() bool {
	changed := dg.sheetsChanged
	dg.sheetsChanged = false
	return changed
}

// MarkVolatile marks a line as containing volatile functions
func (dg *DependencyGraph) MarkVolatile(line LineID, volatile bool) {
	if !volatile {
		if node, ok := dg.lookup(line); ok {
			node.volatile = false
		}
		return
	}
	dg.node(line).volatile = true
}

// IsVolatile checks if a line contains volatile functions
func (dg *DependencyGraph) IsVolatile(line LineID) bool {
	node, ok := dg.lookup(line)
	return ok && node.volatile
}

// VolatileLines returns all lines marked as volatile
func (dg *DependencyGraph) VolatileLines() []LineID {
	var result []LineID
	for id := range dg.nodes {
		if dg.nodes[id].volatile {
			result = append(result, LineID(id))
		}
	}
	return result
}

// EdgeCount returns the number of line to line edges
func (dg *DependencyGraph) EdgeCount() int {
	count := 0
	for i := range dg.nodes {
		count += len(dg.nodes[i].precedents)
	}
	return count
}

func sortedLineIDs(set map[LineID]struct{}) []LineID {
	ids := make([]LineID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SheetGraph aggregates cross-sheet line edges into sheet -> sheet edges,
// keyed by folded sheet names
type SheetGraph struct {
	sources map[string]map[string]struct{} // reader -> sheets it reads
	readers map[string]map[string]struct{} // source -> sheets reading it
}

func NewSheetGraph() *SheetGraph {
	return &SheetGraph{
		sources: make(map[string]map[string]struct{}),
		readers: make(map[string]map[string]struct{}),
	}
}

// SetSheetEdges replaces the outgoing edges of reader
func (sg *SheetGraph) SetSheetEdges(reader string, sources []string) {
	for source := range sg.sources[reader] {
		if readers, ok := sg.readers[source]; ok {
			delete(readers, reader)
			if len(readers) == 0 {
				delete(sg.readers, source)
			}
		}
	}
	delete(sg.sources, reader)

	for _, source := range sources {
		if source == reader {
			continue
		}
		if sg.sources[reader] == nil {
			sg.sources[reader] = make(map[string]struct{})
		}
		sg.sources[reader][source] = struct{}{}
		if sg.readers[source] == nil {
			sg.readers[source] = make(map[string]struct{})
		}
		sg.readers[source][reader] = struct{}{}
	}
}

// SheetsDependingOn returns the sheets directly reading name
func (sg *SheetGraph) SheetsDependingOn(name string) []string {
	return sortedKeys(sg.readers[name])
}

// SourcesOf returns the sheets name reads directly
func (sg *SheetGraph) SourcesOf(name string) []string {
	return sortedKeys(sg.sources[name])
}

// TransitiveDependents returns every sheet reading name directly or
// indirectly
func (sg *SheetGraph) TransitiveDependents(name string) []string {
	visited := map[string]struct{}{name: {}}
	var result []string
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, reader := range sortedKeys(sg.readers[current]) {
			if _, seen := visited[reader]; seen {
				continue
			}
			visited[reader] = struct{}{}
			result = append(result, reader)
			queue = append(queue, reader)
		}
	}
	return result
}

// TransitiveSources returns every sheet name reads directly or indirectly
func (sg *SheetGraph) TransitiveSources(name string) []string {
	visited := map[string]struct{}{name: {}}
	var result []string
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, source := range sortedKeys(sg.sources[current]) {
			if _, seen := visited[source]; seen {
				continue
			}
			visited[source] = struct{}{}
			result = append(result, source)
			queue = append(queue, source)
		}
	}
	return result
}

// TopologicalSheets orders names so sources come before their readers.
// sheet cycles are legal and broken by name order.
func (sg *SheetGraph) TopologicalSheets(names []string) []string {
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}
	roots := sortedKeys(wanted)

	state := make(map[string]bool, len(names))
	order := make([]string, 0, len(names))
	var visit func(name string)
	visit = func(name string) {
		if _, exists := state[name]; exists {
			return
		}
		state[name] = false
		for _, source := range sortedKeys(sg.sources[name]) {
			if _, in := wanted[source]; in {
				visit(source)
			}
		}
		state[name] = true
		order = append(order, name)
	}
	for _, name := range roots {
		visit(name)
	}
	return order
}

// Rename moves every edge of old to new
func (sg *SheetGraph) Rename(old, new string) {
	sources := sortedKeys(sg.sources[old])
	readers := sortedKeys(sg.readers[old])
	sg.Remove(old)
	sg.SetSheetEdges(new, sources)
	for _, reader := range readers {
		sg.SetSheetEdges(reader, append(sg.SourcesOf(reader), new))
	}
}

// Remove drops a sheet and all its edges
func (sg *SheetGraph) Remove(name string) {
	sg.SetSheetEdges(name, nil)
	for reader := range sg.readers[name] {
		delete(sg.sources[reader], name)
		if len(sg.sources[reader]) == 0 {
			delete(sg.sources, reader)
		}
	}
	delete(sg.readers, name)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
