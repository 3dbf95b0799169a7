package linecalc

import "slices"

// Tier names a recompute strategy, cheapest first
type Tier uint8

const (
	TierClean Tier = iota
	TierSelectiveCrossSheet
	TierDependencyAware
	TierFull
)

var tierNames = map[Tier]string{
	TierClean:               "clean",
	TierSelectiveCrossSheet: "selective_cross_sheet",
	TierDependencyAware:     "dependency_aware",
	TierFull:                "full",
}

func (t Tier) String() string {
	return tierNames[t]
}

// Strategy is the recompute plan for one sheet. the set of implementations
// is closed.
type Strategy interface {
	Tier() Tier
	strategy()
}

// CleanStrategy: nothing to do
type CleanStrategy struct{}

// SelectiveCrossSheetStrategy re-evaluates the lines holding a cross-sheet
// token and whatever depends on them
type SelectiveCrossSheetStrategy struct {
	Lines []LineID
}

// DependencyAwareStrategy re-evaluates the seeds and their transitive
// dependents
type DependencyAwareStrategy struct {
	Seeds []LineID
}

// FullStrategy re-evaluates every line in order
type FullStrategy struct {
	Reason string
}

func (CleanStrategy) Tier() Tier               { return TierClean }
func (SelectiveCrossSheetStrategy) Tier() Tier { return TierSelectiveCrossSheet }
func (DependencyAwareStrategy) Tier() Tier     { return TierDependencyAware }
func (FullStrategy) Tier() Tier                { return TierFull }

func (CleanStrategy) strategy()               {}
func (SelectiveCrossSheetStrategy) strategy() {}
func (DependencyAwareStrategy) strategy()     {}
func (FullStrategy) strategy()                {}

// SheetChanges is what happened to a sheet since its last pass
type SheetChanges struct {
	HasCache          bool
	Structural        bool
	EditedLines       []LineID
	DirtyDependencies []string // keys of source sheets whose values changed
	CrossSheetLines   []LineID // lines whose text holds a cross-sheet token
	VolatileLines     []LineID
}

const (
	reasonNoCache    = "no prior results"
	reasonStructural = "structural change"
	reasonStaleIndex = "edits with a stale cross-sheet index"
)

// ClassifyRecompute picks the cheapest strategy that still yields the
// result of a full recompute. it only reads the graph.
func ClassifyRecompute(changes SheetChanges, graph *DependencyGraph) Strategy {
	edited := len(changes.EditedLines) > 0
	dirty := len(changes.DirtyDependencies) > 0

	switch {
	case !changes.HasCache:
		return FullStrategy{Reason: reasonNoCache}
	case changes.Structural:
		return FullStrategy{Reason: reasonStructural}
	case edited && !graph.CrossIndexValid():
		return FullStrategy{Reason: reasonStaleIndex}
	case !edited && !dirty:
		return CleanStrategy{}
	case !edited && !graph.CrossIndexValid():
		return SelectiveCrossSheetStrategy{Lines: slices.Clone(changes.CrossSheetLines)}
	}

	seeds := make(map[LineID]struct{}, len(changes.EditedLines))
	for _, id := range changes.EditedLines {
		seeds[id] = struct{}{}
	}
	for _, key := range changes.DirtyDependencies {
		for _, id := range graph.CrossSheetReaders(key) {
			seeds[id] = struct{}{}
		}
	}
	for _, id := range changes.VolatileLines {
		seeds[id] = struct{}{}
	}
	return DependencyAwareStrategy{Seeds: sortedLineIDs(seeds)}
}
