package linecalc

import (
	"slices"
	"sync"
)

// ChangeSet is a snapshot of the edits waiting for the next pass
type ChangeSet struct {
	DirtyLines  map[SheetID][]LineID
	DirtySheets []SheetID
}

// pendingEdit is one recorded text, applied at the start of the next pass
type pendingEdit struct {
	key  LineKey
	text string
}

// ChangeTracker records edits between passes. it has its own lock so
// recording never waits for a running pass.
type ChangeTracker struct {
	mu      sync.Mutex
	pending map[LineKey]int // key -> index into edits
	edits   []pendingEdit
	active  SheetID
}

func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{pending: make(map[LineKey]int)}
}

// Record stores the text for a line, replacing any earlier pending text
func (t *ChangeTracker) Record(key LineKey, text string) ChangeSet {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i, exists := t.pending[key]; exists {
		t.edits[i].text = text
	} else {
		t.pending[key] = len(t.edits)
		t.edits = append(t.edits, pendingEdit{key: key, text: text})
	}
	return t.snapshot()
}

func (t *ChangeTracker) snapshot() ChangeSet {
	changes := ChangeSet{DirtyLines: make(map[SheetID][]LineID)}
	for _, edit := range t.edits {
		if _, seen := changes.DirtyLines[edit.key.Sheet]; !seen {
			changes.DirtySheets = append(changes.DirtySheets, edit.key.Sheet)
		}
		changes.DirtyLines[edit.key.Sheet] = append(changes.DirtyLines[edit.key.Sheet], edit.key.Line)
	}
	slices.Sort(changes.DirtySheets)
	return changes
}

// Pending returns the current snapshot without consuming it
func (t *ChangeTracker) Pending() ChangeSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Drain hands the pending edits over in recording order and forgets them
func (t *ChangeTracker) Drain() []pendingEdit {
	t.mu.Lock()
	defer t.mu.Unlock()

	edits := t.edits
	t.edits = nil
	clear(t.pending)
	return edits
}

// Forget drops pending edits of a sheet that no longer exists
func (t *ChangeTracker) Forget(sheet SheetID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.edits[:0]
	clear(t.pending)
	for _, edit := range t.edits {
		if edit.key.Sheet == sheet {
			continue
		}
		t.pending[edit.key] = len(kept)
		kept = append(kept, edit)
	}
	t.edits = kept
}

func (t *ChangeTracker) SetActive(sheet SheetID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = sheet
}

func (t *ChangeTracker) Active() SheetID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
