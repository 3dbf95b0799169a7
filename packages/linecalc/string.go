package linecalc

import (
	"strings"
	"unicode"
)

// TextID names an interned line text. 0 is never handed out.
type TextID uint32

type textEntry struct {
	text string
	refs int
}

// StringTable interns normalized line texts. a line's TextID is part of its
// result cache key, so lines with equal text share an id and an edited line
// never hits a result computed for its old text. ids are not reused.
type StringTable struct {
	ids     map[string]TextID
	entries map[TextID]*textEntry
	last    TextID
}

func NewStringTable() *StringTable {
	return &StringTable{
		ids:     make(map[string]TextID),
		entries: make(map[TextID]*textEntry),
	}
}

// Intern returns the id of text, taking one reference to it
func (st *StringTable) Intern(text string) TextID {
	if id, ok := st.ids[text]; ok {
		st.entries[id].refs++
		return id
	}
	st.last++
	st.ids[text] = st.last
	st.entries[st.last] = &textEntry{text: text, refs: 1}
	return st.last
}

func (st *StringTable) Text(id TextID) (string, bool) {
	entry, ok := st.entries[id]
	if !ok {
		return "", false
	}
	return entry.text, true
}

// Lookup finds the id of text without taking a reference
func (st *StringTable) Lookup(text string) (TextID, bool) {
	id, ok := st.ids[text]
	return id, ok
}

// Release drops one reference. reports whether that was the last one and
// the text is gone.
func (st *StringTable) Release(id TextID) bool {
	entry, ok := st.entries[id]
	if !ok {
		return false
	}
	if entry.refs--; entry.refs > 0 {
		return false
	}
	delete(st.ids, entry.text)
	delete(st.entries, id)
	return true
}

func (st *StringTable) Refs(id TextID) int {
	if entry, ok := st.entries[id]; ok {
		return entry.refs
	}
	return 0
}

// Len is the number of distinct texts
func (st *StringTable) Len() int {
	return len(st.entries)
}

// Lines is the number of lines holding a reference
func (st *StringTable) Lines() int {
	total := 0
	for _, entry := range st.entries {
		total += entry.refs
	}
	return total
}

// Normalize trims a line and collapses whitespace runs outside string
// literals, so "1 +  2" and " 1 + 2" share an id.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	inString := false
	pendingSpace := false
	for _, r := range text {
		if r == '"' {
			inString = !inString
		}
		if !inString && unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
