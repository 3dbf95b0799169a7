package linecalc

// cacheEntry is one arena slot of the result cache
type cacheEntry struct {
	textID TextID
	result Result
	valid  bool
}

// ResultCache holds the last result of every line of a worksheet, keyed by
// line id and the interned id of the text it was computed from
type ResultCache struct {
	entries []cacheEntry
	size    int
}

func NewResultCache() *ResultCache {
	return &ResultCache{entries: make([]cacheEntry, 1)}
}

// Get returns the cached result if it was computed from textID
func (c *ResultCache) Get(id LineID, textID TextID) (Result, bool) {
	entry, ok := c.entry(id)
	if !ok || entry.textID != textID {
		return Result{}, false
	}
	return entry.result, true
}

// Peek returns the cached result whatever text it came from
func (c *ResultCache) Peek(id LineID) (Result, bool) {
	entry, ok := c.entry(id)
	if !ok {
		return Result{}, false
	}
	return entry.result, true
}

func (c *ResultCache) entry(id LineID) (cacheEntry, bool) {
	if id == 0 || int(id) >= len(c.entries) || !c.entries[id].valid {
		return cacheEntry{}, false
	}
	return c.entries[id], true
}

// Put stores the result of a line
func (c *ResultCache) Put(id LineID, textID TextID, result Result) {
	for int(id) >= len(c.entries) {
		c.entries = append(c.entries, cacheEntry{})
	}
	if !c.entries[id].valid {
		c.size++
	}
	c.entries[id] = cacheEntry{textID: textID, result: result, valid: true}
}

// Invalidate drops the result of a line
func (c *ResultCache) Invalidate(id LineID) {
	if id == 0 || int(id) >= len(c.entries) || !c.entries[id].valid {
		return
	}
	c.entries[id] = cacheEntry{}
	c.size--
}

// Len returns the number of cached results
func (c *ResultCache) Len() int {
	return c.size
}

func (c *ResultCache) Clear() {
	c.entries = make([]cacheEntry, 1)
	c.size = 0
}
