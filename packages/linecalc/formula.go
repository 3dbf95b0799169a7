package linecalc

import (
	"strconv"
	"strings"
)

// commentPrefix starts a comment line
const commentPrefix = ":::"

// LineKind classifies a line by its text
type LineKind uint8

const (
	LineBlank LineKind = iota
	LineComment
	LineExpression
)

// RefKind is the kind of reference token found in a line
type RefKind uint8

const (
	RefLine  RefKind = iota // LN3
	RefRange                // LN1:LN4
	RefSheet                // S.Data.LN3
)

// RefSpan locates one reference in the raw text of a line. Start and End
// are rune offsets. local references carry the ids they were bound to.
type RefSpan struct {
	Kind      RefKind
	Start     int
	End       int
	Line      int
	EndLine   int
	Target    LineID
	EndTarget LineID
	Sheet     string
}

// ParsedLine is everything derived from a line's text
type ParsedLine struct {
	Kind        LineKind
	AST         ASTNode
	Err         *LineError
	Refs        []RefSpan
	HasCrossRef bool
	Directional bool
	Volatile    bool
}

// Pure reports whether the line evaluates the same anywhere: no references,
// no directional scans, no clock
func (p ParsedLine) Pure() bool {
	return p.Kind == LineExpression && p.Err == nil && len(p.Refs) == 0 && !p.Directional && !p.Volatile
}

// ParseLine classifies and parses one line. reference spans are collected
// from the token stream, so they survive a parse error.
func ParseLine(text string, context *ParserContext) ParsedLine {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return ParsedLine{Kind: LineBlank}
	case strings.HasPrefix(trimmed, commentPrefix):
		return ParsedLine{Kind: LineComment}
	}

	parsed := ParsedLine{Kind: LineExpression}
	tokens, errs := NewLexer(text).Tokenize()
	if len(errs) > 0 {
		parsed.Err = parseError("%s", errs[0])
		return parsed
	}
	parsed.Refs = collectRefs(tokens, context)

	parser := NewParser(tokens, context)
	ast, err := parser.Parse()
	parsed.HasCrossRef = parser.hasCrossRef
	parsed.Directional = parser.directional
	parsed.Volatile = parser.volatile
	if err != nil {
		if lineErr, ok := err.(*LineError); ok {
			parsed.Err = lineErr
		} else {
			parsed.Err = parseError("%s", err.Error())
		}
		return parsed
	}
	parsed.AST = ast
	return parsed
}

func collectRefs(tokens []Token, context *ParserContext) []RefSpan {
	var refs []RefSpan
	for _, tok := range tokens {
		switch tok.Type {
		case TokenLineRef:
			line, _ := strconv.Atoi(tok.Value[2:])
			refs = append(refs, RefSpan{
				Kind:   RefLine,
				Start:  tok.Pos,
				End:    tok.End,
				Line:   line,
				Target: context.bind(line),
			})
		case TokenLineRange:
			from, to, _ := strings.Cut(tok.Value, ":")
			first, _ := strconv.Atoi(from[2:])
			last, _ := strconv.Atoi(to[2:])
			refs = append(refs, RefSpan{
				Kind:      RefRange,
				Start:     tok.Pos,
				End:       tok.End,
				Line:      first,
				EndLine:   last,
				Target:    context.bind(first),
				EndTarget: context.bind(last),
			})
		case TokenSheetRef:
			sheet, line, ok := splitSheetRef(tok.Value)
			if !ok {
				continue
			}
			refs = append(refs, RefSpan{
				Kind:  RefSheet,
				Start: tok.Pos,
				End:   tok.End,
				Line:  line,
				Sheet: sheet,
			})
		}
	}
	return refs
}

// ASTKey is the normalized text of a pure line, used as the key for
// expression deduplication
type ASTKey string

// ExpressionTable shares the parsed AST of pure lines across every sheet of
// a workbook. lines holding a reference are never interned since their
// ASTs are bound to line ids.
type ExpressionTable struct {
	astIndex  map[ASTKey]uint32  // normalized text -> expression ID
	astCache  map[uint32]ASTNode // expression ID -> parsed AST
	keys      map[uint32]ASTKey
	refCounts map[uint32]int
	nextID    uint32
}

// NewExpressionTable creates a new expression table
func NewExpressionTable() *ExpressionTable {
	return &ExpressionTable{
		astIndex:  make(map[ASTKey]uint32),
		astCache:  make(map[uint32]ASTNode),
		keys:      make(map[uint32]ASTKey),
		refCounts: make(map[uint32]int),
		nextID:    1, // 0 means not interned
	}
}

// Acquire returns the interned AST for a key and takes a reference to it
func (et *ExpressionTable) Acquire(key ASTKey) (uint32, ASTNode, bool) {
	id, exists := et.astIndex[key]
	if !exists {
		return 0, nil, false
	}
	et.refCounts[id]++
	return id, et.astCache[id], true
}

// InternExpression adds a pure AST or increments its reference count if
// the key is already present. returns the expression ID.
func (et *ExpressionTable) InternExpression(key ASTKey, ast ASTNode) uint32 {
	if id, exists := et.astIndex[key]; exists {
		et.refCounts[id]++
		return id
	}

	id := et.nextID
	et.astIndex[key] = id
	et.astCache[id] = ast
	et.keys[id] = key
	et.refCounts[id] = 1
	et.nextID++
	return id
}

// GetAST retrieves the cached AST for an expression ID
func (et *ExpressionTable) GetAST(id uint32) (ASTNode, bool) {
	ast, exists := et.astCache[id]
	return ast, exists
}

// Release drops one reference. returns true if the expression was removed.
func (et *ExpressionTable) Release(id uint32) bool {
	if _, exists := et.astCache[id]; !exists {
		return false
	}
	et.refCounts[id]--
	if et.refCounts[id] > 0 {
		return false
	}
	delete(et.astIndex, et.keys[id])
	delete(et.astCache, id)
	delete(et.keys, id)
	delete(et.refCounts, id)
	return true
}

// GetReferenceCount returns the reference count for an expression
func (et *ExpressionTable) GetReferenceCount(id uint32) int {
	return et.refCounts[id]
}

// Count returns the number of unique expressions
func (et *ExpressionTable) Count() int {
	return len(et.astIndex)
}
