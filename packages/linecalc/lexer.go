package linecalc

import "strings"

// TokenType represents different types of tokens in a line
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenLineRef   // LN3
	TokenSheetRef  // S.Data.LN3, S.'My Sheet'.LN3
	TokenLineRange // LN1:LN5
	TokenBrokenRef // #REF
	TokenTimecode  // 01:00:00:00, 01:00:00;00
	TokenDimensions
	TokenFunction
	TokenIdentifier
	TokenRawText // unparsed argument of D(...)
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenLeftParen
	TokenRightParen
	TokenWhitespace
	TokenError
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charSemicolon  = ';'
	charCaret      = '^'
	charUnderscore = '_'
	charHash       = '#'
	charQuestion   = '?'
)

var valueTokens = []TokenType{
	TokenNumber, TokenString, TokenLineRef, TokenSheetRef, TokenBrokenRef,
	TokenTimecode, TokenDimensions,
}

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart: with(valueTokens,
		TokenUnaryPrefixOp,
		TokenFunction,
		TokenIdentifier, // pi, e
		TokenLeftParen,
	),
	StateAfterValue: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true, // for %
		TokenRightParen:     true,
		TokenComma:          true, // only if in function
		TokenIdentifier:     true, // unit suffix or "to"
		TokenEOF:            true,
	},
	StateAfterOperator: with(valueTokens,
		TokenFunction,
		TokenIdentifier,
		TokenLeftParen,
		TokenUnaryPrefixOp, // only unary after binary
	),
	StateAfterLeftParen: with(valueTokens,
		TokenLineRange, // ranges only as function arguments
		TokenFunction,
		TokenIdentifier, // above, below, commentgroup
		TokenLeftParen,
		TokenUnaryPrefixOp,
		TokenRightParen, // pi()
		TokenRawText,
	),
	StateAfterRightParen: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenIdentifier:     true, // (2+3) km
		TokenEOF:            true,
	},
	StateAfterComma: with(valueTokens,
		TokenLineRange,
		TokenFunction,
		TokenIdentifier,
		TokenLeftParen,
		TokenUnaryPrefixOp,
	),
	StateAfterIdentifier: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenIdentifier:     true, // "km to miles", "commentgroup above"
		TokenEOF:            true,
	},
	StateAfterFunction: {
		TokenLeftParen: true,
	},
	StateAfterRawText: {
		TokenRightParen: true,
	},
}

func with(base []TokenType, extra ...TokenType) map[TokenType]bool {
	m := make(map[TokenType]bool, len(base)+len(extra))
	for _, t := range base {
		m[t] = true
	}
	for _, t := range extra {
		m[t] = true
	}
	return m
}

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
	End   int // rune position one past the token
}

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterIdentifier
	StateAfterFunction
	StateAfterRawText
)

// Lexer tokenizes a single line of calculator input
type Lexer struct {
	input      string
	runes      []rune // UTF-8 aware representation
	pos        int
	state      TokenState
	parenDepth int
	callParens []bool // per open paren: does it belong to a function call
	rawNext    bool   // next '(' opens a raw argument
	tokens     []Token
	error      string
}

// NewLexer creates a new lexer for the given line text
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		runes:  []rune(input),
		state:  StateStart,
		tokens: []Token{},
	}
}

// Tokenize tokenizes the entire input and returns tokens and any error
func (l *Lexer) Tokenize() ([]Token, []string) {
	for l.pos < len(l.runes) {
		tok := l.nextToken()
		if tok.Type == TokenError {
			l.error = tok.Value
			return nil, []string{l.error}
		}
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type != TokenWhitespace {
			// validate state transition
			if !l.validateTransition(tok.Type) {
				l.error = "unexpected token: " + l.substring(tok.Pos, tok.End)
				return nil, []string{l.error}
			}
			l.tokens = append(l.tokens, tok)
			l.updateState(tok.Type)
		}
	}

	if l.parenDepth > 0 {
		l.error = "unbalanced parentheses: missing closing parenthesis"
		return nil, []string{l.error}
	}
	if !l.validateTransition(TokenEOF) {
		l.error = "unexpected end of line"
		return nil, []string{l.error}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos, End: l.pos})
	return l.tokens, nil
}

// validateTransition checks if the token type is valid in current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	validTokens, exists := tokenTransitions[l.state]
	if !exists {
		return false
	}
	return validTokens[tokenType]
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenNumber, TokenString, TokenLineRef, TokenSheetRef, TokenLineRange,
		TokenBrokenRef, TokenTimecode, TokenDimensions:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		// postfix operators don't change state
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	case TokenIdentifier:
		l.state = StateAfterIdentifier
	case TokenFunction:
		l.state = StateAfterFunction
	case TokenRawText:
		l.state = StateAfterRawText
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() Token {
	if l.rawNext && l.state == StateAfterLeftParen {
		l.rawNext = false
		return l.scanRawText()
	}

	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos, End: l.pos}
	}

	startPos := l.pos
	ch := l.current()

	if ch == charQuote {
		return l.scanString()
	}

	if l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	if ch == charQuestion {
		return l.scanDimensions(startPos)
	}

	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		l.callParens = append(l.callParens, l.state == StateAfterFunction)
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos, End: l.pos}
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenError, Value: "unexpected closing parenthesis", Pos: startPos}
		}
		l.callParens = l.callParens[:len(l.callParens)-1]
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos, End: l.pos}
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos, End: l.pos}
	case charPlus, charMinus:
		return l.scanUnaryPrefixOrBinaryOp()
	case charAsterisk, charSlash, charCaret:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos, End: l.pos}
	case charPercent:
		l.pos++
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: startPos, End: l.pos}
	case charHash:
		return l.scanBrokenRef()
	}

	if l.isAlpha(ch) || ch == charUnderscore {
		return l.scanIdentifierOrRef()
	}

	l.pos++
	return Token{Type: TokenError, Value: "unexpected character: " + string(ch), Pos: startPos}
}

// helper methods for character navigation and classification

// substring returns a substring of the original input based on rune positions
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) at(pos int) rune {
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func (l *Lexer) isIdentChar(ch rune) bool {
	return l.isAlpha(ch) || l.isDigit(ch) || ch == charUnderscore
}

// inCallArguments reports whether the innermost open paren belongs to a
// function call, where a comma always separates arguments
func (l *Lexer) inCallArguments() bool {
	return len(l.callParens) > 0 && l.callParens[len(l.callParens)-1]
}

// scanNumber scans a number token including decimals, scientific notation
// and thousands separators. timecodes and dimensions start like numbers and
// are split off here.
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	if end := l.matchTimecode(startPos); end > 0 {
		l.pos = end
		value := l.substring(startPos, end)
		return Token{Type: TokenTimecode, Value: value, Pos: startPos, End: end}
	}

	var digits strings.Builder
	intDigits := 0
	for l.isDigit(l.current()) {
		digits.WriteRune(l.current())
		intDigits++
		l.pos++
	}

	// 1,234,567 outside of call arguments
	if intDigits > 0 && intDigits <= 3 && !l.inCallArguments() {
		for l.current() == charComma && l.isDigit(l.peek(1)) && l.isDigit(l.peek(2)) &&
			l.isDigit(l.peek(3)) && !l.isDigit(l.peek(4)) {
			digits.WriteString(l.substring(l.pos+1, l.pos+4))
			l.pos += 4
		}
	}

	if l.current() == charPeriod && l.isDigit(l.peek(1)) {
		digits.WriteRune(charPeriod)
		l.pos++
		for l.isDigit(l.current()) {
			digits.WriteRune(l.current())
			l.pos++
		}
	}

	if ch := l.current(); (ch == 'x' || ch == 'X') && (l.isDigit(l.peek(1)) || l.peek(1) == charQuestion) {
		return l.scanDimensions(startPos)
	}

	// scientific notation, only when digits follow
	if ch := l.current(); ch == 'e' || ch == 'E' {
		savedPos := l.pos
		l.pos++
		sign := ""
		if l.current() == charPlus || l.current() == charMinus {
			sign = string(l.current())
			l.pos++
		}
		if !l.isDigit(l.current()) || l.isAlpha(l.peekAfterDigits()) {
			l.pos = savedPos
		} else {
			digits.WriteString("e" + sign)
			for l.isDigit(l.current()) {
				digits.WriteRune(l.current())
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: digits.String(), Pos: startPos, End: l.pos}
}

// peekAfterDigits returns the first non-digit rune at or after the cursor
func (l *Lexer) peekAfterDigits() rune {
	pos := l.pos
	for l.isDigit(l.at(pos)) {
		pos++
	}
	return l.at(pos)
}

// matchTimecode returns the end of an HH:MM:SS:FF (or ;FF) literal starting
// at start, or -1
func (l *Lexer) matchTimecode(start int) int {
	pos := start
	hourDigits := 0
	for l.isDigit(l.at(pos)) {
		pos++
		hourDigits++
	}
	if hourDigits == 0 || hourDigits > 2 {
		return -1
	}
	for group := 0; group < 3; group++ {
		sep := l.at(pos)
		if sep != charColon && !(group == 2 && sep == charSemicolon) {
			return -1
		}
		if !l.isDigit(l.at(pos+1)) || !l.isDigit(l.at(pos+2)) {
			return -1
		}
		pos += 3
	}
	if l.isDigit(l.at(pos)) {
		return -1
	}
	return pos
}

// scanDimensions scans WxH where either side may be '?'
func (l *Lexer) scanDimensions(startPos int) Token {
	l.pos = startPos
	if !l.scanDimension() {
		return Token{Type: TokenError, Value: "invalid dimensions", Pos: startPos}
	}
	if ch := l.current(); ch != 'x' && ch != 'X' {
		return Token{Type: TokenError, Value: "invalid dimensions", Pos: startPos}
	}
	l.pos++
	if !l.scanDimension() {
		return Token{Type: TokenError, Value: "invalid dimensions", Pos: startPos}
	}
	if l.isIdentChar(l.current()) {
		return Token{Type: TokenError, Value: "invalid dimensions", Pos: startPos}
	}
	value := strings.ToLower(l.substring(startPos, l.pos))
	return Token{Type: TokenDimensions, Value: value, Pos: startPos, End: l.pos}
}

func (l *Lexer) scanDimension() bool {
	if l.current() == charQuestion {
		l.pos++
		return true
	}
	if !l.isDigit(l.current()) {
		return false
	}
	for l.isDigit(l.current()) {
		l.pos++
	}
	if l.current() == charPeriod && l.isDigit(l.peek(1)) {
		l.pos++
		for l.isDigit(l.current()) {
			l.pos++
		}
	}
	return true
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				result = append(result, charQuote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Value: string(result), Pos: startPos, End: l.pos}
		}
		result = append(result, ch)
		l.pos++
	}

	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos}
}

// scanRawText consumes everything up to the matching closing paren. the
// date sub-grammar is parsed later by the D function itself.
func (l *Lexer) scanRawText() Token {
	startPos := l.pos
	depth := 0
	inString := false
	for l.pos < len(l.runes) {
		ch := l.current()
		switch {
		case ch == charQuote:
			inString = !inString
		case inString:
		case ch == charLParen:
			depth++
		case ch == charRParen:
			if depth == 0 {
				value := strings.TrimSpace(l.substring(startPos, l.pos))
				return Token{Type: TokenRawText, Value: value, Pos: startPos, End: l.pos}
			}
			depth--
		}
		l.pos++
	}
	return Token{Type: TokenError, Value: "unbalanced parentheses: missing closing parenthesis", Pos: startPos}
}

// scanBrokenRef scans the #REF marker left behind when a referenced line or
// sheet is deleted
func (l *Lexer) scanBrokenRef() Token {
	startPos := l.pos
	l.pos++
	for l.isIdentChar(l.current()) {
		l.pos++
	}
	if strings.EqualFold(l.substring(startPos, l.pos), "#REF") {
		return Token{Type: TokenBrokenRef, Value: "#REF", Pos: startPos, End: l.pos}
	}
	return Token{Type: TokenError, Value: "unexpected character: #", Pos: startPos}
}

// scanIdentifierOrRef scans identifiers, functions, line references, line
// ranges and cross-sheet references
func (l *Lexer) scanIdentifierOrRef() Token {
	startPos := l.pos

	for l.isIdentChar(l.current()) {
		l.pos++
	}

	value := l.substring(startPos, l.pos)
	lower := strings.ToLower(value)

	if (lower == "s") && l.current() == charPeriod {
		return l.scanSheetRef(startPos)
	}

	if isLineRefText(value) {
		// LN1:LN5
		if l.current() == charColon {
			savedPos := l.pos
			l.pos++
			endStart := l.pos
			for l.isIdentChar(l.current()) {
				l.pos++
			}
			if isLineRefText(l.substring(endStart, l.pos)) {
				return Token{Type: TokenLineRange, Value: l.substring(startPos, l.pos), Pos: startPos, End: l.pos}
			}
			l.pos = savedPos
		}
		return Token{Type: TokenLineRef, Value: value, Pos: startPos, End: l.pos}
	}

	if l.current() == charLParen {
		upper := strings.ToUpper(value)
		if upper == "D" {
			l.rawNext = true
		}
		return Token{Type: TokenFunction, Value: upper, Pos: startPos, End: l.pos}
	}

	return Token{Type: TokenIdentifier, Value: lower, Pos: startPos, End: l.pos}
}

// scanSheetRef scans S.<name>.LN<n> and S.'<name>'.LN<n>
func (l *Lexer) scanSheetRef(startPos int) Token {
	l.pos++ // consume '.'

	if l.current() == charApostrophe {
		l.pos++
		for l.pos < len(l.runes) && l.current() != charApostrophe {
			l.pos++
		}
		if l.pos >= len(l.runes) {
			return Token{Type: TokenError, Value: "unclosed worksheet name", Pos: startPos}
		}
		l.pos++
	} else {
		nameStart := l.pos
		for l.isIdentChar(l.current()) {
			l.pos++
		}
		if l.pos == nameStart {
			return Token{Type: TokenError, Value: "missing worksheet name in cross-sheet reference", Pos: startPos}
		}
	}

	if l.current() != charPeriod {
		return Token{Type: TokenError, Value: "expected '.' after worksheet name", Pos: startPos}
	}
	l.pos++

	refStart := l.pos
	for l.isIdentChar(l.current()) {
		l.pos++
	}
	ref := l.substring(refStart, l.pos)
	if strings.EqualFold(ref, "#REF") || (ref == "" && l.current() == charHash) {
		return Token{Type: TokenError, Value: "invalid line reference after worksheet", Pos: startPos}
	}
	if !isLineRefText(ref) {
		return Token{Type: TokenError, Value: "invalid line reference after worksheet", Pos: startPos}
	}

	return Token{Type: TokenSheetRef, Value: l.substring(startPos, l.pos), Pos: startPos, End: l.pos}
}

// scanUnaryPrefixOrBinaryOp scans + and - which can be either unary
// prefix or binary
func (l *Lexer) scanUnaryPrefixOrBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	if l.isUnaryContext() {
		return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos, End: l.pos}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos, End: l.pos}
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	switch l.state {
	case StateStart, StateAfterOperator, StateAfterLeftParen, StateAfterComma:
		return true
	default:
		return false
	}
}

// isLineRefText reports whether s is LN followed by digits (any case)
func isLineRefText(s string) bool {
	if len(s) < 3 || !strings.EqualFold(s[:2], "ln") {
		return false
	}
	for i := 2; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
