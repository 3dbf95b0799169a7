package linecalc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// AST enables dependency extraction, reference renumbering and pure-line
// interning through tree traversal rather than regex/string manipulation.
type ASTNode interface {
	Eval(ec *EvalContext) Result
	GetPosition() NodePosition
	ToString() string
}

// ParserContext binds LN references to stable line ids while parsing
type ParserContext struct {
	// LineAt returns the id of the line at a 1-based position, or 0
	LineAt func(pos int) LineID
}

func (pc *ParserContext) bind(pos int) LineID {
	if pc == nil || pc.LineAt == nil {
		return 0
	}
	return pc.LineAt(pos)
}

// Parser parses tokens into an AST
type Parser struct {
	tokens  []Token
	pos     int
	context *ParserContext

	// collected while parsing
	hasCrossRef bool
	directional bool
	volatile    bool
}

func parseError(format string, args ...any) *LineError {
	return NewLineError(ErrorKindParse, format, args...)
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) Eval(ec *EvalContext) Result {
	return Text(n.Value)
}

func (n *StringNode) GetPosition() NodePosition {
	return n.Position
}

func (n *StringNode) ToString() string {
	// escape quotes in string
	escaped := strings.ReplaceAll(n.Value, "\"", "\"\"")
	return fmt.Sprintf("\"%s\"", escaped)
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(ec *EvalContext) Result {
	return Number(n.Value)
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	return formatNumber(n.Value)
}

// ConstantNode is pi or e
type ConstantNode struct {
	Name     string
	Position NodePosition
}

func (n *ConstantNode) Eval(ec *EvalContext) Result {
	if n.Name == "pi" {
		return Number(math.Pi)
	}
	return Number(math.E)
}

func (n *ConstantNode) GetPosition() NodePosition {
	return n.Position
}

func (n *ConstantNode) ToString() string {
	return n.Name
}

// LineRefNode is LN<n>, bound to the line that sat at position n when the
// text was parsed
type LineRefNode struct {
	Target   LineID
	Line     int
	Position NodePosition
}

func (n *LineRefNode) Eval(ec *EvalContext) Result {
	target := n.resolve(ec)
	if target == 0 {
		return ErrorResult(ErrorKindUnresolvedReference, "LN%d does not exist", n.Line)
	}
	return referencedValue(fmt.Sprintf("LN%d", n.Line), ec.resolver.ReadLine(target))
}

// resolve returns the bound line, or binds late when the line did not exist
// at parse time
func (n *LineRefNode) resolve(ec *EvalContext) LineID {
	if ec.resolver == nil {
		return 0
	}
	if n.Target != 0 && ec.resolver.PositionOf(n.Target) > 0 {
		return n.Target
	}
	return ec.resolver.LineAt(n.Line)
}

func (n *LineRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *LineRefNode) ToString() string {
	return fmt.Sprintf("LN%d", n.Line)
}

// referencedValue applies the read rules shared by local and cross-sheet
// references
func referencedValue(label string, r Result) Result {
	switch r.Kind {
	case ResultError:
		return ErrorResult(ErrorKindUnresolvedReference, "%s: %s", label, r.Err.Message)
	case ResultEmpty:
		return ErrorResult(ErrorKindUnresolvedReference, "%s has no value", label)
	}
	return r
}

// SheetRefNode is S.<Sheet>.LN<n>. it resolves by name and position at
// evaluation time.
type SheetRefNode struct {
	Sheet    string
	Line     int
	Position NodePosition
}

func (n *SheetRefNode) Eval(ec *EvalContext) Result {
	if ec.resolver == nil {
		return ErrorResult(ErrorKindUnresolvedReference, "%s does not exist", n.ToString())
	}
	return referencedValue(n.ToString(), ec.resolver.ReadSheetLine(n.Sheet, n.Line))
}

func (n *SheetRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *SheetRefNode) ToString() string {
	return fmt.Sprintf("S.%s.LN%d", renderSheetName(n.Sheet), n.Line)
}

// LineRangeNode is LN<a>:LN<b>, only valid as a function argument
type LineRangeNode struct {
	From     *LineRefNode
	To       *LineRefNode
	Position NodePosition
}

func (n *LineRangeNode) Eval(ec *EvalContext) Result {
	return ErrorResult(ErrorKindInvalidArguments, "range %s can only be used as a function argument", n.ToString())
}

func (n *LineRangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *LineRangeNode) ToString() string {
	return n.From.ToString() + ":" + n.To.ToString()
}

// Direction selects the lines a directional aggregate reads
type Direction uint8

const (
	DirectionAbove Direction = iota
	DirectionBelow
	DirectionCommentGroupAbove
	DirectionCommentGroupBelow
)

var directionNames = map[Direction]string{
	DirectionAbove:             "above",
	DirectionBelow:             "below",
	DirectionCommentGroupAbove: "commentgroup above",
	DirectionCommentGroupBelow: "commentgroup below",
}

// DirectionNode is above, below or commentgroup [above|below]
type DirectionNode struct {
	Direction Direction
	Position  NodePosition
}

func (n *DirectionNode) Eval(ec *EvalContext) Result {
	return ErrorResult(ErrorKindInvalidArguments, "%s can only be used as a function argument", n.ToString())
}

func (n *DirectionNode) GetPosition() NodePosition {
	return n.Position
}

func (n *DirectionNode) ToString() string {
	return directionNames[n.Direction]
}

// TimecodeNode holds an HH:MM:SS:FF literal. outside TC it evaluates to
// text; inside TC it is a timecode at TC's frame rate.
type TimecodeNode struct {
	Text     string
	Position NodePosition
}

func (n *TimecodeNode) Eval(ec *EvalContext) Result {
	if ec.timecodeRate == nil {
		return Text(n.Text)
	}
	frames, rate, lineErr := parseTimecode(n.Text, *ec.timecodeRate)
	if lineErr != nil {
		return errorFrom(lineErr)
	}
	return Timecode(frames, rate)
}

func (n *TimecodeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *TimecodeNode) ToString() string {
	return n.Text
}

// DimensionsNode holds a WxH literal such as 1920x1080 or ?x2000
type DimensionsNode struct {
	Text     string
	Position NodePosition
}

func (n *DimensionsNode) Eval(ec *EvalContext) Result {
	return Text(n.Text)
}

func (n *DimensionsNode) GetPosition() NodePosition {
	return n.Position
}

func (n *DimensionsNode) ToString() string {
	return n.Text
}

// RawTextNode is the unparsed argument of D(...)
type RawTextNode struct {
	Text     string
	Position NodePosition
}

func (n *RawTextNode) Eval(ec *EvalContext) Result {
	return Text(n.Text)
}

func (n *RawTextNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RawTextNode) ToString() string {
	return n.Text
}

// BrokenRefNode is the #REF left behind by a deleted line or sheet
type BrokenRefNode struct {
	Position NodePosition
}

func (n *BrokenRefNode) Eval(ec *EvalContext) Result {
	return ErrorResult(ErrorKindUnresolvedReference, "#REF: referenced line no longer exists")
}

func (n *BrokenRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BrokenRefNode) ToString() string {
	return "#REF"
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(ec *EvalContext) Result {
	// propagate errors, left first
	left := n.Left.Eval(ec)
	if left.IsError() {
		return left
	}
	right := n.Right.Eval(ec)
	if right.IsError() {
		return right
	}
	return applyBinaryOp(ec.env.units, n.Op, left, right)
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	opStr := ""
	switch n.Op {
	case BinOpAdd:
		opStr = "+"
	case BinOpSubtract:
		opStr = "-"
	case BinOpMultiply:
		opStr = "*"
	case BinOpDivide:
		opStr = "/"
	case BinOpPower:
		opStr = "^"
	}
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), opStr, n.Right.ToString())
}

var binaryOpNames = map[BinaryOp]string{
	BinOpAdd:      "Addition",
	BinOpSubtract: "Subtraction",
	BinOpMultiply: "Multiplication",
	BinOpDivide:   "Division",
	BinOpPower:    "Power",
}

func applyBinaryOp(units *UnitTable, op BinaryOp, left, right Result) Result {
	switch {
	case left.Kind == ResultTimecode || right.Kind == ResultTimecode:
		return timecodeArithmetic(op, left, right)
	case left.Kind == ResultDate || right.Kind == ResultDate:
		return dateArithmetic(op, left, right)
	case left.Kind != ResultNumber || right.Kind != ResultNumber:
		return ErrorResult(ErrorKindInvalidArguments, "%s requires numeric values", binaryOpNames[op])
	}

	notice := left.Notice
	if notice == nil {
		notice = right.Notice
	}

	if left.Unit != "" || right.Unit != "" {
		return units.unitArithmetic(op, left, right).withNotice(notice)
	}

	l, r := left.Number, right.Number
	var result Result
	switch op {
	case BinOpAdd:
		result = Number(l + r)
	case BinOpSubtract:
		result = Number(l - r)
	case BinOpMultiply:
		result = Number(l * r)
	case BinOpDivide:
		if r == 0 {
			return ErrorResult(ErrorKindArithmetic, "division by zero")
		}
		result = Number(l / r)
	case BinOpPower:
		if l == 0 && r < 0 {
			return ErrorResult(ErrorKindArithmetic, "division by zero")
		}
		result = Number(math.Pow(l, r))
	default:
		return ErrorResult(ErrorKindInvalidArguments, "unknown operator")
	}
	return checkFinite(result).withNotice(notice)
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ec *EvalContext) Result {
	val := n.Operand.Eval(ec)
	if val.IsError() {
		return val
	}

	if val.Kind == ResultTimecode && n.Op != UnaryOpPercent {
		if n.Op == UnaryOpMinus {
			return Timecode(-val.Frames, val.Rate)
		}
		return val
	}
	if val.Kind != ResultNumber {
		switch n.Op {
		case UnaryOpPercent:
			return ErrorResult(ErrorKindInvalidArguments, "Percent requires a numeric value")
		case UnaryOpMinus:
			return ErrorResult(ErrorKindInvalidArguments, "Negation requires a numeric value")
		default:
			return ErrorResult(ErrorKindInvalidArguments, "Unary plus requires a numeric value")
		}
	}

	switch n.Op {
	case UnaryOpMinus:
		val.Number = -val.Number
	case UnaryOpPercent:
		val.Number = val.Number / 100.0
	}
	return val
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	opStr := ""
	switch n.Op {
	case UnaryOpPlus:
		opStr = "+"
	case UnaryOpMinus:
		opStr = "-"
	case UnaryOpPercent:
		return fmt.Sprintf("(%s%%)", n.Operand.ToString())
	}
	return fmt.Sprintf("%s%s", opStr, n.Operand.ToString())
}

// FunctionCallNode represents a function call. arguments are handed over
// unevaluated; aggregates expand ranges and TC inspects 29.97df.
type FunctionCallNode struct {
	Name     string
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) Eval(ec *EvalContext) Result {
	return ec.env.functions.Call(ec, n.Name, n.Args)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// UnitNode attaches a unit or currency to a value: 5 km, 20 eur
type UnitNode struct {
	Value    ASTNode
	Unit     string
	Position NodePosition
}

func (n *UnitNode) Eval(ec *EvalContext) Result {
	v := n.Value.Eval(ec)
	if v.IsError() {
		return v
	}
	if v.Kind != ResultNumber {
		return ErrorResult(ErrorKindInvalidArguments, "unit %s needs a number, got %s", n.Unit, v.Kind)
	}
	if v.Unit != "" {
		return ErrorResult(ErrorKindInvalidArguments, "value already has unit %s", v.Unit)
	}
	if unit, ok := ec.env.units.Lookup(n.Unit); ok {
		v.Unit = unit.Symbol
		return v
	}
	if code, ok := ec.env.currency.Lookup(n.Unit); ok {
		v.Unit = code
		return v
	}
	return ErrorResult(ErrorKindUnknownUnit, "unknown unit %q", n.Unit)
}

func (n *UnitNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnitNode) ToString() string {
	return fmt.Sprintf("(%s %s)", n.Value.ToString(), n.Unit)
}

// ConvertNode is "<expr> to <unit>"
type ConvertNode struct {
	Value    ASTNode
	Target   string
	Position NodePosition
}

func (n *ConvertNode) Eval(ec *EvalContext) Result {
	v := n.Value.Eval(ec)
	if v.IsError() {
		return v
	}
	if v.Kind != ResultNumber {
		return ErrorResult(ErrorKindInvalidArguments, "cannot convert %s to %s", v.Kind, n.Target)
	}

	units, currency := ec.env.units, ec.env.currency
	if unit, ok := units.Lookup(n.Target); ok {
		if v.Unit == "" {
			return NumberWithUnit(v.Number, unit.Symbol).withNotice(v.Notice)
		}
		if currency.IsCurrency(v.Unit) {
			return ErrorResult(ErrorKindInvalidArguments, "cannot convert currency %s to %s", v.Unit, unit.Symbol)
		}
		converted, lineErr := units.Convert(v.Number, v.Unit, unit.Symbol)
		if lineErr != nil {
			return errorFrom(lineErr)
		}
		return checkFinite(NumberWithUnit(converted, unit.Symbol)).withNotice(v.Notice)
	}

	if code, ok := currency.Lookup(n.Target); ok {
		if v.Unit == "" {
			return NumberWithUnit(v.Number, code).withNotice(v.Notice)
		}
		if !currency.IsCurrency(v.Unit) {
			return ErrorResult(ErrorKindInvalidArguments, "cannot convert %s to currency %s", v.Unit, code)
		}
		return currency.Convert(ec.ctx, v.Number, v.Unit, code)
	}

	if currency.IsCurrency(v.Unit) {
		return ErrorResult(ErrorKindUnknownCurrency, "unknown currency %q", n.Target)
	}
	return ErrorResult(ErrorKindUnknownUnit, "unknown unit %q", n.Target)
}

func (n *ConvertNode) GetPosition() NodePosition {
	return n.Position
}

func (n *ConvertNode) ToString() string {
	return fmt.Sprintf("(%s to %s)", n.Value.ToString(), n.Target)
}

// NewParser creates a new parser with the given tokens and context
func NewParser(tokens []Token, context *ParserContext) *Parser {
	return &Parser{
		tokens:  tokens,
		pos:     0,
		context: context,
	}
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 || p.tokens[0].Type == TokenEOF {
		return nil, parseError("empty expression")
	}

	node, err := p.parseConversion()
	if err != nil {
		return nil, err
	}

	// ensure we've consumed all tokens except EOF
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type != TokenEOF {
		return nil, parseError("unexpected token after expression: %s", p.tokens[p.pos].Value)
	}

	return node, nil
}

func (p *Parser) peekToken() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// parseConversion handles "<expr> to <unit>", lowest precedence
func (p *Parser) parseConversion() (ASTNode, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peekToken()
		if tok.Type != TokenIdentifier || tok.Value != "to" {
			break
		}
		p.pos++
		target := p.peekToken()
		if target.Type != TokenIdentifier {
			return nil, parseError("expected unit after 'to'")
		}
		p.pos++
		left = &ConvertNode{
			Value:    left,
			Target:   target.Value,
			Position: NodePosition{Start: left.GetPosition().Start, End: target.End},
		}
	}

	return left, nil
}

// parseAddition handles + and - (left-associative)
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseMultiplication handles * and / (left-associative)
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}

	return left, nil
}

// parseUnary handles prefix signs. they bind looser than ^, so -2^2 is
// -(2^2).
func (p *Parser) parseUnary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, parseError("unexpected end of expression")
	}

	tok := p.tokens[p.pos]

	// check for unary operators
	if tok.Type == TokenUnaryPrefixOp {
		var op UnaryOp
		switch tok.Value {
		case "+":
			op = UnaryOpPlus
		case "-":
			op = UnaryOpMinus
		default:
			return p.parsePower()
		}

		startPos := tok.Pos
		p.pos++
		operand, err := p.parseUnary() // recurse for chained unary operators
		if err != nil {
			return nil, err
		}

		return &UnaryOpNode{
			Op:       op,
			Operand:  operand,
			Position: NodePosition{Start: startPos, End: operand.GetPosition().End},
		}, nil
	}

	return p.parsePower()
}

// parsePower handles ^ (right-associative). the exponent may carry its own
// sign, so 2^-1 and 2^3^2 both parse.
func (p *Parser) parsePower() (ASTNode, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}

	// right-associative
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenBinaryOp && p.tokens[p.pos].Value == "^" {
		p.pos++
		right, err := p.parseUnary() // recursive for right-associativity
		if err != nil {
			return nil, err
		}

		return &BinaryOpNode{
			Op:       BinOpPower,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}, nil
	}

	return left, nil
}

// parsePostfix handles the percent operator and a trailing unit
func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	// check for postfix percent
	if tok := p.peekToken(); tok.Type == TokenUnaryPostfixOp && tok.Value == "%" {
		p.pos++
		node = &UnaryOpNode{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: tok.End},
		}
	}

	// 5 km, (2+3) eur
	if tok := p.peekToken(); tok.Type == TokenIdentifier && tok.Value != "to" {
		p.pos++
		node = &UnitNode{
			Value:    node,
			Unit:     tok.Value,
			Position: NodePosition{Start: node.GetPosition().Start, End: tok.End},
		}
	}

	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses)
func (p *Parser) parsePrimary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, parseError("unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	position := NodePosition{Start: tok.Pos, End: tok.End}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, parseError("invalid number: %s", tok.Value)
		}
		return &NumberNode{Value: val, Position: position}, nil

	case TokenString:
		p.pos++
		return &StringNode{Value: tok.Value, Position: position}, nil

	case TokenTimecode:
		p.pos++
		return &TimecodeNode{Text: tok.Value, Position: position}, nil

	case TokenDimensions:
		p.pos++
		return &DimensionsNode{Text: tok.Value, Position: position}, nil

	case TokenBrokenRef:
		p.pos++
		return &BrokenRefNode{Position: position}, nil

	case TokenLineRef:
		p.pos++
		return p.lineRef(tok), nil

	case TokenSheetRef:
		p.pos++
		sheet, line, ok := splitSheetRef(tok.Value)
		if !ok {
			return nil, parseError("invalid cross-sheet reference: %s", tok.Value)
		}
		p.hasCrossRef = true
		return &SheetRefNode{Sheet: sheet, Line: line, Position: position}, nil

	case TokenLineRange:
		return nil, parseError("range %s can only be used as a function argument", tok.Value)

	case TokenIdentifier:
		switch tok.Value {
		case "pi", "e":
			p.pos++
			return &ConstantNode{Name: tok.Value, Position: position}, nil
		case "above", "below", "commentgroup":
			return nil, parseError("%s can only be used as a function argument", tok.Value)
		}
		return nil, parseError("unknown identifier: %s", tok.Value)

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseConversion()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenRightParen {
			return nil, parseError("expected closing parenthesis")
		}
		p.pos++

		return node, nil

	default:
		return nil, parseError("unexpected token: %s", tok.Value)
	}
}

func (p *Parser) lineRef(tok Token) *LineRefNode {
	line, _ := strconv.Atoi(tok.Value[2:])
	return &LineRefNode{
		Target:   p.context.bind(line),
		Line:     line,
		Position: NodePosition{Start: tok.Pos, End: tok.End},
	}
}

// parseFunctionCall parses a function call
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenFunction {
		return nil, parseError("expected function name")
	}

	funcTok := p.tokens[p.pos]
	funcName := funcTok.Value
	startPos := funcTok.Pos
	p.pos++

	// expect opening parenthesis
	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenLeftParen {
		return nil, parseError("expected '(' after function name")
	}
	p.pos++

	args := []ASTNode{}

	// check for empty argument list
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRightParen {
		p.pos++
		return &FunctionCallNode{
			Name:     funcName,
			Args:     args,
			Position: NodePosition{Start: startPos, End: p.tokens[p.pos-1].End},
		}, nil
	}

	// parse arguments
	for {
		arg, err := p.parseArgument()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.pos >= len(p.tokens) {
			return nil, parseError("unexpected end in function arguments")
		}

		if p.tokens[p.pos].Type == TokenRightParen {
			p.pos++
			break
		}

		if p.tokens[p.pos].Type != TokenComma {
			return nil, parseError("expected ',' or ')' in function arguments")
		}
		p.pos++
	}

	return &FunctionCallNode{
		Name:     funcName,
		Args:     args,
		Position: NodePosition{Start: startPos, End: p.tokens[p.pos-1].End},
	}, nil
}

// parseArgument parses a function argument. ranges, directional keywords and
// raw text are only legal here.
func (p *Parser) parseArgument() (ASTNode, error) {
	tok := p.peekToken()
	position := NodePosition{Start: tok.Pos, End: tok.End}

	switch {
	case tok.Type == TokenRawText:
		p.pos++
		if strings.Contains(strings.ToLower(tok.Value), "today") {
			p.volatile = true
		}
		return &RawTextNode{Text: tok.Value, Position: position}, nil

	case tok.Type == TokenLineRange:
		p.pos++
		from, to, _ := strings.Cut(tok.Value, ":")
		fromTok := Token{Type: TokenLineRef, Value: from, Pos: tok.Pos, End: tok.Pos + len([]rune(from))}
		toTok := Token{Type: TokenLineRef, Value: to, Pos: tok.End - len([]rune(to)), End: tok.End}
		if p.isArgumentEnd() {
			return &LineRangeNode{From: p.lineRef(fromTok), To: p.lineRef(toTok), Position: position}, nil
		}
		return nil, parseError("range %s can only be used as a whole function argument", tok.Value)

	case tok.Type == TokenIdentifier && (tok.Value == "above" || tok.Value == "below"):
		p.pos++
		if !p.isArgumentEnd() {
			return nil, parseError("%s can only be used as a whole function argument", tok.Value)
		}
		p.directional = true
		dir := DirectionAbove
		if tok.Value == "below" {
			dir = DirectionBelow
		}
		return &DirectionNode{Direction: dir, Position: position}, nil

	case tok.Type == TokenIdentifier && tok.Value == "commentgroup":
		p.pos++
		dir := DirectionCommentGroupAbove
		if next := p.peekToken(); next.Type == TokenIdentifier && (next.Value == "above" || next.Value == "below") {
			p.pos++
			position.End = next.End
			if next.Value == "below" {
				dir = DirectionCommentGroupBelow
			}
		}
		if !p.isArgumentEnd() {
			return nil, parseError("commentgroup can only be used as a whole function argument")
		}
		p.directional = true
		return &DirectionNode{Direction: dir, Position: position}, nil
	}

	return p.parseConversion()
}

func (p *Parser) isArgumentEnd() bool {
	next := p.peekToken()
	return next.Type == TokenComma || next.Type == TokenRightParen
}

// splitSheetRef splits S.<name>.LN<n> and S.'<name>'.LN<n>
func splitSheetRef(value string) (string, int, bool) {
	rest := value[2:]
	var name string
	if strings.HasPrefix(rest, "'") {
		end := strings.IndexByte(rest[1:], '\'')
		if end < 0 {
			return "", 0, false
		}
		name = rest[1 : end+1]
		rest = rest[end+2:]
	} else {
		dot := strings.IndexByte(rest, '.')
		if dot < 0 {
			return "", 0, false
		}
		name = rest[:dot]
		rest = rest[dot:]
	}
	if !strings.HasPrefix(rest, ".") || !isLineRefText(rest[1:]) {
		return "", 0, false
	}
	line, err := strconv.Atoi(rest[3:])
	if err != nil {
		return "", 0, false
	}
	return name, line, true
}
