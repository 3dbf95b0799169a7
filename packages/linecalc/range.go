package linecalc

import (
	"fmt"
	"iter"
)

// scanMode decides which lines of a range feed an aggregate
type scanMode uint8

const (
	// every Number line, errors propagate
	scanExplicit scanMode = iota
	// contiguous Number lines, the first other line ends the scan
	scanContiguous
	// everything up to the nearest comment, errors propagate
	scanCommentGroup
)

// rangeLine is one line visited by a LineRange
type rangeLine struct {
	Position int
	Comment  bool
	Result   Result
}

// LineRange is a lazy run of lines of the evaluating sheet. reading a line
// through it records the dependency, exactly like a single reference.
type LineRange struct {
	ec   *EvalContext
	from int
	to   int // inclusive; 0 scans until the sheet ends
	step int
	mode scanMode
}

// explicitRange builds the range for LN<a>:LN<b>
func explicitRange(ec *EvalContext, n *LineRangeNode) (*LineRange, Result) {
	from, to := n.From.resolve(ec), n.To.resolve(ec)
	if from == 0 {
		return nil, ErrorResult(ErrorKindUnresolvedReference, "LN%d does not exist", n.From.Line)
	}
	if to == 0 {
		return nil, ErrorResult(ErrorKindUnresolvedReference, "LN%d does not exist", n.To.Line)
	}
	lo, hi := ec.resolver.PositionOf(from), ec.resolver.PositionOf(to)
	lo, hi = min(lo, hi), max(lo, hi)
	return &LineRange{ec: ec, from: lo, to: hi, step: 1, mode: scanExplicit}, Result{}
}

// directionalRange builds the range for above, below and commentgroup
func directionalRange(ec *EvalContext, n *DirectionNode) (*LineRange, Result) {
	if ec.resolver == nil {
		return nil, ErrorResult(ErrorKindUnresolvedReference, "%s needs a worksheet", n.ToString())
	}
	current := ec.resolver.PositionOf(ec.line)
	if current == 0 {
		return nil, ErrorResult(ErrorKindUnresolvedReference, "%s needs a worksheet line", n.ToString())
	}
	r := &LineRange{ec: ec, mode: scanContiguous}
	switch n.Direction {
	case DirectionAbove, DirectionCommentGroupAbove:
		r.from, r.to, r.step = current-1, 1, -1
	case DirectionBelow, DirectionCommentGroupBelow:
		r.from, r.to, r.step = current+1, 0, 1
	}
	if n.Direction == DirectionCommentGroupAbove || n.Direction == DirectionCommentGroupBelow {
		r.mode = scanCommentGroup
	}
	return r, Result{}
}

func (r *LineRange) inBounds(pos int) bool {
	if pos < 1 {
		return false
	}
	if r.to == 0 {
		return true
	}
	if r.step > 0 {
		return pos <= r.to
	}
	return pos >= r.to
}

// Iterate returns an iterator over the lines of the range
func (r *LineRange) Iterate() iter.Seq[rangeLine] {
	return func(yield func(rangeLine) bool) {
		resolver := r.ec.resolver
		for pos := r.from; r.inBounds(pos); pos += r.step {
			id := resolver.LineAt(pos)
			if id == 0 {
				return
			}
			line := rangeLine{
				Position: pos,
				Comment:  resolver.IsComment(id),
				Result:   resolver.ReadLine(id),
			}
			if !yield(line) {
				return
			}
		}
	}
}

// Numbers applies the scan mode and returns the Number lines in visiting
// order
func (r *LineRange) Numbers() ([]Result, Result) {
	var values []Result
	for line := range r.Iterate() {
		switch r.mode {
		case scanContiguous:
			if !line.Result.IsNumber() {
				return values, Result{}
			}
		case scanCommentGroup:
			if line.Comment {
				return values, Result{}
			}
			fallthrough
		default:
			if line.Result.IsError() {
				return nil, referencedValue(fmt.Sprintf("LN%d", line.Position), line.Result)
			}
			if !line.Result.IsNumber() {
				continue
			}
		}
		values = append(values, line.Result)
	}
	return values, Result{}
}

// collectNumbers expands aggregate arguments into Number results. plain
// arguments must evaluate to numbers; ranges skip what they cannot use.
func collectNumbers(ec *EvalContext, name string, args []ASTNode) ([]Result, Result) {
	var values []Result
	for _, arg := range args {
		var lr *LineRange
		var errResult Result
		switch n := arg.(type) {
		case *LineRangeNode:
			lr, errResult = explicitRange(ec, n)
		case *DirectionNode:
			lr, errResult = directionalRange(ec, n)
		default:
			v := arg.Eval(ec)
			if v.IsError() {
				return nil, v
			}
			if !v.IsNumber() {
				return nil, ErrorResult(ErrorKindInvalidArguments, "%s expects numbers, got %s", name, v.Kind)
			}
			values = append(values, v)
			continue
		}
		if errResult.IsError() {
			return nil, errResult
		}
		numbers, errResult := lr.Numbers()
		if errResult.IsError() {
			return nil, errResult
		}
		values = append(values, numbers...)
	}
	return values, Result{}
}
