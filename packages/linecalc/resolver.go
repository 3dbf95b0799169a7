package linecalc

import (
	"context"
	"regexp"

	"github.com/sirupsen/logrus"
)

// Resolver gives an evaluating line access to other lines. every read is a
// dependency; implementations record it.
type Resolver interface {
	// ReadLine returns the current result of a line of the same sheet,
	// evaluating it first when it is pending
	ReadLine(id LineID) Result
	// LineAt returns the id at a 1-based position, or 0
	LineAt(pos int) LineID
	// PositionOf returns the 1-based position of a line, or 0 once deleted
	PositionOf(id LineID) int
	IsComment(id LineID) bool
	// ReadSheetLine reads line pos of another sheet by name
	ReadSheetLine(sheet string, pos int) Result
}

// SheetLookup is the cross-sheet view a workbook evaluates against. the
// default implementation reads the workbook's own result caches.
type SheetLookup interface {
	LineResult(sheet string, id LineID) (Result, bool)
	LineAt(sheet string, pos int) (LineID, bool)
}

// Environment is everything evaluation needs besides the lines themselves.
// one per workbook, never global.
type Environment struct {
	functions *BuiltInFunctions
	units     *UnitTable
	currency  *CurrencyConverter
	logger    logrus.FieldLogger
	metrics   *Metrics
}

// EvalContext is passed down the AST while one line evaluates
type EvalContext struct {
	ctx      context.Context
	env      *Environment
	resolver Resolver
	line     LineID
	// set inside TC, where timecode literals become frame counts
	timecodeRate *FrameRate
}

func newEvalContext(ctx context.Context, env *Environment, resolver Resolver, line LineID) *EvalContext {
	return &EvalContext{ctx: ctx, env: env, resolver: resolver, line: line}
}

func (ec *EvalContext) withTimecodeRate(rate FrameRate) *EvalContext {
	child := *ec
	child.timecodeRate = &rate
	return &child
}

var plainSheetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// renderSheetName quotes names that would not survive the lexer
func renderSheetName(name string) string {
	if plainSheetName.MatchString(name) {
		return name
	}
	return "'" + name + "'"
}
