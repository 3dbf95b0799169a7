package linecalc

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// BuiltInFunctions contains all calculator built-in functions
type BuiltInFunctions struct {
	clock Clock
	units *UnitTable
}

func NewBuiltInFunctions(clock Clock, units *UnitTable) *BuiltInFunctions {
	return &BuiltInFunctions{
		clock: clock,
		units: units,
	}
}

// Call invokes a built-in function by name with the given unevaluated
// arguments
func (bf *BuiltInFunctions) Call(ec *EvalContext, name string, args []ASTNode) Result {
	switch strings.ToUpper(name) {
	case "SUM":
		return bf.aggregate(ec, "SUM", args)
	case "MEAN", "AVG", "AVERAGE":
		return bf.aggregate(ec, "MEAN", args)
	case "MEDIAN":
		return bf.aggregate(ec, "MEDIAN", args)
	case "MODE":
		return bf.aggregate(ec, "MODE", args)
	case "MIN":
		return bf.aggregate(ec, "MIN", args)
	case "MAX":
		return bf.aggregate(ec, "MAX", args)
	case "COUNT":
		return bf.aggregate(ec, "COUNT", args)
	case "PRODUCT":
		return bf.aggregate(ec, "PRODUCT", args)
	case "VARIANCE", "VAR":
		return bf.aggregate(ec, "VARIANCE", args)
	case "STDEV":
		return bf.aggregate(ec, "STDEV", args)
	case "GEOMEAN":
		return bf.aggregate(ec, "GEOMEAN", args)
	case "HARMMEAN":
		return bf.aggregate(ec, "HARMMEAN", args)
	case "SUMSQ":
		return bf.aggregate(ec, "SUMSQ", args)
	case "PERCENTILE":
		return bf.aggregate(ec, "PERCENTILE", args)
	case "TC":
		return bf.TC(ec, args)
	case "AR":
		return bf.AR(ec, args)
	case "D":
		return bf.D(ec, args)
	case "TR", "TRUNCATE", "ROUND":
		return bf.TR(ec, args)
	case "SQRT":
		return bf.unary(ec, "SQRT", args, bf.SQRT)
	case "ABS":
		return bf.unary(ec, "ABS", args, bf.ABS)
	case "FLOOR":
		return bf.unary(ec, "FLOOR", args, bf.FLOOR)
	case "CEIL", "CEILING":
		return bf.unary(ec, "CEIL", args, bf.CEIL)
	case "LN":
		return bf.unary(ec, "LN", args, bf.LN)
	case "EXP":
		return bf.unary(ec, "EXP", args, bf.EXP)
	case "SIN":
		return bf.unary(ec, "SIN", args, bf.SIN)
	case "COS":
		return bf.unary(ec, "COS", args, bf.COS)
	case "TAN":
		return bf.unary(ec, "TAN", args, bf.TAN)
	case "LOG":
		return bf.LOG(ec, args)
	case "POW", "POWER":
		return bf.POW(ec, args)
	case "MOD":
		return bf.MOD(ec, args)
	default:
		return ErrorResult(ErrorKindInvalidArguments, "unknown function: %s", name)
	}
}

// evalNumbers evaluates every argument and requires Numbers
func evalNumbers(ec *EvalContext, name string, args []ASTNode) ([]Result, Result) {
	values := make([]Result, len(args))
	for i, arg := range args {
		v := arg.Eval(ec)
		if v.IsError() {
			return nil, v
		}
		if !v.IsNumber() {
			return nil, ErrorResult(ErrorKindInvalidArguments, "%s expects numbers, got %s", name, v.Kind)
		}
		values[i] = v
	}
	return values, Result{}
}

// unary applies a one-argument math function, keeping the unit only where
// the function is unit-safe
func (bf *BuiltInFunctions) unary(ec *EvalContext, name string, args []ASTNode, fn func(Result) Result) Result {
	if len(args) != 1 {
		return ErrorResult(ErrorKindInvalidArguments, "%s expects 1 argument, got %d", name, len(args))
	}
	values, errResult := evalNumbers(ec, name, args)
	if errResult.IsError() {
		return errResult
	}
	return checkFinite(fn(values[0]))
}

func (bf *BuiltInFunctions) SQRT(v Result) Result {
	if v.Number < 0 {
		return ErrorResult(ErrorKindArithmetic, "square root of negative number")
	}
	return Number(math.Sqrt(v.Number))
}

func (bf *BuiltInFunctions) ABS(v Result) Result {
	return NumberWithUnit(math.Abs(v.Number), v.Unit).withNotice(v.Notice)
}

func (bf *BuiltInFunctions) FLOOR(v Result) Result {
	return NumberWithUnit(math.Floor(v.Number), v.Unit).withNotice(v.Notice)
}

func (bf *BuiltInFunctions) CEIL(v Result) Result {
	return NumberWithUnit(math.Ceil(v.Number), v.Unit).withNotice(v.Notice)
}

func (bf *BuiltInFunctions) LN(v Result) Result {
	if v.Number <= 0 {
		return ErrorResult(ErrorKindArithmetic, "logarithm of non-positive number")
	}
	return Number(math.Log(v.Number))
}

func (bf *BuiltInFunctions) EXP(v Result) Result {
	return Number(math.Exp(v.Number))
}

func (bf *BuiltInFunctions) SIN(v Result) Result {
	return Number(math.Sin(v.Number))
}

func (bf *BuiltInFunctions) COS(v Result) Result {
	return Number(math.Cos(v.Number))
}

func (bf *BuiltInFunctions) TAN(v Result) Result {
	return Number(math.Tan(v.Number))
}

// LOG is log10 by default, or log to the given base
func (bf *BuiltInFunctions) LOG(ec *EvalContext, args []ASTNode) Result {
	if len(args) < 1 || len(args) > 2 {
		return ErrorResult(ErrorKindInvalidArguments, "LOG expects 1 or 2 arguments, got %d", len(args))
	}
	values, errResult := evalNumbers(ec, "LOG", args)
	if errResult.IsError() {
		return errResult
	}
	x := values[0].Number
	if x <= 0 {
		return ErrorResult(ErrorKindArithmetic, "logarithm of non-positive number")
	}
	if len(values) == 1 {
		return checkFinite(Number(math.Log10(x)))
	}
	base := values[1].Number
	if base <= 0 || base == 1 {
		return ErrorResult(ErrorKindArithmetic, "invalid logarithm base %s", formatNumber(base))
	}
	return checkFinite(Number(math.Log(x) / math.Log(base)))
}

func (bf *BuiltInFunctions) POW(ec *EvalContext, args []ASTNode) Result {
	if len(args) != 2 {
		return ErrorResult(ErrorKindInvalidArguments, "POW expects 2 arguments, got %d", len(args))
	}
	values, errResult := evalNumbers(ec, "POW", args)
	if errResult.IsError() {
		return errResult
	}
	return applyBinaryOp(bf.units, BinOpPower, values[0], values[1])
}

func (bf *BuiltInFunctions) MOD(ec *EvalContext, args []ASTNode) Result {
	if len(args) != 2 {
		return ErrorResult(ErrorKindInvalidArguments, "MOD expects 2 arguments, got %d", len(args))
	}
	values, errResult := evalNumbers(ec, "MOD", args)
	if errResult.IsError() {
		return errResult
	}
	n, d := values[0], values[1]
	if d.Unit != "" {
		return ErrorResult(ErrorKindInvalidArguments, "MOD divisor must be unitless")
	}
	if d.Number == 0 {
		return ErrorResult(ErrorKindArithmetic, "division by zero")
	}
	// the result takes the sign of the divisor
	m := n.Number - d.Number*math.Floor(n.Number/d.Number)
	return checkFinite(NumberWithUnit(m, n.Unit))
}

// TR rounds half away from zero on the exact decimal value, so TR(2.675, 2)
// is 2.68 even though 2.675 is stored as 2.67499...
func (bf *BuiltInFunctions) TR(ec *EvalContext, args []ASTNode) Result {
	if len(args) < 1 || len(args) > 2 {
		return ErrorResult(ErrorKindInvalidArguments, "TR expects 1 or 2 arguments, got %d", len(args))
	}
	v := args[0].Eval(ec)
	if v.IsError() {
		return v
	}
	if !v.IsNumber() {
		return ErrorResult(ErrorKindInvalidArguments, "TR expects a number, got %s", v.Kind)
	}

	places := int32(0)
	if len(args) == 2 {
		d := args[1].Eval(ec)
		if d.IsError() {
			return d
		}
		if !d.IsNumber() || d.Unit != "" || d.Number != math.Trunc(d.Number) || math.Abs(d.Number) > 15 {
			return ErrorResult(ErrorKindInvalidArguments, "TR expects a whole number of decimals")
		}
		places = int32(d.Number)
	}

	rounded, _ := decimal.NewFromFloat(v.Number).Round(places).Float64()
	v.Number = rounded
	return v
}
