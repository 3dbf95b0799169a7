package linecalc

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// aggregates whose result keeps the unit of the first value. the rest are
// unitless counts or products.
var unitPreservingAggregates = map[string]bool{
	"SUM":        true,
	"MEAN":       true,
	"MEDIAN":     true,
	"MODE":       true,
	"MIN":        true,
	"MAX":        true,
	"STDEV":      true,
	"PERCENTILE": true,
	"GEOMEAN":    true,
	"HARMMEAN":   true,
}

// aggregate runs a statistical function over ranges, directional keywords
// and plain values
func (bf *BuiltInFunctions) aggregate(ec *EvalContext, name string, args []ASTNode) Result {
	var p float64
	if name == "PERCENTILE" {
		if len(args) < 2 {
			return ErrorResult(ErrorKindInvalidArguments, "PERCENTILE expects a percentile and values")
		}
		pv := args[0].Eval(ec)
		if pv.IsError() {
			return pv
		}
		if !pv.IsNumber() || pv.Unit != "" || pv.Number < 0 || pv.Number > 100 {
			return ErrorResult(ErrorKindInvalidArguments, "PERCENTILE expects a percentile between 0 and 100")
		}
		p = pv.Number
		args = args[1:]
	}

	values, errResult := collectNumbers(ec, name, args)
	if errResult.IsError() {
		return errResult
	}

	xs, unit, lineErr := bf.normalizeUnits(values)
	if lineErr != nil {
		return errorFrom(lineErr)
	}
	if !unitPreservingAggregates[name] {
		unit = ""
	}

	if len(xs) == 0 {
		switch name {
		case "SUM", "COUNT", "SUMSQ":
			return NumberWithUnit(0, unit)
		case "PRODUCT":
			return Number(1)
		}
		return ErrorResult(ErrorKindInvalidArguments, "%s has no numeric values", name)
	}

	var v float64
	switch name {
	case "SUM":
		v = floats.Sum(xs)
	case "MEAN":
		v = stat.Mean(xs, nil)
	case "MEDIAN":
		v = median(xs)
	case "MODE":
		m, ok := mode(xs)
		if !ok {
			return ErrorResult(ErrorKindInvalidArguments, "MODE: no value appears more than once")
		}
		v = m
	case "MIN":
		v = floats.Min(xs)
	case "MAX":
		v = floats.Max(xs)
	case "COUNT":
		v = float64(len(xs))
	case "PRODUCT":
		v = floats.Prod(xs)
	case "VARIANCE", "STDEV":
		if len(xs) < 2 {
			return ErrorResult(ErrorKindArithmetic, "%s needs at least two values", name)
		}
		v = stat.Variance(xs, nil)
		if name == "STDEV" {
			v = math.Sqrt(v)
		}
	case "GEOMEAN":
		for _, x := range xs {
			if x <= 0 {
				return ErrorResult(ErrorKindArithmetic, "GEOMEAN requires positive values")
			}
		}
		v = stat.GeometricMean(xs, nil)
	case "HARMMEAN":
		for _, x := range xs {
			if x == 0 {
				return ErrorResult(ErrorKindArithmetic, "HARMMEAN requires non-zero values")
			}
		}
		v = stat.HarmonicMean(xs, nil)
	case "SUMSQ":
		v = floats.Dot(xs, xs)
	case "PERCENTILE":
		v = percentile(xs, p)
	default:
		return ErrorResult(ErrorKindInvalidArguments, "unknown aggregate %s", name)
	}
	return checkFinite(NumberWithUnit(v, unit))
}

// normalizeUnits converts every value into the unit of the first value
// that has one
func (bf *BuiltInFunctions) normalizeUnits(values []Result) ([]float64, string, *LineError) {
	unit := ""
	for _, v := range values {
		if v.Unit != "" {
			unit = v.Unit
			break
		}
	}
	xs := make([]float64, len(values))
	for i, v := range values {
		xs[i] = v.Number
		if v.Unit == "" || v.Unit == unit {
			continue
		}
		converted, lineErr := bf.units.convertOperand(v.Number, v.Unit, unit)
		if lineErr != nil {
			return nil, "", lineErr
		}
		xs[i] = converted
	}
	return xs, unit, nil
}

func median(xs []float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		// even count: average of two middle values
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// mode returns the most frequent value, the smallest one on ties
func mode(xs []float64) (float64, bool) {
	frequency := make(map[float64]int, len(xs))
	maxFreq := 0
	for _, x := range xs {
		frequency[x]++
		maxFreq = max(maxFreq, frequency[x])
	}
	if maxFreq == 1 && len(xs) > 1 {
		return 0, false
	}
	best := math.Inf(1)
	for x, freq := range frequency {
		if freq == maxFreq && x < best {
			best = x
		}
	}
	return best, true
}

// percentile interpolates linearly between closest ranks, p in [0,100]
func percentile(xs []float64, p float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}
