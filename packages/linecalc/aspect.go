package linecalc

import (
	"math"
	"strconv"
	"strings"
)

// dimensions is a width/height pair where either side may be unknown
type dimensions struct {
	width, height               float64
	unknownWidth, unknownHeight bool
}

func parseDimensions(s string) (dimensions, bool) {
	text := strings.ToLower(strings.TrimSpace(s))
	parts := strings.Split(text, "x")
	if len(parts) != 2 {
		return dimensions{}, false
	}
	var d dimensions
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "?" {
			if i == 0 {
				d.unknownWidth = true
			} else {
				d.unknownHeight = true
			}
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return dimensions{}, false
		}
		if i == 0 {
			d.width = v
		} else {
			d.height = v
		}
	}
	return d, true
}

func dimensionsArg(ec *EvalContext, node ASTNode) (dimensions, Result) {
	var text string
	switch n := node.(type) {
	case *DimensionsNode:
		text = n.Text
	default:
		v := node.Eval(ec)
		if v.IsError() {
			return dimensions{}, v
		}
		if v.Kind != ResultText {
			return dimensions{}, ErrorResult(ErrorKindInvalidArguments, "AR expects dimensions like 1920x1080, got %s", v.Kind)
		}
		text = v.Text
	}
	d, ok := parseDimensions(text)
	if !ok {
		return dimensions{}, ErrorResult(ErrorKindInvalidArguments, "invalid dimensions %q", text)
	}
	return d, Result{}
}

// AR solves the unknown side of target so it keeps the aspect ratio of known
func (bf *BuiltInFunctions) AR(ec *EvalContext, args []ASTNode) Result {
	if len(args) != 2 {
		return ErrorResult(ErrorKindInvalidArguments, "AR expects 2 arguments, got %d", len(args))
	}
	known, errResult := dimensionsArg(ec, args[0])
	if errResult.IsError() {
		return errResult
	}
	target, errResult := dimensionsArg(ec, args[1])
	if errResult.IsError() {
		return errResult
	}

	if known.unknownWidth || known.unknownHeight {
		return ErrorResult(ErrorKindInvalidArguments, "known dimensions cannot contain '?'")
	}
	if known.width == 0 || known.height == 0 {
		return ErrorResult(ErrorKindInvalidArguments, "known dimensions must be non-zero")
	}
	if target.unknownWidth == target.unknownHeight {
		return ErrorResult(ErrorKindInvalidArguments, "target needs exactly one '?'")
	}

	if target.unknownWidth {
		w := math.Round(target.height * known.width / known.height)
		return Text(formatNumber(w) + "x" + formatNumber(target.height))
	}
	h := math.Round(target.width * known.height / known.width)
	return Text(formatNumber(target.width) + "x" + formatNumber(h))
}
