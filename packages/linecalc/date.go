package linecalc

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const dateLayout = "2006-01-02"

const day = 24 * time.Hour

// dd.mm.yyyy is read day first; dateparse would read it month first
var dottedDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)

// D evaluates a small date language: operand [op operand] where op is one
// of + - W+ W-
func (bf *BuiltInFunctions) D(ec *EvalContext, args []ASTNode) Result {
	if len(args) != 1 {
		return ErrorResult(ErrorKindInvalidArguments, "D expects 1 argument, got %d", len(args))
	}
	var text string
	switch arg := args[0].(type) {
	case *RawTextNode:
		text = arg.Text
	default:
		v := arg.Eval(ec)
		if v.IsError() {
			return v
		}
		if v.Kind == ResultDate {
			return v
		}
		if v.Kind != ResultText {
			return ErrorResult(ErrorKindInvalidArguments, "D expects a date expression, got %s", v.Kind)
		}
		text = v.Text
	}
	return evalDateExpr(text, bf.clock)
}

func evalDateExpr(text string, clock Clock) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrorResult(ErrorKindParse, "empty date expression")
	}

	left, op, right, ok := splitDateExpr(text)
	if !ok {
		return dateOperand(text, clock)
	}
	l := dateOperand(left, clock)
	if l.IsError() {
		return l
	}
	r := dateOperand(right, clock)
	if r.IsError() {
		return r
	}

	switch op {
	case "+":
		return dateArithmetic(BinOpAdd, l, r)
	case "-":
		return dateArithmetic(BinOpSubtract, l, r)
	case "w+", "w-":
		if l.Kind != ResultDate {
			return ErrorResult(ErrorKindInvalidArguments, "business day arithmetic needs a date on the left")
		}
		if r.Kind == ResultDate {
			if op == "w+" {
				return ErrorResult(ErrorKindInvalidArguments, "cannot add two dates")
			}
			return Number(float64(businessDaysBetween(r.Date, l.Date)))
		}
		n := int(r.Number)
		if op == "w-" {
			n = -n
		}
		return Date(addBusinessDays(l.Date, n))
	}
	return ErrorResult(ErrorKindParse, "invalid date expression %q", text)
}

// splitDateExpr finds the operator. '-' needs whitespace on both sides since
// it also appears inside ISO dates.
func splitDateExpr(text string) (string, string, string, bool) {
	lower := strings.ToLower(text)
	for i := 0; i < len(lower); i++ {
		ch := lower[i]
		switch {
		case ch == 'w' && i+1 < len(lower) && (lower[i+1] == '+' || lower[i+1] == '-') && (i == 0 || isSpaceByte(lower[i-1])):
			return strings.TrimSpace(text[:i]), lower[i : i+2], strings.TrimSpace(text[i+2:]), true
		case ch == '+':
			return strings.TrimSpace(text[:i]), "+", strings.TrimSpace(text[i+1:]), true
		case ch == '-' && i > 0 && i+1 < len(lower) && isSpaceByte(lower[i-1]) && isSpaceByte(lower[i+1]):
			return strings.TrimSpace(text[:i]), "-", strings.TrimSpace(text[i+1:]), true
		}
	}
	return "", "", "", false
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t'
}

func dateOperand(text string, clock Clock) Result {
	if text == "" {
		return ErrorResult(ErrorKindParse, "missing date operand")
	}
	if strings.EqualFold(text, "today") {
		return Date(clock.Now())
	}
	if n, err := strconv.Atoi(text); err == nil {
		return Number(float64(n))
	}
	if m := dottedDate.FindStringSubmatch(text); m != nil {
		text = m[3] + "-" + zeroPad(m[2]) + "-" + zeroPad(m[1])
	}
	t, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return ErrorResult(ErrorKindParse, "invalid date %q", text)
	}
	return Date(t)
}

func zeroPad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// dateArithmetic handles date ± days and date - date
func dateArithmetic(op BinaryOp, left, right Result) Result {
	switch {
	case left.Kind == ResultDate && right.Kind == ResultDate:
		if op != BinOpSubtract {
			return ErrorResult(ErrorKindInvalidArguments, "dates can only be subtracted from each other")
		}
		return Number(math.Round(left.Date.Sub(right.Date).Hours() / 24))
	case left.Kind == ResultDate && right.Kind == ResultNumber && right.Unit == "":
		days := int(math.Round(right.Number))
		switch op {
		case BinOpAdd:
			return Date(left.Date.AddDate(0, 0, days))
		case BinOpSubtract:
			return Date(left.Date.AddDate(0, 0, -days))
		}
	case left.Kind == ResultNumber && left.Unit == "" && right.Kind == ResultDate && op == BinOpAdd:
		return Date(right.Date.AddDate(0, 0, int(math.Round(left.Number))))
	}
	return ErrorResult(ErrorKindInvalidArguments, "unsupported date operation")
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func addBusinessDays(t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for n > 0 {
		t = t.AddDate(0, 0, step)
		if !isWeekend(t) {
			n--
		}
	}
	return t
}

// businessDaysBetween counts weekdays in (from, to], negative when to is
// before from
func businessDaysBetween(from, to time.Time) int {
	sign := 1
	if to.Before(from) {
		from, to = to, from
		sign = -1
	}
	count := 0
	for d := from.Add(day); !d.After(to); d = d.Add(day) {
		if !isWeekend(d) {
			count++
		}
	}
	return sign * count
}
