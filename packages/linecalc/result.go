package linecalc

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrorKind classifies a line-level failure. line errors are values, never
// Go errors, so one bad line cannot abort a recompute pass.
type ErrorKind uint8

const (
	ErrorKindArithmetic          ErrorKind = 1 // division by zero, non-finite result, domain errors
	ErrorKindParse               ErrorKind = 2 // text could not be parsed
	ErrorKindUnresolvedReference ErrorKind = 3 // missing line/sheet, or an upstream error
	ErrorKindCircularReference   ErrorKind = 4 // member of a dependency cycle
	ErrorKindUnknownUnit         ErrorKind = 5
	ErrorKindUnknownCurrency     ErrorKind = 6
	ErrorKindInvalidArguments    ErrorKind = 7 // wrong arity or operand types
	ErrorKindProviderUnavailable ErrorKind = 8 // only used as a Notice on a valid Number
)

// ErrorKindNames maps error kinds to their display names
var ErrorKindNames = map[ErrorKind]string{
	ErrorKindArithmetic:          "Arithmetic",
	ErrorKindParse:               "ParseError",
	ErrorKindUnresolvedReference: "UnresolvedReference",
	ErrorKindCircularReference:   "CircularReference",
	ErrorKindUnknownUnit:         "UnknownUnit",
	ErrorKindUnknownCurrency:     "UnknownCurrency",
	ErrorKindInvalidArguments:    "InvalidArguments",
	ErrorKindProviderUnavailable: "ProviderUnavailable",
}

func (k ErrorKind) String() string {
	if name, ok := ErrorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// LineError is the error payload carried by a Result
type LineError struct {
	Kind    ErrorKind
	Message string
}

func (e *LineError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func NewLineError(kind ErrorKind, format string, args ...any) *LineError {
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	if message == "" {
		message = kind.String()
	}
	return &LineError{Kind: kind, Message: message}
}

// ResultKind tags the variant held by a Result
type ResultKind uint8

const (
	ResultEmpty    ResultKind = 0 // blank or comment line
	ResultNumber   ResultKind = 1
	ResultText     ResultKind = 2
	ResultTimecode ResultKind = 3
	ResultDate     ResultKind = 4
	ResultError    ResultKind = 5
)

var resultKindNames = map[ResultKind]string{
	ResultEmpty:    "Empty",
	ResultNumber:   "Number",
	ResultText:     "Text",
	ResultTimecode: "Timecode",
	ResultDate:     "Date",
	ResultError:    "Error",
}

func (k ResultKind) String() string {
	return resultKindNames[k]
}

// Result is the immutable outcome of evaluating one line. only the fields
// belonging to Kind are meaningful.
type Result struct {
	Kind   ResultKind
	Number float64
	Unit   string // canonical unit symbol or ISO currency code, "" when unitless
	Text   string
	Frames int64
	Rate   FrameRate
	Date   time.Time
	Err    *LineError

	// Notice reports degraded success on an otherwise valid result, e.g. a
	// currency conversion that fell back to static rates
	Notice *LineError
}

func Empty() Result {
	return Result{Kind: ResultEmpty}
}

func Number(value float64) Result {
	return Result{Kind: ResultNumber, Number: value}
}

func NumberWithUnit(value float64, unit string) Result {
	return Result{Kind: ResultNumber, Number: value, Unit: unit}
}

func Text(s string) Result {
	return Result{Kind: ResultText, Text: s}
}

func Timecode(frames int64, rate FrameRate) Result {
	return Result{Kind: ResultTimecode, Frames: frames, Rate: rate}
}

func Date(t time.Time) Result {
	y, m, d := t.Date()
	return Result{Kind: ResultDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ErrorResult(kind ErrorKind, format string, args ...any) Result {
	return Result{Kind: ResultError, Err: NewLineError(kind, format, args...)}
}

func errorFrom(err *LineError) Result {
	return Result{Kind: ResultError, Err: err}
}

// checkFinite turns NaN and infinities into an arithmetic error
func checkFinite(r Result) Result {
	if r.Kind == ResultNumber && (math.IsNaN(r.Number) || math.IsInf(r.Number, 0)) {
		return ErrorResult(ErrorKindArithmetic, "result is not a finite number")
	}
	return r
}

func (r Result) IsError() bool {
	return r.Kind == ResultError
}

func (r Result) IsNumber() bool {
	return r.Kind == ResultNumber
}

func (r Result) IsEmpty() bool {
	return r.Kind == ResultEmpty
}

// ErrorKind returns the kind of a failed result, or 0
func (r Result) ErrorKind() ErrorKind {
	if r.Err == nil {
		return 0
	}
	return r.Err.Kind
}

func (r Result) withNotice(notice *LineError) Result {
	if notice != nil && r.Kind != ResultError {
		r.Notice = notice
	}
	return r
}

// Equal reports whether two results are indistinguishable to a reader.
// the scheduler uses it to stop propagation when a recomputed line did not
// actually change.
func (r Result) Equal(other Result) bool {
	if r.Kind != other.Kind {
		return false
	}
	if !sameNotice(r.Notice, other.Notice) {
		return false
	}
	switch r.Kind {
	case ResultEmpty:
		return true
	case ResultNumber:
		if math.IsNaN(r.Number) && math.IsNaN(other.Number) {
			return r.Unit == other.Unit
		}
		return r.Number == other.Number && r.Unit == other.Unit
	case ResultText:
		return r.Text == other.Text
	case ResultTimecode:
		return r.Frames == other.Frames && r.Rate == other.Rate
	case ResultDate:
		return r.Date.Equal(other.Date)
	case ResultError:
		return r.Err.Kind == other.Err.Kind && r.Err.Message == other.Err.Message
	}
	return false
}

func sameNotice(a, b *LineError) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind && a.Message == b.Message
}

// String renders the result for display
func (r Result) String() string {
	switch r.Kind {
	case ResultEmpty:
		return ""
	case ResultNumber:
		s := formatNumber(r.Number)
		if r.Unit != "" {
			s += " " + r.Unit
		}
		return s
	case ResultText:
		return r.Text
	case ResultTimecode:
		return formatTimecode(r.Frames, r.Rate)
	case ResultDate:
		return r.Date.Format(dateLayout)
	case ResultError:
		return "#" + r.Err.Kind.String() + ": " + r.Err.Message
	}
	return ""
}

// formatNumber trims binary noise (0.1+0.2 shows as 0.3)
func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', 15, 64)
}
