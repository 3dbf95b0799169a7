package linecalc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FrameRate is a video frame rate. Nominal is the number of frame labels per
// timecode second (30 for 29.97), Value the real rate.
type FrameRate struct {
	Nominal int
	Drop    bool
	Value   float64
}

var frameRates = []FrameRate{
	{Nominal: 24, Value: 23.976},
	{Nominal: 24, Value: 24},
	{Nominal: 25, Value: 25},
	{Nominal: 30, Value: 29.97},
	{Nominal: 30, Value: 30},
	{Nominal: 48, Value: 47.952},
	{Nominal: 48, Value: 48},
	{Nominal: 50, Value: 50},
	{Nominal: 60, Value: 59.94},
	{Nominal: 60, Value: 60},
}

// FrameRateFromValue looks up a supported rate such as 23.976 or 30
func FrameRateFromValue(v float64, drop bool) (FrameRate, *LineError) {
	for _, rate := range frameRates {
		if math.Abs(rate.Value-v) < 0.0005 {
			if drop {
				return rate.withDrop()
			}
			return rate, nil
		}
	}
	return FrameRate{}, NewLineError(ErrorKindInvalidArguments, "unsupported frame rate %s", formatNumber(v))
}

// ParseFrameRate accepts "24", "29.97df" and "29.97 DF"
func ParseFrameRate(s string) (FrameRate, *LineError) {
	text := strings.ToLower(strings.TrimSpace(s))
	drop := false
	if strings.HasSuffix(text, "df") {
		drop = true
		text = strings.TrimSpace(strings.TrimSuffix(text, "df"))
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return FrameRate{}, NewLineError(ErrorKindInvalidArguments, "invalid frame rate %q", s)
	}
	return FrameRateFromValue(v, drop)
}

func (r FrameRate) withDrop() (FrameRate, *LineError) {
	if !r.isFractional() || (r.Nominal != 30 && r.Nominal != 60) {
		return FrameRate{}, NewLineError(ErrorKindInvalidArguments, "drop-frame requires 29.97 or 59.94, got %s", formatNumber(r.Value))
	}
	r.Drop = true
	return r, nil
}

func (r FrameRate) isFractional() bool {
	return r.Value != float64(r.Nominal)
}

func (r FrameRate) String() string {
	s := formatNumber(r.Value)
	if r.Drop {
		s += "df"
	}
	return s
}

// dropFrames is the count of frame labels skipped at each non-tenth minute
func (r FrameRate) dropFrames() int64 {
	if !r.Drop {
		return 0
	}
	return int64(r.Nominal / 15)
}

// parseTimecode converts HH:MM:SS:FF (or HH:MM:SS;FF) into a frame count.
// a ';' separator switches the rate to drop-frame.
func parseTimecode(s string, rate FrameRate) (int64, FrameRate, *LineError) {
	text := strings.TrimSpace(s)
	negative := strings.HasPrefix(text, "-")
	text = strings.TrimPrefix(text, "-")

	if strings.Contains(text, ";") && !rate.Drop {
		var lineErr *LineError
		if rate, lineErr = rate.withDrop(); lineErr != nil {
			return 0, rate, lineErr
		}
	}

	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ':' || r == ';' })
	if len(parts) != 4 {
		return 0, rate, NewLineError(ErrorKindInvalidArguments, "invalid timecode %q", s)
	}
	var fields [4]int64
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil || v < 0 {
			return 0, rate, NewLineError(ErrorKindInvalidArguments, "invalid timecode %q", s)
		}
		fields[i] = v
	}
	hours, minutes, seconds, frames := fields[0], fields[1], fields[2], fields[3]
	nominal := int64(rate.Nominal)
	if minutes >= 60 || seconds >= 60 || frames >= nominal {
		return 0, rate, NewLineError(ErrorKindInvalidArguments, "timecode %q out of range at %s fps", s, rate)
	}

	drop := rate.dropFrames()
	if drop > 0 && seconds == 0 && frames < drop && minutes%10 != 0 {
		return 0, rate, NewLineError(ErrorKindInvalidArguments, "timecode %q names a dropped frame", s)
	}

	totalMinutes := hours*60 + minutes
	count := ((hours*3600+minutes*60+seconds)*nominal + frames) - drop*(totalMinutes-totalMinutes/10)
	if negative {
		count = -count
	}
	return count, rate, nil
}

func formatTimecode(frames int64, rate FrameRate) string {
	if rate.Nominal == 0 {
		return strconv.FormatInt(frames, 10)
	}
	sign := ""
	if frames < 0 {
		sign = "-"
		frames = -frames
	}

	nominal := int64(rate.Nominal)
	if drop := rate.dropFrames(); drop > 0 {
		perMinute := nominal*60 - drop
		perTenMinutes := perMinute*10 + drop
		tens := frames / perTenMinutes
		rem := frames % perTenMinutes
		frames += 9 * drop * tens
		if rem >= drop {
			frames += drop * ((rem - drop) / perMinute)
		}
	}

	ff := frames % nominal
	totalSeconds := frames / nominal
	sep := ":"
	if rate.Drop {
		sep = ";"
	}
	return fmt.Sprintf("%s%02d:%02d:%02d%s%02d", sign,
		totalSeconds/3600, (totalSeconds/60)%60, totalSeconds%60, sep, ff)
}

// retime converts a frame count to the count covering the same real
// duration at another rate
func retime(frames int64, from, to FrameRate) int64 {
	if from.Value == to.Value {
		return frames
	}
	return int64(math.Round(float64(frames) * to.Value / from.Value))
}

// TC converts between frame counts and timecodes. the first argument may be
// written 29.97df, so it is inspected before evaluation. timecode literals in
// the second argument are read at that rate and may be combined arithmetically.
func (bf *BuiltInFunctions) TC(ec *EvalContext, args []ASTNode) Result {
	if len(args) != 2 {
		return ErrorResult(ErrorKindInvalidArguments, "TC expects 2 arguments, got %d", len(args))
	}
	rate, lineErr := frameRateArg(ec, args[0])
	if lineErr != nil {
		return errorFrom(lineErr)
	}

	value := args[1].Eval(ec.withTimecodeRate(rate))
	switch value.Kind {
	case ResultError:
		return value
	case ResultText:
		frames, _, lineErr := parseTimecode(value.Text, rate)
		if lineErr != nil {
			return errorFrom(lineErr)
		}
		return Number(float64(frames))
	case ResultNumber:
		if value.Unit != "" {
			return ErrorResult(ErrorKindInvalidArguments, "TC expects a unitless frame count, got %s", value)
		}
		return Timecode(int64(math.Round(value.Number)), rate)
	case ResultTimecode:
		return Number(float64(retime(value.Frames, value.Rate, rate)))
	}
	return ErrorResult(ErrorKindInvalidArguments, "TC expects a timecode or frame count, got %s", value.Kind)
}

func frameRateArg(ec *EvalContext, node ASTNode) (FrameRate, *LineError) {
	if unit, ok := node.(*UnitNode); ok && strings.EqualFold(unit.Unit, "df") {
		v := unit.Value.Eval(ec)
		if v.IsError() {
			return FrameRate{}, v.Err
		}
		if v.Kind != ResultNumber || v.Unit != "" {
			return FrameRate{}, NewLineError(ErrorKindInvalidArguments, "invalid frame rate")
		}
		return FrameRateFromValue(v.Number, true)
	}

	v := node.Eval(ec)
	switch v.Kind {
	case ResultError:
		return FrameRate{}, v.Err
	case ResultNumber:
		if v.Unit != "" {
			return FrameRate{}, NewLineError(ErrorKindInvalidArguments, "invalid frame rate %s", v)
		}
		return FrameRateFromValue(v.Number, false)
	case ResultText:
		return ParseFrameRate(v.Text)
	}
	return FrameRate{}, NewLineError(ErrorKindInvalidArguments, "invalid frame rate %s", v)
}

// timecodeArithmetic works in frame-count space
func timecodeArithmetic(op BinaryOp, left, right Result) Result {
	switch {
	case left.Kind == ResultTimecode && right.Kind == ResultTimecode:
		if left.Rate != right.Rate {
			return ErrorResult(ErrorKindInvalidArguments, "timecode rates differ: %s and %s", left.Rate, right.Rate)
		}
		switch op {
		case BinOpAdd:
			return Timecode(left.Frames+right.Frames, left.Rate)
		case BinOpSubtract:
			return Timecode(left.Frames-right.Frames, left.Rate)
		case BinOpDivide:
			if right.Frames == 0 {
				return ErrorResult(ErrorKindArithmetic, "division by zero")
			}
			return Number(float64(left.Frames) / float64(right.Frames))
		}
	case left.Kind == ResultTimecode && right.Kind == ResultNumber && right.Unit == "":
		switch op {
		case BinOpAdd:
			return Timecode(left.Frames+int64(math.Round(right.Number)), left.Rate)
		case BinOpSubtract:
			return Timecode(left.Frames-int64(math.Round(right.Number)), left.Rate)
		case BinOpMultiply:
			return Timecode(int64(math.Round(float64(left.Frames)*right.Number)), left.Rate)
		case BinOpDivide:
			if right.Number == 0 {
				return ErrorResult(ErrorKindArithmetic, "division by zero")
			}
			return Timecode(int64(math.Round(float64(left.Frames)/right.Number)), left.Rate)
		}
	case left.Kind == ResultNumber && left.Unit == "" && right.Kind == ResultTimecode:
		switch op {
		case BinOpAdd:
			return Timecode(int64(math.Round(left.Number))+right.Frames, right.Rate)
		case BinOpMultiply:
			return Timecode(int64(math.Round(left.Number*float64(right.Frames))), right.Rate)
		}
	}
	return ErrorResult(ErrorKindInvalidArguments, "unsupported timecode operation")
}
