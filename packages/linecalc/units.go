package linecalc

import (
	"strings"
)

// Dimension groups units that convert into each other
type Dimension uint8

const (
	DimensionLength Dimension = iota + 1
	DimensionMass
	DimensionVolume
	DimensionTime
	DimensionData
	DimensionSpeed
	DimensionTemperature
)

var dimensionNames = map[Dimension]string{
	DimensionLength:      "length",
	DimensionMass:        "mass",
	DimensionVolume:      "volume",
	DimensionTime:        "time",
	DimensionData:        "data",
	DimensionSpeed:       "speed",
	DimensionTemperature: "temperature",
}

func (d Dimension) String() string {
	return dimensionNames[d]
}

// Unit converts to its dimension's base unit as value*Factor + Offset
type Unit struct {
	Symbol    string
	Dimension Dimension
	Factor    float64
	Offset    float64
}

// UnitTable resolves unit names and aliases (case-insensitive)
type UnitTable struct {
	units map[string]*Unit
}

type unitSpec struct {
	unit    Unit
	aliases []string
}

var unitSpecs = []unitSpec{
	// length, base meter
	{Unit{"mm", DimensionLength, 0.001, 0}, []string{"millimeter", "millimeters", "millimetre", "millimetres"}},
	{Unit{"cm", DimensionLength, 0.01, 0}, []string{"centimeter", "centimeters", "centimetre", "centimetres"}},
	{Unit{"m", DimensionLength, 1, 0}, []string{"meter", "meters", "metre", "metres"}},
	{Unit{"km", DimensionLength, 1000, 0}, []string{"kilometer", "kilometers", "kilometre", "kilometres"}},
	{Unit{"in", DimensionLength, 0.0254, 0}, []string{"inch", "inches"}},
	{Unit{"ft", DimensionLength, 0.3048, 0}, []string{"foot", "feet"}},
	{Unit{"yd", DimensionLength, 0.9144, 0}, []string{"yard", "yards"}},
	{Unit{"mi", DimensionLength, 1609.344, 0}, []string{"mile", "miles"}},
	{Unit{"nmi", DimensionLength, 1852, 0}, []string{"nauticalmile", "nauticalmiles"}},

	// mass, base gram
	{Unit{"mg", DimensionMass, 0.001, 0}, []string{"milligram", "milligrams"}},
	{Unit{"g", DimensionMass, 1, 0}, []string{"gram", "grams"}},
	{Unit{"kg", DimensionMass, 1000, 0}, []string{"kilogram", "kilograms", "kilo", "kilos"}},
	{Unit{"t", DimensionMass, 1e6, 0}, []string{"tonne", "tonnes"}},
	{Unit{"oz", DimensionMass, 28.349523125, 0}, []string{"ounce", "ounces"}},
	{Unit{"lb", DimensionMass, 453.59237, 0}, []string{"lbs", "pound", "pounds"}},
	{Unit{"st", DimensionMass, 6350.29318, 0}, []string{"stone", "stones"}},

	// volume, base liter
	{Unit{"ml", DimensionVolume, 0.001, 0}, []string{"milliliter", "milliliters", "millilitre", "millilitres"}},
	{Unit{"cl", DimensionVolume, 0.01, 0}, []string{"centiliter", "centiliters"}},
	{Unit{"l", DimensionVolume, 1, 0}, []string{"liter", "liters", "litre", "litres"}},
	{Unit{"m3", DimensionVolume, 1000, 0}, []string{"cubicmeter", "cubicmeters"}},
	{Unit{"tsp", DimensionVolume, 0.00492892159375, 0}, []string{"teaspoon", "teaspoons"}},
	{Unit{"tbsp", DimensionVolume, 0.01478676478125, 0}, []string{"tablespoon", "tablespoons"}},
	{Unit{"floz", DimensionVolume, 0.0295735295625, 0}, nil},
	{Unit{"cup", DimensionVolume, 0.2365882365, 0}, []string{"cups"}},
	{Unit{"pt", DimensionVolume, 0.473176473, 0}, []string{"pint", "pints"}},
	{Unit{"qt", DimensionVolume, 0.946352946, 0}, []string{"quart", "quarts"}},
	{Unit{"gal", DimensionVolume, 3.785411784, 0}, []string{"gallon", "gallons"}},

	// time, base second
	{Unit{"ms", DimensionTime, 0.001, 0}, []string{"millisecond", "milliseconds"}},
	{Unit{"s", DimensionTime, 1, 0}, []string{"sec", "secs", "second", "seconds"}},
	{Unit{"min", DimensionTime, 60, 0}, []string{"mins", "minute", "minutes"}},
	{Unit{"h", DimensionTime, 3600, 0}, []string{"hr", "hrs", "hour", "hours"}},
	{Unit{"day", DimensionTime, 86400, 0}, []string{"days", "d"}},
	{Unit{"week", DimensionTime, 604800, 0}, []string{"weeks", "wk", "wks"}},
	{Unit{"year", DimensionTime, 31557600, 0}, []string{"years", "yr", "yrs"}},

	// data, base byte
	{Unit{"bit", DimensionData, 0.125, 0}, []string{"bits"}},
	{Unit{"B", DimensionData, 1, 0}, []string{"byte", "bytes"}},
	{Unit{"kB", DimensionData, 1e3, 0}, []string{"kilobyte", "kilobytes"}},
	{Unit{"MB", DimensionData, 1e6, 0}, []string{"megabyte", "megabytes"}},
	{Unit{"GB", DimensionData, 1e9, 0}, []string{"gigabyte", "gigabytes"}},
	{Unit{"TB", DimensionData, 1e12, 0}, []string{"terabyte", "terabytes"}},
	{Unit{"PB", DimensionData, 1e15, 0}, []string{"petabyte", "petabytes"}},
	{Unit{"KiB", DimensionData, 1 << 10, 0}, []string{"kibibyte", "kibibytes"}},
	{Unit{"MiB", DimensionData, 1 << 20, 0}, []string{"mebibyte", "mebibytes"}},
	{Unit{"GiB", DimensionData, 1 << 30, 0}, []string{"gibibyte", "gibibytes"}},
	{Unit{"TiB", DimensionData, 1 << 40, 0}, []string{"tebibyte", "tebibytes"}},

	// speed, base meters per second
	{Unit{"m/s", DimensionSpeed, 1, 0}, []string{"mps"}},
	{Unit{"km/h", DimensionSpeed, 1 / 3.6, 0}, []string{"kph", "kmh"}},
	{Unit{"mph", DimensionSpeed, 0.44704, 0}, nil},
	{Unit{"kn", DimensionSpeed, 1852.0 / 3600, 0}, []string{"knot", "knots"}},

	// temperature, base kelvin
	{Unit{"K", DimensionTemperature, 1, 0}, []string{"kelvin"}},
	{Unit{"°C", DimensionTemperature, 1, 273.15}, []string{"c", "celsius", "degc"}},
	{Unit{"°F", DimensionTemperature, 5.0 / 9, 273.15 - 32*5.0/9}, []string{"f", "fahrenheit", "degf"}},
}

func NewUnitTable() *UnitTable {
	t := &UnitTable{units: make(map[string]*Unit)}
	for i := range unitSpecs {
		u := &unitSpecs[i].unit
		t.units[strings.ToLower(u.Symbol)] = u
		for _, alias := range unitSpecs[i].aliases {
			t.units[alias] = u
		}
	}
	return t
}

// Lookup finds a unit by symbol or alias
func (t *UnitTable) Lookup(name string) (*Unit, bool) {
	u, ok := t.units[strings.ToLower(name)]
	return u, ok
}

// Convert converts v from one unit to another of the same dimension
func (t *UnitTable) Convert(v float64, from, to string) (float64, *LineError) {
	src, ok := t.Lookup(from)
	if !ok {
		return 0, NewLineError(ErrorKindUnknownUnit, "unknown unit %q", from)
	}
	dst, ok := t.Lookup(to)
	if !ok {
		return 0, NewLineError(ErrorKindUnknownUnit, "unknown unit %q", to)
	}
	if src.Dimension != dst.Dimension {
		return 0, NewLineError(ErrorKindInvalidArguments, "cannot convert %s (%s) to %s (%s)", src.Symbol, src.Dimension, dst.Symbol, dst.Dimension)
	}
	if src == dst {
		return v, nil
	}
	base := v*src.Factor + src.Offset
	return (base - dst.Offset) / dst.Factor, nil
}

// unitArithmetic applies a binary operator to numbers carrying units or
// currency codes
func (t *UnitTable) unitArithmetic(op BinaryOp, left, right Result) Result {
	l, r := left.Number, right.Number
	switch op {
	case BinOpAdd, BinOpSubtract:
		unit := left.Unit
		switch {
		case left.Unit == "" || right.Unit == "":
			if unit == "" {
				unit = right.Unit
			}
		case left.Unit != right.Unit:
			converted, lineErr := t.convertOperand(r, right.Unit, left.Unit)
			if lineErr != nil {
				return errorFrom(lineErr)
			}
			r = converted
		}
		if op == BinOpAdd {
			return checkFinite(NumberWithUnit(l+r, unit))
		}
		return checkFinite(NumberWithUnit(l-r, unit))

	case BinOpMultiply:
		if left.Unit != "" && right.Unit != "" {
			return ErrorResult(ErrorKindInvalidArguments, "cannot multiply %s by %s", left.Unit, right.Unit)
		}
		unit := left.Unit
		if unit == "" {
			unit = right.Unit
		}
		return checkFinite(NumberWithUnit(l*r, unit))

	case BinOpDivide:
		if r == 0 {
			return ErrorResult(ErrorKindArithmetic, "division by zero")
		}
		switch {
		case right.Unit == "":
			return checkFinite(NumberWithUnit(l/r, left.Unit))
		case left.Unit == "":
			return ErrorResult(ErrorKindInvalidArguments, "cannot divide a plain number by %s", right.Unit)
		}
		if left.Unit != right.Unit {
			converted, lineErr := t.convertOperand(r, right.Unit, left.Unit)
			if lineErr != nil {
				return errorFrom(lineErr)
			}
			if converted == 0 {
				return ErrorResult(ErrorKindArithmetic, "division by zero")
			}
			r = converted
		}
		return checkFinite(Number(l / r))

	case BinOpPower:
		if right.Unit != "" || left.Unit != "" {
			return ErrorResult(ErrorKindInvalidArguments, "exponentiation needs unitless operands")
		}
	}
	return ErrorResult(ErrorKindInvalidArguments, "unsupported unit operation")
}

// convertOperand converts between two units of one dimension. currency codes
// are not in the table, so two different currencies fail here.
func (t *UnitTable) convertOperand(v float64, from, to string) (float64, *LineError) {
	_, okFrom := t.Lookup(from)
	_, okTo := t.Lookup(to)
	if !okFrom || !okTo {
		return 0, NewLineError(ErrorKindInvalidArguments, "cannot combine %s and %s", from, to)
	}
	return t.Convert(v, from, to)
}
