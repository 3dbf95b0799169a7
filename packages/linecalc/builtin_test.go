package linecalc

import (
	"math"
	"testing"
)

func TestMathFunctions(t *testing.T) {
	t.Run("TR", func(t *testing.T) {
		NewWorkbookTestCase(t, "Round half away from zero").
			SetLines("Sheet1",
				"TR(2.675, 2)",
				"tr(2.5)",
				"TR(-2.5)",
				"round(1234.5678, -2)",
				"TRUNCATE(1.005, 2)",
				"TR(2, 1.5)",
				`TR("x")`,
				"TR(1.26 km, 1)",
			).
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, 2.68).
			AssertLineEq("Sheet1", 2, 3).
			AssertLineEq("Sheet1", 3, -3).
			AssertLineEq("Sheet1", 4, 1200).
			AssertLineEq("Sheet1", 5, 1.01).
			AssertLineErr("Sheet1", 6, ErrorKindInvalidArguments).
			AssertLineErr("Sheet1", 7, ErrorKindInvalidArguments).
			AssertLineEq("Sheet1", 8, "1.3 km").
			End()
	})

	t.Run("Unary", func(t *testing.T) {
		NewWorkbookTestCase(t, "Unary math").
			SetLines("Sheet1",
				"sqrt(16)",
				"sqrt(-1)",
				"abs(-5 km)",
				"floor(2.7)",
				"ceil(2.1)",
				"exp(0)",
				"ln(e)",
				"ln(0)",
				"sin(0)",
				"cos(0)",
				"sqrt(1, 2)",
			).
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, 4).
			AssertLineErr("Sheet1", 2, ErrorKindArithmetic).
			AssertLineEq("Sheet1", 3, "5 km").
			AssertLineEq("Sheet1", 4, 2).
			AssertLineEq("Sheet1", 5, 3).
			AssertLineEq("Sheet1", 6, 1).
			AssertLineEq("Sheet1", 7, 1).
			AssertLineErr("Sheet1", 8, ErrorKindArithmetic).
			AssertLineEq("Sheet1", 9, 0).
			AssertLineEq("Sheet1", 10, 1).
			AssertLineErr("Sheet1", 11, ErrorKindInvalidArguments).
			End()
	})

	t.Run("LOG", func(t *testing.T) {
		NewWorkbookTestCase(t, "Logarithms").
			SetLines("Sheet1", "log(100)", "log(8, 2)", "log(-1)", "log(8, 1)").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, 2).
			AssertLineEq("Sheet1", 2, 3).
			AssertLineErr("Sheet1", 3, ErrorKindArithmetic).
			AssertLineErr("Sheet1", 4, ErrorKindArithmetic).
			End()
	})

	t.Run("MOD and POW", func(t *testing.T) {
		NewWorkbookTestCase(t, "Modulo takes the sign of the divisor").
			SetLines("Sheet1", "mod(-7, 3)", "mod(7, -3)", "mod(5, 0)", "mod(7 km, 2 km)", "pow(2, 10)", "power(9, 0.5)").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, 2).
			AssertLineEq("Sheet1", 2, -2).
			AssertLineErr("Sheet1", 3, ErrorKindArithmetic).
			AssertLineErr("Sheet1", 4, ErrorKindInvalidArguments).
			AssertLineEq("Sheet1", 5, 1024).
			AssertLineEq("Sheet1", 6, 3).
			End()
	})

	t.Run("Unknown", func(t *testing.T) {
		NewWorkbookTestCase(t, "Unknown function").
			SetLines("Sheet1", "frobnicate(1)").
			RunAndAssertNoError().
			AssertLineErr("Sheet1", 1, ErrorKindInvalidArguments).
			End()
	})
}

func TestOperators(t *testing.T) {
	NewWorkbookTestCase(t, "Arithmetic").
		SetLines("Sheet1",
			"2 + 3 * 4",
			"(2 + 3) * 4",
			"10 / 4",
			"2 ^ 10",
			"-3 + 1",
			"1,000 + 1",
			"pi",
			"1 / 0",
			"0 ^ -1",
		).
		RunAndAssertNoError().
		AssertLineEq("Sheet1", 1, 14).
		AssertLineEq("Sheet1", 2, 20).
		AssertLineEq("Sheet1", 3, 2.5).
		AssertLineEq("Sheet1", 4, 1024).
		AssertLineEq("Sheet1", 5, -2).
		AssertLineEq("Sheet1", 6, 1001).
		AssertLineEq("Sheet1", 7, math.Pi).
		AssertLineErr("Sheet1", 8, ErrorKindArithmetic).
		AssertLineErr("Sheet1", 9, ErrorKindArithmetic).
		End()

	NewWorkbookTestCase(t, "Text does not do arithmetic").
		SetLines("Sheet1", `"a" + 1`, `"hello"`).
		RunAndAssertNoError().
		AssertLineErr("Sheet1", 1, ErrorKindInvalidArguments).
		AssertLineEq("Sheet1", 2, Text("hello")).
		End()
}
