package linecalc

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a Clock whose time the test controls
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(year int, month time.Month, day int) *testClock {
	return &testClock{now: time.Date(year, month, day, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestWorkbook(t testing.TB, opts ...Option) *Workbook {
	t.Helper()
	opts = append([]Option{
		WithLogger(discardLogger()),
		WithClock(newTestClock(2024, time.March, 15)),
	}, opts...)
	wb, err := NewWorkbook(opts...)
	require.NoError(t, err)
	return wb
}

type WorkbookTestCase struct {
	t        *testing.T
	name     string
	workbook *Workbook
	err      error
	skipped  bool
}

func NewWorkbookTestCase(t *testing.T, name string, opts ...Option) *WorkbookTestCase {
	tc := &WorkbookTestCase{
		t:        t,
		name:     name,
		workbook: newTestWorkbook(t, opts...),
	}
	return tc.AddWorksheet("Sheet1")
}

func (tc *WorkbookTestCase) Skip(reason string) *WorkbookTestCase {
	if !tc.skipped {
		tc.t.Skipf("%s: %s", tc.name, reason)
		tc.skipped = true
	}
	return tc
}

func (tc *WorkbookTestCase) active() bool {
	return !tc.skipped && tc.err == nil
}

func (tc *WorkbookTestCase) sheet(name string) SheetID {
	id, ok := tc.workbook.WorksheetByName(name)
	if !ok {
		tc.t.Fatalf("%s: worksheet %s does not exist", tc.name, name)
	}
	return id
}

func (tc *WorkbookTestCase) line(sheet string, pos int) LineID {
	lines, err := tc.workbook.Lines(tc.sheet(sheet))
	require.NoError(tc.t, err)
	if pos < 1 || pos > len(lines) {
		tc.t.Fatalf("%s: worksheet %s has no line %d", tc.name, sheet, pos)
	}
	return lines[pos-1]
}

func (tc *WorkbookTestCase) AddWorksheet(name string) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	_, tc.err = tc.workbook.AddWorksheet(name)
	return tc
}

func (tc *WorkbookTestCase) RemoveWorksheet(name string) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	_, tc.err = tc.workbook.RemoveWorksheet(tc.sheet(name))
	return tc
}

func (tc *WorkbookTestCase) RenameWorksheet(oldName, newName string) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	_, tc.err = tc.workbook.RenameWorksheet(tc.sheet(oldName), newName)
	return tc
}

// SetLines replaces the lines of a worksheet, adding it first if needed
func (tc *WorkbookTestCase) SetLines(sheet string, texts ...string) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	if _, ok := tc.workbook.WorksheetByName(sheet); !ok {
		if tc.AddWorksheet(sheet).err != nil {
			return tc
		}
	}
	_, tc.err = tc.workbook.SetLines(tc.sheet(sheet), texts)
	if tc.err != nil {
		tc.t.Errorf("%s: SetLines(%s) failed: %v", tc.name, sheet, tc.err)
	}
	return tc
}

func (tc *WorkbookTestCase) Edit(sheet string, pos int, text string) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	_, tc.err = tc.workbook.ApplyEdit(tc.sheet(sheet), tc.line(sheet, pos), text)
	return tc
}

func (tc *WorkbookTestCase) InsertLine(sheet string, pos int, text string) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	_, _, tc.err = tc.workbook.InsertLine(tc.sheet(sheet), pos, text)
	return tc
}

func (tc *WorkbookTestCase) DeleteLine(sheet string, pos int) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	_, tc.err = tc.workbook.DeleteLine(tc.sheet(sheet), tc.line(sheet, pos))
	return tc
}

func (tc *WorkbookTestCase) Activate(sheet string) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	_, _, tc.err = tc.workbook.OnSheetActivated(tc.sheet(sheet))
	return tc
}

func (tc *WorkbookTestCase) Recompute() *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	_, tc.err = tc.workbook.RunScheduledRecompute()
	if tc.err != nil {
		tc.t.Errorf("%s: RunScheduledRecompute() failed: %v", tc.name, tc.err)
	}
	return tc
}

func (tc *WorkbookTestCase) RunAndAssertNoError() *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	_, tc.err = tc.workbook.RecomputeAll()
	if tc.err != nil {
		tc.t.Errorf("%s: RecomputeAll() failed: %v", tc.name, tc.err)
	}
	return tc
}

func (tc *WorkbookTestCase) result(sheet string, pos int) (Result, bool) {
	result, err := tc.workbook.Result(tc.sheet(sheet), tc.line(sheet, pos))
	if err != nil {
		tc.t.Errorf("%s: Result(%s!LN%d) failed: %v", tc.name, sheet, pos, err)
		return Result{}, false
	}
	return result, true
}

// AssertLineEq compares a line's result. numbers compare by value (any
// unit), strings against the rendered result, ErrorKinds against the error
// kind, nil against Empty.
func (tc *WorkbookTestCase) AssertLineEq(sheet string, pos int, expected any) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	actual, ok := tc.result(sheet, pos)
	if !ok {
		return tc
	}

	label := fmt.Sprintf("%s: %s!LN%d", tc.name, sheet, pos)
	switch exp := expected.(type) {
	case float64:
		if assert.Equal(tc.t, ResultNumber, actual.Kind, "%s = %s", label, actual) {
			assert.InDelta(tc.t, exp, actual.Number, 1e-9, label)
		}
	case int:
		if assert.Equal(tc.t, ResultNumber, actual.Kind, "%s = %s", label, actual) {
			assert.InDelta(tc.t, float64(exp), actual.Number, 1e-9, label)
		}
	case string:
		assert.Equal(tc.t, exp, actual.String(), label)
	case ErrorKind:
		if assert.Equal(tc.t, ResultError, actual.Kind, "%s = %s", label, actual) {
			assert.Equal(tc.t, exp, actual.Err.Kind, "%s = %s", label, actual)
		}
	case nil:
		assert.True(tc.t, actual.IsEmpty(), "%s = %s, want empty", label, actual)
	case Result:
		assert.True(tc.t, exp.Equal(actual), "%s = %s, want %s", label, actual, exp)
	default:
		tc.t.Fatalf("%s: unsupported expectation %T", label, expected)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertLineEmpty(sheet string, pos int) *WorkbookTestCase {
	return tc.AssertLineEq(sheet, pos, nil)
}

func (tc *WorkbookTestCase) AssertLineErr(sheet string, pos int, kind ErrorKind) *WorkbookTestCase {
	return tc.AssertLineEq(sheet, pos, kind)
}

func (tc *WorkbookTestCase) AssertLineFn(sheet string, pos int, fn func(result Result, t *testing.T)) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	if actual, ok := tc.result(sheet, pos); ok {
		fn(actual, tc.t)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertLineText(sheet string, pos int, text string) *WorkbookTestCase {
	if !tc.active() {
		return tc
	}
	actual, err := tc.workbook.LineText(tc.sheet(sheet), tc.line(sheet, pos))
	if assert.NoError(tc.t, err) {
		assert.Equal(tc.t, text, actual, "%s: text of %s!LN%d", tc.name, sheet, pos)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertWorksheetExists(name string, shouldExist bool) *WorkbookTestCase {
	if tc.skipped {
		return tc
	}
	_, exists := tc.workbook.WorksheetByName(name)
	assert.Equal(tc.t, shouldExist, exists, "%s: worksheet %s exists", tc.name, name)
	return tc
}

func (tc *WorkbookTestCase) ExpectAppError(expectedCode AppErrorCode) *WorkbookTestCase {
	if tc.skipped {
		return tc
	}
	if tc.err == nil {
		tc.t.Errorf("%s: expected error with code %v, but got no error", tc.name, expectedCode)
		return tc
	}
	assert.True(tc.t, IsAppError(tc.err, expectedCode), "%s: got error %v, want code %v", tc.name, tc.err, expectedCode)
	tc.err = nil
	return tc
}

func (tc *WorkbookTestCase) Workbook() *Workbook {
	return tc.workbook
}

func (tc *WorkbookTestCase) End() {
	if tc.err != nil && !tc.skipped {
		tc.t.Errorf("%s: unexpected error: %v", tc.name, tc.err)
	}
}

func TestScenarios(t *testing.T) {
	t.Run("LocalReference", func(t *testing.T) {
		NewWorkbookTestCase(t, "line reference").
			SetLines("Sheet1", "100", "LN1 * 2").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, 100).
			AssertLineEq("Sheet1", 2, 200).
			End()
	})

	t.Run("CrossSheetReference", func(t *testing.T) {
		NewWorkbookTestCase(t, "cross-sheet edit").
			SetLines("Data", "50").
			SetLines("Main", "S.Data.LN1 + 10", "5").
			RunAndAssertNoError().
			AssertLineEq("Main", 1, 60).
			Edit("Data", 1, "70").
			Activate("Main").
			AssertLineEq("Data", 1, 70).
			AssertLineEq("Main", 1, 80).
			AssertLineEq("Main", 2, 5).
			End()
	})

	t.Run("TimecodeToFrames", func(t *testing.T) {
		NewWorkbookTestCase(t, "TC frames").
			SetLines("Sheet1", `TC(24, "01:00:00:00")`).
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, 86400).
			End()
	})

	t.Run("AspectRatio", func(t *testing.T) {
		NewWorkbookTestCase(t, "AR solves width").
			SetLines("Sheet1", "AR(1920x1080, ?x2000)").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, "3556x2000").
			End()
	})

	t.Run("CommentBoundaries", func(t *testing.T) {
		NewWorkbookTestCase(t, "sum over comments").
			SetLines("Sheet1", "1", "2", "3", "sum(above)", "sum(LN1:LN3)").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 4, 6).
			AssertLineEq("Sheet1", 5, 6).
			Edit("Sheet1", 2, "::: note").
			Recompute().
			AssertLineEmpty("Sheet1", 2).
			AssertLineEq("Sheet1", 4, 3).
			AssertLineEq("Sheet1", 5, 4).
			End()
	})

	t.Run("UnitConversion", func(t *testing.T) {
		NewWorkbookTestCase(t, "miles to km").
			SetLines("Sheet1", "5 miles to km").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, 8.04672).
			AssertLineEq("Sheet1", 1, "8.04672 km").
			End()
	})

	t.Run("CurrencyFallsBackOnTimeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CurrencyTimeout = 20 * time.Millisecond
		NewWorkbookTestCase(t, "usd to eur", WithConfig(cfg), WithRateProvider(&blockingProvider{})).
			SetLines("Sheet1", "100 usd to eur").
			RunAndAssertNoError().
			AssertLineFn("Sheet1", 1, func(result Result, t *testing.T) {
				require.Equal(t, ResultNumber, result.Kind, result.String())
				assert.InDelta(t, 92, result.Number, 1e-9)
				assert.Equal(t, "EUR", result.Unit)
				require.NotNil(t, result.Notice)
				assert.Equal(t, ErrorKindProviderUnavailable, result.Notice.Kind)
			}).
			End()
	})
}

func TestCrossSheetEditSkipsUnrelatedLines(t *testing.T) {
	wb := newTestWorkbook(t)
	data, err := wb.AddWorksheet("Data")
	require.NoError(t, err)
	main, err := wb.AddWorksheet("Main")
	require.NoError(t, err)

	dataLines, err := wb.SetLines(data, []string{"50"})
	require.NoError(t, err)
	mainLines, err := wb.SetLines(main, []string{"S.Data.LN1 + 10", "5", "LN2 * 3"})
	require.NoError(t, err)
	_, err = wb.RecomputeAll()
	require.NoError(t, err)

	_, err = wb.ApplyEdit(data, dataLines[0], "70")
	require.NoError(t, err)
	strategy, results, err := wb.OnSheetActivated(main)
	require.NoError(t, err)

	assert.Equal(t, TierDependencyAware, strategy.Tier())
	assert.Contains(t, results, LineKey{Sheet: data, Line: dataLines[0]})
	require.Contains(t, results, LineKey{Sheet: main, Line: mainLines[0]})
	assert.Equal(t, 80.0, results[LineKey{Sheet: main, Line: mainLines[0]}].Number)
	assert.NotContains(t, results, LineKey{Sheet: main, Line: mainLines[1]})
	assert.NotContains(t, results, LineKey{Sheet: main, Line: mainLines[2]})
}

func TestPowerPrecedence(t *testing.T) {
	NewWorkbookTestCase(t, "power precedence").
		SetLines("Sheet1",
			"-2^2",
			"(-2)^2",
			"2^-1",
			"2^3^2",
			"-2^2 * 3",
			"10 - -2^2",
		).
		RunAndAssertNoError().
		AssertLineEq("Sheet1", 1, -4).
		AssertLineEq("Sheet1", 2, 4).
		AssertLineEq("Sheet1", 3, 0.5).
		AssertLineEq("Sheet1", 4, 512).
		AssertLineEq("Sheet1", 5, -12).
		AssertLineEq("Sheet1", 6, 14).
		End()
}

func TestBasicValues(t *testing.T) {
	NewWorkbookTestCase(t, "literals").
		SetLines("Sheet1",
			"42",
			"1,234 + 1",
			"2.5e3",
			`"hello"`,
			"",
			"::: a comment",
			"pi",
			"50%",
			"200 * 10%",
			"2^3^2",
			"(1 + 2) * 3",
			"-4 + 1",
		).
		RunAndAssertNoError().
		AssertLineEq("Sheet1", 1, 42).
		AssertLineEq("Sheet1", 2, 1235).
		AssertLineEq("Sheet1", 3, 2500).
		AssertLineEq("Sheet1", 4, "hello").
		AssertLineEmpty("Sheet1", 5).
		AssertLineEmpty("Sheet1", 6).
		AssertLineEq("Sheet1", 7, math.Pi).
		AssertLineEq("Sheet1", 8, 0.5).
		AssertLineEq("Sheet1", 9, 20).
		AssertLineEq("Sheet1", 10, 512).
		AssertLineEq("Sheet1", 11, 9).
		AssertLineEq("Sheet1", 12, -3).
		End()
}

func TestLineErrors(t *testing.T) {
	NewWorkbookTestCase(t, "error kinds").
		SetLines("Sheet1",
			"1 / 0",
			"1 +",
			"(1 + 2",
			"foo",
			"LN99",
			"",
			"LN6 + 1",
			"LN1 + 1",
			`"a" + 1`,
			"5 furlongs",
			"#REF + 1",
			"1 2",
		).
		RunAndAssertNoError().
		AssertLineErr("Sheet1", 1, ErrorKindArithmetic).
		AssertLineErr("Sheet1", 2, ErrorKindParse).
		AssertLineErr("Sheet1", 3, ErrorKindParse).
		AssertLineErr("Sheet1", 4, ErrorKindParse).
		AssertLineErr("Sheet1", 5, ErrorKindUnresolvedReference).
		AssertLineEmpty("Sheet1", 6).
		AssertLineErr("Sheet1", 7, ErrorKindUnresolvedReference).
		AssertLineErr("Sheet1", 8, ErrorKindUnresolvedReference).
		AssertLineErr("Sheet1", 9, ErrorKindInvalidArguments).
		AssertLineErr("Sheet1", 10, ErrorKindUnknownUnit).
		AssertLineErr("Sheet1", 11, ErrorKindUnresolvedReference).
		AssertLineErr("Sheet1", 12, ErrorKindParse).
		End()

	t.Run("OneBadLineDoesNotStopThePass", func(t *testing.T) {
		NewWorkbookTestCase(t, "isolation").
			SetLines("Sheet1", "1 / 0", "7", "LN2 + 1").
			RunAndAssertNoError().
			AssertLineErr("Sheet1", 1, ErrorKindArithmetic).
			AssertLineEq("Sheet1", 3, 8).
			End()
	})
}

func TestCircularReferences(t *testing.T) {
	t.Run("SelfReference", func(t *testing.T) {
		NewWorkbookTestCase(t, "self").
			SetLines("Sheet1", "LN1 + 1").
			RunAndAssertNoError().
			AssertLineErr("Sheet1", 1, ErrorKindCircularReference).
			End()
	})

	t.Run("TwoLineCycle", func(t *testing.T) {
		NewWorkbookTestCase(t, "mutual").
			SetLines("Sheet1", "LN2", "LN1", "LN1 * 2", "7").
			RunAndAssertNoError().
			AssertLineErr("Sheet1", 1, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 2, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 3, ErrorKindUnresolvedReference).
			AssertLineEq("Sheet1", 4, 7).
			End()
	})

	t.Run("LongCycle", func(t *testing.T) {
		NewWorkbookTestCase(t, "three lines").
			SetLines("Sheet1", "LN3 + 1", "LN1 + 1", "LN2 + 1").
			RunAndAssertNoError().
			AssertLineErr("Sheet1", 1, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 2, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 3, ErrorKindCircularReference).
			End()
	})

	t.Run("EditClosesCycle", func(t *testing.T) {
		tc := NewWorkbookTestCase(t, "edit closes cycle").
			SetLines("Sheet1", "LN3 + 1", "LN1 + 1", "1", "LN2 * 2").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 4, 6).
			Edit("Sheet1", 3, "LN2 + 1").
			Recompute().
			AssertLineErr("Sheet1", 1, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 2, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 3, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 4, ErrorKindUnresolvedReference)

		ws, _ := tc.workbook.worksheet(tc.sheet("Sheet1"))
		for pos := 1; pos <= 3; pos++ {
			assert.True(t, ws.graph.InCycle(tc.line("Sheet1", pos)), "LN%d", pos)
		}
		assert.False(t, ws.graph.InCycle(tc.line("Sheet1", 4)))
		tc.End()
	})

	t.Run("BreakingTheCycle", func(t *testing.T) {
		NewWorkbookTestCase(t, "edit breaks cycle").
			SetLines("Sheet1", "LN2", "LN1", "LN1 * 2").
			RunAndAssertNoError().
			AssertLineErr("Sheet1", 1, ErrorKindCircularReference).
			Edit("Sheet1", 2, "5").
			Recompute().
			AssertLineEq("Sheet1", 1, 5).
			AssertLineEq("Sheet1", 2, 5).
			AssertLineEq("Sheet1", 3, 10).
			End()
	})

	t.Run("CreatingACycle", func(t *testing.T) {
		NewWorkbookTestCase(t, "edit creates cycle").
			SetLines("Sheet1", "1", "LN1 + 1", "LN2 + 1").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 3, 3).
			Edit("Sheet1", 1, "LN3").
			Recompute().
			AssertLineErr("Sheet1", 1, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 2, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 3, ErrorKindCircularReference).
			End()
	})

	t.Run("DirectionalSelfRead", func(t *testing.T) {
		NewWorkbookTestCase(t, "sum above reads below").
			SetLines("Sheet1", "sum(below)", "LN1 + 1").
			RunAndAssertNoError().
			AssertLineErr("Sheet1", 1, ErrorKindCircularReference).
			AssertLineErr("Sheet1", 2, ErrorKindCircularReference).
			End()
	})
}

func TestLineReferences(t *testing.T) {
	t.Run("ForwardReference", func(t *testing.T) {
		NewWorkbookTestCase(t, "reads below").
			SetLines("Sheet1", "LN2 * 10", "4").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, 40).
			End()
	})

	t.Run("ChainPropagates", func(t *testing.T) {
		NewWorkbookTestCase(t, "chain").
			SetLines("Sheet1", "1", "LN1 + 1", "LN2 + 1", "LN3 + 1").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 4, 4).
			Edit("Sheet1", 1, "10").
			Recompute().
			AssertLineEq("Sheet1", 4, 13).
			End()
	})

	t.Run("LastEditWins", func(t *testing.T) {
		NewWorkbookTestCase(t, "coalesced edits").
			SetLines("Sheet1", "1", "LN1 * 2").
			RunAndAssertNoError().
			Edit("Sheet1", 1, "2").
			Edit("Sheet1", 1, "3").
			Recompute().
			AssertLineText("Sheet1", 1, "3").
			AssertLineEq("Sheet1", 2, 6).
			End()
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		NewWorkbookTestCase(t, "ln1").
			SetLines("Sheet1", "3", "ln1 + Ln1", "SUM(ln1:LN2)").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 2, 6).
			AssertLineEq("Sheet1", 3, 9).
			End()
	})
}

func TestCrossSheetReferences(t *testing.T) {
	t.Run("QuotedName", func(t *testing.T) {
		NewWorkbookTestCase(t, "quoted").
			SetLines("My Sheet", "7").
			SetLines("Main", "S.'My Sheet'.LN1 * 2").
			RunAndAssertNoError().
			AssertLineEq("Main", 1, 14).
			End()
	})

	t.Run("NameIsCaseInsensitive", func(t *testing.T) {
		NewWorkbookTestCase(t, "folded").
			SetLines("Data", "7").
			SetLines("Main", "S.data.LN1 + S.DATA.LN1").
			RunAndAssertNoError().
			AssertLineEq("Main", 1, 14).
			End()
	})

	t.Run("ReaderCreatedFirst", func(t *testing.T) {
		NewWorkbookTestCase(t, "reader sorts before source").
			SetLines("Alpha", "S.Zeta.LN1 + 1").
			SetLines("Zeta", "41").
			RunAndAssertNoError().
			AssertLineEq("Alpha", 1, 42).
			End()
	})

	t.Run("MissingSheetThenAdded", func(t *testing.T) {
		NewWorkbookTestCase(t, "late sheet").
			SetLines("Sheet1", "S.Later.LN1 * 2").
			RunAndAssertNoError().
			AssertLineErr("Sheet1", 1, ErrorKindUnresolvedReference).
			SetLines("Later", "21").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 1, 42).
			End()
	})

	t.Run("MissingLine", func(t *testing.T) {
		NewWorkbookTestCase(t, "no such line").
			SetLines("Data", "1").
			SetLines("Main", "S.Data.LN5").
			RunAndAssertNoError().
			AssertLineErr("Main", 1, ErrorKindUnresolvedReference).
			End()
	})

	t.Run("SelfSheetReference", func(t *testing.T) {
		NewWorkbookTestCase(t, "own sheet by name").
			SetLines("Sheet1", "5", "S.Sheet1.LN1 + 1").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 2, 6).
			End()
	})

	t.Run("ChainOfSheets", func(t *testing.T) {
		NewWorkbookTestCase(t, "three sheets").
			SetLines("A", "1").
			SetLines("B", "S.A.LN1 + 1").
			SetLines("C", "S.B.LN1 + 1").
			RunAndAssertNoError().
			AssertLineEq("C", 1, 3).
			Edit("A", 1, "10").
			Activate("C").
			AssertLineEq("B", 1, 11).
			AssertLineEq("C", 1, 12).
			End()
	})

	t.Run("EagerPropagation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EagerPropagation = true
		NewWorkbookTestCase(t, "eager", WithConfig(cfg)).
			SetLines("Data", "1").
			SetLines("Main", "S.Data.LN1 * 100").
			RunAndAssertNoError().
			Edit("Data", 1, "2").
			Recompute().
			AssertLineEq("Main", 1, 200).
			End()
	})

	t.Run("LazyWithoutActivation", func(t *testing.T) {
		NewWorkbookTestCase(t, "lazy").
			SetLines("Data", "1").
			SetLines("Main", "S.Data.LN1 * 100").
			RunAndAssertNoError().
			Edit("Data", 1, "2").
			Recompute().
			AssertLineEq("Data", 1, 2).
			AssertLineEq("Main", 1, 100).
			Activate("Main").
			AssertLineEq("Main", 1, 200).
			End()
	})
}

func TestStructuralRewrites(t *testing.T) {
	t.Run("InsertShiftsLocalReferences", func(t *testing.T) {
		NewWorkbookTestCase(t, "insert").
			SetLines("Sheet1", "10", "LN1 * 2").
			RunAndAssertNoError().
			InsertLine("Sheet1", 1, "1").
			AssertLineText("Sheet1", 3, "LN2 * 2").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 3, 20).
			End()
	})

	t.Run("DeleteBreaksAndShifts", func(t *testing.T) {
		NewWorkbookTestCase(t, "delete").
			SetLines("Sheet1", "10", "20", "30", "LN2 + 1", "LN3 + 1").
			RunAndAssertNoError().
			DeleteLine("Sheet1", 2).
			AssertLineText("Sheet1", 3, "#REF + 1").
			AssertLineText("Sheet1", 4, "LN2 + 1").
			RunAndAssertNoError().
			AssertLineErr("Sheet1", 3, ErrorKindUnresolvedReference).
			AssertLineEq("Sheet1", 4, 31).
			End()
	})

	t.Run("RangesFollowTheirEnds", func(t *testing.T) {
		NewWorkbookTestCase(t, "range shift").
			SetLines("Sheet1", "1", "2", "sum(LN1:LN2)").
			RunAndAssertNoError().
			InsertLine("Sheet1", 1, "::: header").
			AssertLineText("Sheet1", 4, "sum(LN2:LN3)").
			RunAndAssertNoError().
			AssertLineEq("Sheet1", 4, 3).
			End()
	})

	t.Run("CrossSheetInsert", func(t *testing.T) {
		NewWorkbookTestCase(t, "cross insert").
			SetLines("Data", "1", "2").
			SetLines("Main", "S.Data.LN2 * 10").
			RunAndAssertNoError().
			InsertLine("Data", 1, "100").
			AssertLineText("Main", 1, "S.Data.LN3 * 10").
			Activate("Main").
			AssertLineEq("Main", 1, 20).
			End()
	})

	t.Run("CrossSheetInsertWithMatchingLineID", func(t *testing.T) {
		// Main!LN3 and the inserted Data line share the same per-sheet id
		NewWorkbookTestCase(t, "cross insert id").
			SetLines("Data", "1", "2").
			SetLines("Main", "5", "6", "S.Data.LN2 * 10").
			RunAndAssertNoError().
			InsertLine("Data", 1, "100").
			AssertLineText("Main", 3, "S.Data.LN3 * 10").
			Activate("Main").
			AssertLineEq("Main", 3, 20).
			End()
	})

	t.Run("CrossSheetDelete", func(t *testing.T) {
		NewWorkbookTestCase(t, "cross delete").
			SetLines("Data", "1", "2").
			SetLines("Main", "S.Data.LN1 + S.Data.LN2").
			RunAndAssertNoError().
			DeleteLine("Data", 1).
			AssertLineText("Main", 1, "#REF + S.Data.LN1").
			Activate("Main").
			AssertLineErr("Main", 1, ErrorKindUnresolvedReference).
			End()
	})

	t.Run("RenameRewritesReaders", func(t *testing.T) {
		NewWorkbookTestCase(t, "rename").
			SetLines("Data", "1", "2").
			SetLines("Main", "S.Data.LN2 * 10", "S.data.LN1").
			RunAndAssertNoError().
			RenameWorksheet("Data", "Source Data").
			AssertWorksheetExists("Data", false).
			AssertWorksheetExists("source data", true).
			AssertLineText("Main", 1, "S.'Source Data'.LN2 * 10").
			AssertLineText("Main", 2, "S.'Source Data'.LN1").
			Activate("Main").
			AssertLineEq("Main", 1, 20).
			Edit("Source Data", 2, "3").
			Activate("Main").
			AssertLineEq("Main", 1, 30).
			End()
	})

	t.Run("RemoveBreaksReaders", func(t *testing.T) {
		NewWorkbookTestCase(t, "remove").
			SetLines("Data", "1").
			SetLines("Main", "S.Data.LN1 * 10", "5").
			RunAndAssertNoError().
			RemoveWorksheet("Data").
			AssertWorksheetExists("Data", false).
			AssertLineText("Main", 1, "#REF * 10").
			Activate("Main").
			AssertLineErr("Main", 1, ErrorKindUnresolvedReference).
			AssertLineEq("Main", 2, 5).
			End()
	})
}

func TestRewritesAreReported(t *testing.T) {
	wb := newTestWorkbook(t)
	data, err := wb.AddWorksheet("Data")
	require.NoError(t, err)
	main, err := wb.AddWorksheet("Main")
	require.NoError(t, err)
	_, err = wb.SetLines(data, []string{"1"})
	require.NoError(t, err)
	mainLines, err := wb.SetLines(main, []string{"S.Data.LN1", "4"})
	require.NoError(t, err)

	rewrites, err := wb.RenameWorksheet(data, "Numbers")
	require.NoError(t, err)
	assert.Equal(t, []TextRewrite{{Sheet: main, Line: mainLines[0], Text: "S.Numbers.LN1"}}, rewrites)

	rewrites, err = wb.RenameWorksheet(data, "NUMBERS")
	require.NoError(t, err)
	assert.Empty(t, rewrites, "case-only rename keeps texts")

	rewrites, err = wb.RemoveWorksheet(data)
	require.NoError(t, err)
	assert.Equal(t, []TextRewrite{{Sheet: main, Line: mainLines[0], Text: "#REF"}}, rewrites)
}

func TestStableLineIdentity(t *testing.T) {
	wb := newTestWorkbook(t)
	sheet, err := wb.AddWorksheet("Sheet1")
	require.NoError(t, err)
	ids, err := wb.SetLines(sheet, []string{"1", "2", "LN2 * 5"})
	require.NoError(t, err)
	_, err = wb.RecomputeAll()
	require.NoError(t, err)

	inserted, _, err := wb.InsertLine(sheet, 1, "0")
	require.NoError(t, err)
	assert.NotContains(t, ids, inserted)

	lines, err := wb.Lines(sheet)
	require.NoError(t, err)
	assert.Equal(t, []LineID{inserted, ids[0], ids[1], ids[2]}, lines)

	_, err = wb.RecomputeAll()
	require.NoError(t, err)
	result, err := wb.Result(sheet, ids[2])
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.Number)

	_, err = wb.DeleteLine(sheet, ids[0])
	require.NoError(t, err)
	_, err = wb.Result(sheet, ids[0])
	assert.True(t, IsAppError(err, NotFound))

	again, _, err := wb.InsertLine(sheet, 2, "7")
	require.NoError(t, err)
	assert.Greater(t, again, inserted, "ids are never reused")
}

func TestEvaluateLinePreview(t *testing.T) {
	wb := newTestWorkbook(t)
	sheet, err := wb.AddWorksheet("Sheet1")
	require.NoError(t, err)
	ids, err := wb.SetLines(sheet, []string{"10", "LN1 + 1", "LN2 * 2"})
	require.NoError(t, err)

	preview, err := wb.EvaluateLine(sheet, ids[1], "LN1 * 5")
	require.NoError(t, err)
	assert.Equal(t, 50.0, preview.Number)

	committed, err := wb.Result(sheet, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 11.0, committed.Number, "preview must not commit")
	text, err := wb.LineText(sheet, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "LN1 + 1", text)

	preview, err = wb.EvaluateLine(sheet, ids[1], "LN3")
	require.NoError(t, err)
	assert.Equal(t, ErrorKindCircularReference, preview.ErrorKind(), "LN3 reads the previewed line")

	preview, err = wb.EvaluateLine(sheet, ids[0], "::: comment")
	require.NoError(t, err)
	assert.True(t, preview.IsEmpty())

	preview, err = wb.EvaluateLine(sheet, ids[0], "1 +")
	require.NoError(t, err)
	assert.Equal(t, ErrorKindParse, preview.ErrorKind())

	_, err = wb.EvaluateLine(sheet, 999, "1")
	assert.True(t, IsAppError(err, NotFound))
}

func TestRecomputeIsIdempotent(t *testing.T) {
	wb := newTestWorkbook(t)
	sheet, err := wb.AddWorksheet("Sheet1")
	require.NoError(t, err)
	_, err = wb.SetLines(sheet, []string{"1", "LN1 + 1", "sum(above)"})
	require.NoError(t, err)

	first, err := wb.RecomputeAll()
	require.NoError(t, err)
	assert.Len(t, first, 3)
	before, err := wb.Results(sheet)
	require.NoError(t, err)

	second, err := wb.RecomputeAll()
	require.NoError(t, err)
	assert.Empty(t, second, "a clean workbook evaluates nothing")
	after, err := wb.Results(sheet)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	strategy, _, err := wb.OnSheetActivated(sheet)
	require.NoError(t, err)
	assert.Equal(t, TierClean, strategy.Tier())
}

func TestCleanSheetChanges(t *testing.T) {
	wb := newTestWorkbook(t)
	data, err := wb.AddWorksheet("Data")
	require.NoError(t, err)
	main, err := wb.AddWorksheet("Main")
	require.NoError(t, err)
	_, err = wb.SetLines(data, []string{"1"})
	require.NoError(t, err)
	mainLines, err := wb.SetLines(main, []string{"S.Data.LN1", "D(today)", "2"})
	require.NoError(t, err)
	_, err = wb.RecomputeAll()
	require.NoError(t, err)

	dataWs, err := wb.worksheet(data)
	require.NoError(t, err)
	mainWs, err := wb.worksheet(main)
	require.NoError(t, err)
	require.True(t, mainWs.isClean())

	changes := mainWs.changes()
	assert.True(t, changes.HasCache)
	assert.Empty(t, changes.CrossSheetLines, "clean sheets are not scanned")
	assert.Empty(t, changes.VolatileLines)
	assert.Equal(t, TierClean, ClassifyRecompute(changes, mainWs.graph).Tier())

	mainWs.dirtyDeps[dataWs.key] = struct{}{}
	assert.False(t, mainWs.isClean())
	changes = mainWs.changes()
	assert.Equal(t, []LineID{mainLines[0]}, changes.CrossSheetLines)
	assert.Equal(t, []LineID{mainLines[1]}, changes.VolatileLines)
	assert.Equal(t, []string{dataWs.key}, changes.DirtyDependencies)
}

// incremental passes must land on the same results as evaluating the final
// texts from scratch
func TestIncrementalMatchesFullRecompute(t *testing.T) {
	type op struct {
		kind  string // edit, insert, delete, rename
		sheet string
		pos   int
		text  string
	}
	type step struct {
		ops      []op
		activate bool
		texts    []op // expected line texts after the ops
	}
	// the sheets allocate the same line ids, so structural edits on Data
	// collide with Main's ids
	initial := map[string][]string{
		"Data": {"10", "20", "sum(above)", "::: rates", "1.5"},
		"Main": {"S.Data.LN3 * 2", "LN1 + S.Data.LN5", "5 km + 300 m", "mean(LN1:LN2)", "LN6", "LN5 + S.Data.LN2", "S.Data.LN1 + 1"},
	}
	steps := []step{
		{ops: []op{{"edit", "Data", 1, "15"}}},
		{ops: []op{{"edit", "Main", 3, "LN1 / 2"}, {"edit", "Data", 5, "2"}}, activate: true},
		{ops: []op{{"insert", "Data", 1, "100"}}, texts: []op{
			{"text", "Main", 6, "LN5 + S.Data.LN3"},
			{"text", "Main", 7, "S.Data.LN2 + 1"},
		}},
		{ops: []op{{"edit", "Main", 5, "3"}}, activate: true},
		{ops: []op{{"rename", "Data", 0, "Source Data"}}, activate: true},
		{ops: []op{{"delete", "Source Data", 2, ""}}, texts: []op{
			{"text", "Main", 1, "S.'Source Data'.LN3 * 2"},
			{"text", "Main", 6, "LN5 + S.'Source Data'.LN2"},
			{"text", "Main", 7, "#REF + 1"},
		}},
		{ops: []op{{"insert", "Main", 2, "S.'Source Data'.LN1 * 3"}}, activate: true},
		{ops: []op{{"edit", "Source Data", 1, "50"}}, activate: true},
		{ops: []op{{"delete", "Main", 1, ""}, {"edit", "Source Data", 2, "1 / 0"}}},
		{ops: []op{{"rename", "Source Data", 0, "Data"}, {"edit", "Data", 2, "25"}}, activate: true},
	}

	incremental := newTestWorkbook(t)
	for _, name := range []string{"Data", "Main"} {
		sheet, err := incremental.AddWorksheet(name)
		require.NoError(t, err)
		_, err = incremental.SetLines(sheet, initial[name])
		require.NoError(t, err)
	}
	_, err := incremental.RecomputeAll()
	require.NoError(t, err)

	lineAt := func(sheet SheetID, pos int) LineID {
		lines, err := incremental.Lines(sheet)
		require.NoError(t, err)
		require.LessOrEqual(t, pos, len(lines))
		return lines[pos-1]
	}

	tiers := make(map[Tier]int)
	for i, st := range steps {
		for _, o := range st.ops {
			sheet, ok := incremental.WorksheetByName(o.sheet)
			require.True(t, ok, "step %d: sheet %s", i, o.sheet)
			switch o.kind {
			case "edit":
				_, err = incremental.ApplyEdit(sheet, lineAt(sheet, o.pos), o.text)
			case "insert":
				_, _, err = incremental.InsertLine(sheet, o.pos, o.text)
			case "delete":
				_, err = incremental.DeleteLine(sheet, lineAt(sheet, o.pos))
			case "rename":
				_, err = incremental.RenameWorksheet(sheet, o.text)
			}
			require.NoError(t, err, "step %d: %s %s", i, o.kind, o.sheet)
		}
		for _, want := range st.texts {
			sheet, _ := incremental.WorksheetByName(want.sheet)
			text, err := incremental.LineText(sheet, lineAt(sheet, want.pos))
			require.NoError(t, err)
			assert.Equal(t, want.text, text, "step %d: %s!LN%d", i, want.sheet, want.pos)
		}

		if st.activate {
			main, _ := incremental.WorksheetByName("Main")
			strategy, _, err := incremental.OnSheetActivated(main)
			require.NoError(t, err)
			tiers[strategy.Tier()]++
		} else {
			_, err = incremental.RecomputeAll()
			require.NoError(t, err)
		}

		fresh := newTestWorkbook(t)
		for _, sheet := range incremental.Worksheets() {
			name, err := incremental.WorksheetName(sheet)
			require.NoError(t, err)
			lines, err := incremental.Lines(sheet)
			require.NoError(t, err)
			texts := make([]string, len(lines))
			for j, line := range lines {
				texts[j], err = incremental.LineText(sheet, line)
				require.NoError(t, err)
			}
			id, err := fresh.AddWorksheet(name)
			require.NoError(t, err)
			_, err = fresh.SetLines(id, texts)
			require.NoError(t, err)
		}
		_, err = fresh.RecomputeAll()
		require.NoError(t, err)

		for _, sheet := range incremental.Worksheets() {
			name, _ := incremental.WorksheetName(sheet)
			other, ok := fresh.WorksheetByName(name)
			require.True(t, ok)
			got, err := incremental.Results(sheet)
			require.NoError(t, err)
			want, err := fresh.Results(other)
			require.NoError(t, err)
			require.Len(t, got, len(want))
			for j := range want {
				assert.True(t, want[j].Equal(got[j]), "step %d %s!LN%d: got %s, want %s", i, name, j+1, got[j], want[j])
			}
		}
	}

	assert.Positive(t, tiers[TierSelectiveCrossSheet], "renames refresh readers selectively: %v", tiers)
	assert.Positive(t, tiers[TierDependencyAware], "%v", tiers)
}

func TestVolatileLines(t *testing.T) {
	clock := newTestClock(2024, time.March, 15)
	tc := NewWorkbookTestCase(t, "today", WithClock(clock)).
		SetLines("Sheet1", "D(today)", "1", "D(today + 1)").
		RunAndAssertNoError().
		AssertLineEq("Sheet1", 1, "2024-03-15").
		AssertLineEq("Sheet1", 3, "2024-03-16")

	clock.Set(time.Date(2024, time.March, 20, 9, 0, 0, 0, time.UTC))
	tc.Edit("Sheet1", 2, "2").
		Recompute().
		AssertLineEq("Sheet1", 1, "2024-03-20").
		AssertLineEq("Sheet1", 3, "2024-03-21").
		End()
}

func TestWorksheetOperations(t *testing.T) {
	t.Run("DuplicateName", func(t *testing.T) {
		NewWorkbookTestCase(t, "duplicate").
			AddWorksheet("sheet1").
			ExpectAppError(AlreadyExists).
			End()
	})

	t.Run("InvalidNames", func(t *testing.T) {
		NewWorkbookTestCase(t, "invalid").
			AddWorksheet("").
			ExpectAppError(InvalidArgument).
			AddWorksheet("   ").
			ExpectAppError(InvalidArgument).
			AddWorksheet("it's").
			ExpectAppError(InvalidArgument).
			End()
	})

	t.Run("RenameOntoExisting", func(t *testing.T) {
		NewWorkbookTestCase(t, "rename clash").
			AddWorksheet("Other").
			RenameWorksheet("Other", "SHEET1").
			ExpectAppError(AlreadyExists).
			End()
	})

	t.Run("Lifecycle", func(t *testing.T) {
		NewWorkbookTestCase(t, "add rename remove").
			AddWorksheet("Temp").
			AssertWorksheetExists("Temp", true).
			RenameWorksheet("Temp", "Scratch").
			AssertWorksheetExists("Temp", false).
			AssertWorksheetExists("Scratch", true).
			RemoveWorksheet("Scratch").
			AssertWorksheetExists("Scratch", false).
			End()
	})

	t.Run("InsertOutOfRange", func(t *testing.T) {
		NewWorkbookTestCase(t, "bad position").
			SetLines("Sheet1", "1").
			InsertLine("Sheet1", 3, "2").
			ExpectAppError(InvalidArgument).
			InsertLine("Sheet1", 0, "2").
			ExpectAppError(InvalidArgument).
			InsertLine("Sheet1", 2, "2").
			End()
	})

	t.Run("UnknownIDs", func(t *testing.T) {
		wb := newTestWorkbook(t)
		_, err := wb.Lines(42)
		assert.True(t, IsAppError(err, NotFound))
		_, err = wb.ApplyEdit(42, 1, "1")
		assert.True(t, IsAppError(err, NotFound))

		sheet, err := wb.AddWorksheet("Sheet1")
		require.NoError(t, err)
		_, err = wb.ApplyEdit(sheet, 7, "1")
		assert.True(t, IsAppError(err, NotFound))
		_, _, err = wb.OnSheetActivated(42)
		assert.True(t, IsAppError(err, NotFound))
	})

	t.Run("PendingEditsBeforeRemove", func(t *testing.T) {
		wb := newTestWorkbook(t)
		sheet, err := wb.AddWorksheet("Sheet1")
		require.NoError(t, err)
		ids, err := wb.SetLines(sheet, []string{"1"})
		require.NoError(t, err)
		_, err = wb.ApplyEdit(sheet, ids[0], "2")
		require.NoError(t, err)
		_, err = wb.RemoveWorksheet(sheet)
		require.NoError(t, err)
		assert.Empty(t, wb.PendingChanges().DirtySheets)
	})
}

func TestPendingChanges(t *testing.T) {
	wb := newTestWorkbook(t)
	a, err := wb.AddWorksheet("A")
	require.NoError(t, err)
	b, err := wb.AddWorksheet("B")
	require.NoError(t, err)
	aLines, err := wb.SetLines(a, []string{"1", "2"})
	require.NoError(t, err)
	bLines, err := wb.SetLines(b, []string{"3"})
	require.NoError(t, err)

	_, err = wb.ApplyEdit(b, bLines[0], "4")
	require.NoError(t, err)
	_, err = wb.ApplyEdit(a, aLines[1], "5")
	require.NoError(t, err)
	changes, err := wb.ApplyEdit(a, aLines[1], "6")
	require.NoError(t, err)

	assert.Equal(t, []SheetID{a, b}, changes.DirtySheets)
	assert.Equal(t, []LineID{aLines[1]}, changes.DirtyLines[a])
	assert.Equal(t, []LineID{bLines[0]}, changes.DirtyLines[b])

	text, err := wb.LineText(a, aLines[1])
	require.NoError(t, err)
	assert.Equal(t, "2", text, "edits apply at the next pass")

	_, err = wb.RunScheduledRecompute()
	require.NoError(t, err)
	assert.Empty(t, wb.PendingChanges().DirtySheets)
	text, err = wb.LineText(a, aLines[1])
	require.NoError(t, err)
	assert.Equal(t, "6", text)
}

func TestConcurrentEdits(t *testing.T) {
	wb := newTestWorkbook(t)
	sheet, err := wb.AddWorksheet("Sheet1")
	require.NoError(t, err)
	ids, err := wb.SetLines(sheet, []string{"0", "LN1 * 2"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			_, err := wb.ApplyEdit(sheet, ids[0], fmt.Sprint(i))
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := wb.RunScheduledRecompute()
			assert.NoError(t, err)
			_, err = wb.Results(sheet)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	_, err = wb.RecomputeAll()
	require.NoError(t, err)
	result, err := wb.Result(sheet, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 400.0, result.Number)
}

func TestRunnableWorkbook(t *testing.T) {
	var logged []string
	printLn := func(s string) { logged = append(logged, s) }

	r := NewRunnableWorkbook(printLn, WithLogger(discardLogger())).
		SetLines("Data", "2", "3").
		SetLines("Main", "S.Data.LN1 * S.Data.LN2").
		RecomputeAll().
		Log("Main", 1).
		Edit("Data", 1, "4").
		Activate("Main").
		Log("Main", 1)
	require.NoError(t, r.Error())
	assert.Equal(t, []string{"Main!LN1: 6", "Main!LN1: 12"}, logged)

	values := r.Values("Data")
	require.Len(t, values, 2)
	assert.Equal(t, 4.0, values[0].Number)

	r.DeleteLine("Missing", 1)
	assert.True(t, IsAppError(r.Error(), NotFound))
	r.OnError(func(error) error { return nil })
	assert.NoError(t, r.Error())

	wb, err := r.If(true, func(r *RunnableWorkbook) *RunnableWorkbook {
		return r.InsertLine("Data", 1, "1")
	}).Run()
	require.NoError(t, err)
	main, _ := wb.WorksheetByName("Main")
	results, err := wb.Results(main)
	require.NoError(t, err)
	assert.Equal(t, 12.0, results[0].Number, "the references follow the shifted data lines")

	assert.Panics(t, func() {
		NewRunnableWorkbook(printLn).AddWorksheet("").Must()
	})
}
