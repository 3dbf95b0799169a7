package linecalc

import (
	"fmt"

	"github.com/pkg/errors"
)

// RunnableWorkbook provides a chainable interface for workbook operations.
// sheets are addressed by name and lines by 1-based position. it wraps the
// standard Workbook and tracks errors internally.
type RunnableWorkbook struct {
	workbook *Workbook
	err      error
	printLn  func(string)
}

// NewRunnableWorkbook creates a new RunnableWorkbook. printLn is required
// and will be used for all logging operations (Log, CheckError)
func NewRunnableWorkbook(printLn func(string), opts ...Option) *RunnableWorkbook {
	workbook, err := NewWorkbook(opts...)
	return &RunnableWorkbook{
		workbook: workbook,
		err:      err,
		printLn:  printLn,
	}
}

func (r *RunnableWorkbook) sheet(name string) (SheetID, error) {
	id, ok := r.workbook.WorksheetByName(name)
	if !ok {
		return 0, errors.WithStack(NewApplicationError(NotFound, "worksheet %q not found", name))
	}
	return id, nil
}

func (r *RunnableWorkbook) line(name string, pos int) (SheetID, LineID, error) {
	sheet, err := r.sheet(name)
	if err != nil {
		return 0, 0, err
	}
	lines, err := r.workbook.Lines(sheet)
	if err != nil {
		return 0, 0, err
	}
	if pos < 1 || pos > len(lines) {
		return 0, 0, errors.WithStack(NewApplicationError(InvalidArgument, "worksheet %q has no line %d", name, pos))
	}
	return sheet, lines[pos-1], nil
}

// AddWorksheet adds a new worksheet (chainable)
func (r *RunnableWorkbook) AddWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	_, r.err = r.workbook.AddWorksheet(name)
	return r
}

// WithWorksheet ensures a worksheet exists before continuing (chainable)
func (r *RunnableWorkbook) WithWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	if _, ok := r.workbook.WorksheetByName(name); !ok {
		_, r.err = r.workbook.AddWorksheet(name)
	}
	return r
}

// RemoveWorksheet removes a worksheet (chainable)
func (r *RunnableWorkbook) RemoveWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	sheet, err := r.sheet(name)
	if err != nil {
		r.err = err
		return r
	}
	_, r.err = r.workbook.RemoveWorksheet(sheet)
	return r
}

// RenameWorksheet renames a worksheet (chainable)
func (r *RunnableWorkbook) RenameWorksheet(oldName, newName string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	sheet, err := r.sheet(oldName)
	if err != nil {
		r.err = err
		return r
	}
	_, r.err = r.workbook.RenameWorksheet(sheet, newName)
	return r
}

// SetLines replaces the lines of a worksheet, creating it if needed
// (chainable)
func (r *RunnableWorkbook) SetLines(name string, texts ...string) *RunnableWorkbook {
	if r.WithWorksheet(name).err != nil {
		return r
	}
	sheet, err := r.sheet(name)
	if err != nil {
		r.err = err
		return r
	}
	_, r.err = r.workbook.SetLines(sheet, texts)
	return r
}

// InsertLine inserts a line at a position (chainable)
func (r *RunnableWorkbook) InsertLine(name string, pos int, text string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	sheet, err := r.sheet(name)
	if err != nil {
		r.err = err
		return r
	}
	_, _, r.err = r.workbook.InsertLine(sheet, pos, text)
	return r
}

// DeleteLine deletes the line at a position (chainable)
func (r *RunnableWorkbook) DeleteLine(name string, pos int) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	sheet, line, err := r.line(name, pos)
	if err != nil {
		r.err = err
		return r
	}
	_, r.err = r.workbook.DeleteLine(sheet, line)
	return r
}

// Edit records new text for a line (chainable). it takes effect on the
// next recompute.
func (r *RunnableWorkbook) Edit(name string, pos int, text string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	sheet, line, err := r.line(name, pos)
	if err != nil {
		r.err = err
		return r
	}
	_, r.err = r.workbook.ApplyEdit(sheet, line, text)
	return r
}

// Activate makes a worksheet active and refreshes it (chainable)
func (r *RunnableWorkbook) Activate(name string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	sheet, err := r.sheet(name)
	if err != nil {
		r.err = err
		return r
	}
	_, _, r.err = r.workbook.OnSheetActivated(sheet)
	return r
}

// Recompute runs a scheduled recompute (chainable)
func (r *RunnableWorkbook) Recompute() *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.workbook.RunScheduledRecompute()
	return r
}

// RecomputeAll brings every worksheet up to date (chainable)
func (r *RunnableWorkbook) RecomputeAll() *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.workbook.RecomputeAll()
	return r
}

// Run executes a final recompute and returns the workbook and any error.
// typically the last method in the chain
func (r *RunnableWorkbook) Run() (*Workbook, error) {
	if r.err != nil {
		return nil, r.err
	}
	if _, r.err = r.workbook.RecomputeAll(); r.err != nil {
		return nil, r.err
	}
	return r.workbook, nil
}

// RunOrPanic executes a final recompute and panics if there's an error
func (r *RunnableWorkbook) RunOrPanic() *Workbook {
	workbook, err := r.Run()
	if err != nil {
		panic(err)
	}
	return workbook
}

// Error returns the current error state
func (r *RunnableWorkbook) Error() error {
	return r.err
}

// CheckError logs the current error using the printLn function (chainable)
func (r *RunnableWorkbook) CheckError() *RunnableWorkbook {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Workbook returns the underlying workbook. use with caution as it
// bypasses error tracking.
func (r *RunnableWorkbook) Workbook() *Workbook {
	return r.workbook
}

// Then allows conditional execution based on current error state
func (r *RunnableWorkbook) Then(fn func(*RunnableWorkbook) *RunnableWorkbook) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	return fn(r)
}

// OnError allows error handling in the chain
func (r *RunnableWorkbook) OnError(fn func(error) error) *RunnableWorkbook {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

// Must panics if there's an error (chainable)
func (r *RunnableWorkbook) Must() *RunnableWorkbook {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// If allows conditional operations in the chain
func (r *RunnableWorkbook) If(condition bool, fn func(*RunnableWorkbook) *RunnableWorkbook) *RunnableWorkbook {
	if r.err != nil || !condition {
		return r
	}
	return fn(r)
}

// Value returns the result at a position of a worksheet
func (r *RunnableWorkbook) Value(name string, pos int) Result {
	if r.err != nil {
		return Result{}
	}
	sheet, line, err := r.line(name, pos)
	if err != nil {
		r.err = err
		return Result{}
	}
	result, err := r.workbook.Result(sheet, line)
	if err != nil {
		r.err = err
	}
	return result
}

// Values returns every result of a worksheet in line order
func (r *RunnableWorkbook) Values(name string) []Result {
	if r.err != nil {
		return nil
	}
	sheet, err := r.sheet(name)
	if err != nil {
		r.err = err
		return nil
	}
	results, err := r.workbook.Results(sheet)
	if err != nil {
		r.err = err
		return nil
	}
	return results
}

// Log logs the result of a line using the provided printLn function
// (chainable)
func (r *RunnableWorkbook) Log(name string, pos int) *RunnableWorkbook {
	result := r.Value(name, pos)
	if r.err != nil {
		return r
	}
	r.printLn(fmt.Sprintf("%s!LN%d: %s", name, pos, result.String()))
	return r
}
