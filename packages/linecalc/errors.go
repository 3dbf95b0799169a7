package linecalc

import (
	"fmt"

	"github.com/pkg/errors"
)

// AppErrorCode represents gRPC-style error codes for contract violations of
// the public API. line-level failures never use these; they are Result
// values.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates the caller passed a malformed argument, e.g.
	// an empty sheet name or an out-of-range line position.
	InvalidArgument AppErrorCode = 3

	// NotFound means a sheet or line id does not exist.
	NotFound AppErrorCode = 5

	// AlreadyExists means a sheet with the same (case-insensitive) name
	// already exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates the workbook is not in a state required
	// for the operation, e.g. auto recompute started twice.
	FailedPrecondition AppErrorCode = 9

	// Internal errors. Means some invariants expected by the engine have
	// been broken.
	Internal AppErrorCode = 13
)

var appErrorCodeNames = map[AppErrorCode]string{
	OK:                 "OK",
	Unknown:            "Unknown",
	InvalidArgument:    "InvalidArgument",
	NotFound:           "NotFound",
	AlreadyExists:      "AlreadyExists",
	FailedPrecondition: "FailedPrecondition",
	Internal:           "Internal",
}

func (c AppErrorCode) String() string {
	if name, ok := appErrorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("AppErrorCode(%d)", int(c))
}

// AppError represents errors at the application level (not line errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Code.String() + ": " + e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsAppError reports whether err, after unwrapping pkg/errors context, is an
// AppError with the given code
func IsAppError(err error, code AppErrorCode) bool {
	appErr, ok := errors.Cause(err).(*AppError)
	return ok && appErr.Code == code
}

func sheetNotFound(id SheetID) error {
	return errors.WithStack(NewApplicationError(NotFound, "worksheet %d not found", id))
}

func lineNotFound(sheet string, id LineID) error {
	return errors.WithStack(NewApplicationError(NotFound, "line %d not found in worksheet %q", id, sheet))
}
