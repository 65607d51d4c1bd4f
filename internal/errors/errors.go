package errors

import (
	stderrors "errors"
	"fmt"

	"srgscan/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. The code is inherited from a
// wrapped AppError, otherwise derived from the domain error it carries.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    GetCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the code of the outermost AppError, the code matching a
// domain error, or CodeInternalError.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case stderrors.Is(err, core.ErrMalformedMatrix), stderrors.Is(err, core.ErrInvalidExpression):
		return CodeMalformedMatrix
	case stderrors.Is(err, core.ErrInsufficientData):
		return CodeInsufficientData
	case stderrors.Is(err, core.ErrDegenerateDistribution):
		return CodeDegenerateDistribution
	}
	return CodeInternalError
}

// Predefined error codes
const (
	CodeConfigInvalid          = "CONFIG_INVALID"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeMalformedMatrix        = "MALFORMED_MATRIX"
	CodeInsufficientData       = "INSUFFICIENT_DATA"
	CodeDegenerateDistribution = "DEGENERATE_DISTRIBUTION"
	CodeIOError                = "IO_ERROR"
	CodeInternalError          = "INTERNAL_ERROR"
)

// ExitCode maps an error to a process exit status. Domain errors keep their
// status even when an outer AppError carries a generic code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch code := GetCode(err); {
	case code == CodeConfigInvalid, code == CodeInvalidInput:
		return 2
	case code == CodeMalformedMatrix, core.IsInputError(err):
		return 3
	case code == CodeInsufficientData, code == CodeDegenerateDistribution, core.IsStatisticalError(err):
		return 4
	case code == CodeIOError:
		return 5
	}
	return 1
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func IOError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeIOError,
		Message: message,
		Cause:   cause,
	}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
