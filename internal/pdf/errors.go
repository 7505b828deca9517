package pdf

import (
	"errors"
	"fmt"
)

// ErrorType categorizes PDF processing failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeEmpty
	ErrorTypeTooLarge
	ErrorTypeInvalidHeader
	ErrorTypeProtected
	ErrorTypeCorruptedData
	ErrorTypeMalformedPage
)

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeEmpty:
		return "EMPTY"
	case ErrorTypeTooLarge:
		return "TOO_LARGE"
	case ErrorTypeInvalidHeader:
		return "INVALID_HEADER"
	case ErrorTypeProtected:
		return "PROTECTED"
	case ErrorTypeCorruptedData:
		return "CORRUPTED_DATA"
	case ErrorTypeMalformedPage:
		return "MALFORMED_PAGE"
	default:
		return "UNKNOWN"
	}
}

// PDFError describes a failed PDF operation
type PDFError struct {
	Type ErrorType
	Op   string
	Page int
	Err  error
}

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Op)
	if e.Page > 0 {
		msg += fmt.Sprintf(" (page %d)", e.Page)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *PDFError) Unwrap() error {
	return e.Err
}

// Is matches sentinel PDFErrors by Type
func (e *PDFError) Is(target error) bool {
	var t *PDFError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && t.Op == "" && t.Err == nil
}

// Sentinels usable with errors.Is
var (
	ErrProtected = &PDFError{Type: ErrorTypeProtected}
	ErrTooLarge  = &PDFError{Type: ErrorTypeTooLarge}
)

func newError(t ErrorType, op string, err error) *PDFError {
	return &PDFError{Type: t, Op: op, Err: err}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var pdfErr *PDFError
	if errors.As(err, &pdfErr) {
		return pdfErr.Type
	}
	return ErrorTypeUnknown
}
