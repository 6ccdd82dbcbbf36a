// Package errors provides structured, coded errors for pmdash.
// Every failure surfaced to a caller carries a code and a kind so that the
// HTTP layer and the CLI can report it without string matching.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes for programmatic handling
type Code string

const (
	// Input errors (1xx)
	CodeFileNotFound     Code = "E101"
	CodeInvalidFormat    Code = "E103"
	CodeMissingColumn    Code = "E104"
	CodeInvalidTimestamp Code = "E105"
	CodeEncodingError    Code = "E106"
	CodeMissingField     Code = "E107"

	// Processing errors (2xx)
	CodeParseFailed Code = "E201"

	// Store errors (3xx)
	CodeStoreFailed Code = "E301"
	CodeNoActiveLog Code = "E302"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"

	// Unknown
	CodeUnknown Code = "E999"
)

// Kind names reported to callers alongside the code.
const (
	KindMissingField   = "MissingFieldError"
	KindTimestampParse = "TimestampParseError"
	KindMissingColumn  = "MissingColumnError"
	KindInvalidFormat  = "InvalidFormatError"
	KindNotFound       = "NotFoundError"
	KindSource         = "SourceError"
	KindStore          = "StoreError"
	KindCanceled       = "CanceledError"
	KindInternal       = "InternalError"
)

// Error is the base error type for all pmdash errors.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the caller-facing error kind.
func (e *Error) Kind() string {
	return kindForCode(e.Code)
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new Error.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// --- Convenience constructors ---

// FileNotFound creates a file not found error.
func FileNotFound(path string) *Error {
	return New(CodeFileNotFound, "file not found").WithContext("path", path)
}

// MissingColumn creates a missing column error.
func MissingColumn(column string, available []string) *Error {
	return New(CodeMissingColumn, "required column not found").
		WithContext("column", column).
		WithContext("available", available)
}

// MissingField reports a required field that is empty in a record.
func MissingField(field string, row int) *Error {
	return New(CodeMissingField, "missing values in required columns: 'activity', 'case_id', or 'timestamp'").
		WithContext("field", field).
		WithContext("row", row)
}

// InvalidTimestamp creates a timestamp parsing error.
func InvalidTimestamp(value string, row int) *Error {
	return New(CodeInvalidTimestamp, "timestamp column conversion failed").
		WithContext("value", value).
		WithContext("row", row)
}

// UnsupportedFormat reports a source whose format cannot be read.
func UnsupportedFormat(name string) *Error {
	return New(CodeInvalidFormat, "unsupported input format").WithContext("source", name)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// KindOf returns the caller-facing kind of any error.
func KindOf(err error) string {
	return kindForCode(GetCode(err))
}

// IsValidation reports whether err was raised while validating input.
func IsValidation(err error) bool {
	switch GetCode(err) {
	case CodeMissingColumn, CodeMissingField, CodeInvalidTimestamp:
		return true
	default:
		return false
	}
}

func kindForCode(code Code) string {
	switch code {
	case CodeMissingField:
		return KindMissingField
	case CodeInvalidTimestamp:
		return KindTimestampParse
	case CodeMissingColumn:
		return KindMissingColumn
	case CodeInvalidFormat, CodeEncodingError:
		return KindInvalidFormat
	case CodeFileNotFound, CodeNoActiveLog:
		return KindNotFound
	case CodeParseFailed:
		return KindSource
	case CodeStoreFailed:
		return KindStore
	case CodeContextCanceled:
		return KindCanceled
	default:
		return KindInternal
	}
}
