package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Detail keys attached by Staged.
const (
	DetailStage = "stage"
	DetailStep  = "step"
)

// Error represents a coded error with context
type Error struct {
	Code    ErrorCode              // Error code
	Message string                 // Custom error message (overrides default if set)
	Details map[string]interface{} // Additional context data
	Err     error                  // Underlying error (for wrapping)
	Stack   string                 // Stack trace
}

// Error implements the error interface. A wrapped cause is appended so the
// rendered string carries the whole chain down to the deepest failure.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.Message()
	}
	if e.Err == nil {
		return msg
	}
	cause := e.Err.Error()
	if cause == msg || strings.HasSuffix(msg, cause) {
		return msg
	}
	return msg + ": " + cause
}

// Unwrap returns the underlying error (for errors.Is and errors.As)
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given error code
func New(code ErrorCode) *Error {
	return &Error{
		Code:    code,
		Message: code.Message(),
		Details: make(map[string]interface{}),
		Stack:   getStack(2),
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Stack:   getStack(2),
	}
}

// Wrap wraps an existing error with an error code
func Wrap(err error, code ErrorCode) *Error {
	if err == nil {
		return nil
	}

	if e, ok := err.(*Error); ok {
		e.Code = code
		return e
	}

	return &Error{
		Code:    code,
		Message: err.Error(),
		Err:     err,
		Details: make(map[string]interface{}),
		Stack:   getStack(2),
	}
}

// Wrapf wraps an error with code and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Details: make(map[string]interface{}),
		Stack:   getStack(2),
	}
}

// Staged wraps err with a "[stage] message" prefix and records the stage and
// failing step as details. A nil err yields a fresh error with the same tags.
func Staged(err error, code ErrorCode, stage, step, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf("[%s] ", stage) + fmt.Sprintf(format, args...),
		Err:     err,
		Details: map[string]interface{}{DetailStage: stage, DetailStep: step},
		Stack:   getStack(2),
	}
}

// WithMessage adds a custom message to the error
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithMessagef adds a formatted custom message to the error
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Stage returns the stage tag recorded by Staged, if any.
func (e *Error) Stage() string {
	s, _ := e.Details[DetailStage].(string)
	return s
}

// Step returns the failing step recorded by Staged, if any.
func (e *Error) Step() string {
	s, _ := e.Details[DetailStep].(string)
	return s
}

// GetCode extracts the error code from any error.
// The outermost *Error in the chain wins; plain errors map to InternalError.
func GetCode(err error) ErrorCode {
	if err == nil {
		return Success
	}
	if e := GetError(err); e != nil {
		return e.Code
	}
	return InternalError
}

// GetError returns the outermost *Error in err's chain, or nil.
func GetError(err error) *Error {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

// Is reports whether any *Error in err's chain has the given code
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// getStack captures the stack trace
func getStack(skip int) string {
	const maxDepth = 10
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])

	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var builder strings.Builder

	for {
		frame, more := frames.Next()

		if strings.Contains(frame.Function, "runtime.") {
			if !more {
				break
			}
			continue
		}

		builder.WriteString(fmt.Sprintf("\n\t%s:%d %s", frame.File, frame.Line, frame.Function))

		if !more {
			break
		}
	}

	return builder.String()
}

// ConfigError creates a configuration error for the named field
func ConfigError(field, reason string) *Error {
	return Newf(ConfigurationError, "invalid configuration: %s: %s", field, reason).
		WithDetail("field", field).
		WithDetail("reason", reason)
}
