package errors

import (
	"fmt"
	"strings"
)

// Code is the status class of an error, mirroring the OSAL return codes.
// A nil error always means OK, so CodeOK never appears inside an *Error.
type Code string

const (
	CodeOK                 Code = "ok"
	CodeGeneric            Code = "error"
	CodeNullPointer        Code = "null_pointer"
	CodeInvalidParameter   Code = "invalid_parameter"
	CodeNotInitialized     Code = "not_initialized"
	CodeAlreadyInitialized Code = "already_initialized"
	CodeOutOfResources     Code = "out_of_resources"
	CodeTimeout            Code = "timeout"
	CodeFull               Code = "full"
	CodeEmpty              Code = "empty"
	CodeInvalidHandle      Code = "invalid_handle"
	CodeInvalidState       Code = "invalid_state"
)

// Sentinels for use with the standard errors.Is. A sentinel matches any
// *Error carrying the same Code, regardless of Op.
var (
	ErrGeneric            = &Error{Code: CodeGeneric}
	ErrNullPointer        = &Error{Code: CodeNullPointer}
	ErrInvalidParameter   = &Error{Code: CodeInvalidParameter}
	ErrNotInitialized     = &Error{Code: CodeNotInitialized}
	ErrAlreadyInitialized = &Error{Code: CodeAlreadyInitialized}
	ErrOutOfResources     = &Error{Code: CodeOutOfResources}
	ErrTimeout            = &Error{Code: CodeTimeout}
	ErrFull               = &Error{Code: CodeFull}
	ErrEmpty              = &Error{Code: CodeEmpty}
	ErrInvalidHandle      = &Error{Code: CodeInvalidHandle}
	ErrInvalidState       = &Error{Code: CodeInvalidState}
)

// Error is the structured error type used throughout the OSAL.
type Error struct {
	Cause  error
	Op     string // failing operation, e.g. "mutex.lock"
	Code   Code
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteByte('[')
		b.WriteString(e.Op)
		b.WriteString("] ")
	}
	b.WriteString(string(e.Code))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty Op
// matches on Code alone, which is how the package sentinels work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return e.Code == t.Code
}

// New creates an error for op with the given code.
func New(op string, code Code) *Error {
	return &Error{Op: op, Code: code}
}

// Newf creates an error for op with a formatted detail message.
func Newf(op string, code Code, format string, args ...any) *Error {
	return &Error{Op: op, Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with op and code context.
func Wrap(op string, code Code, cause error, detail string) *Error {
	return &Error{Op: op, Code: code, Detail: detail, Cause: cause}
}

// CodeOf extracts the Code from err, or CodeGeneric for foreign errors.
// A nil err reports CodeOK.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeGeneric
}

// OpOf extracts the failing operation from err, or "" if unknown.
func OpOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Op
	}
	return ""
}

// Convenience constructors for common status codes.

// NullPtr reports a nil pointer argument.
func NullPtr(op, what string) *Error {
	return &Error{Op: op, Code: CodeNullPointer, Detail: fmt.Sprintf("%s is nil", what)}
}

// InvalidParam reports an out-of-range or malformed argument.
func InvalidParam(op, detail string) *Error {
	return &Error{Op: op, Code: CodeInvalidParameter, Detail: detail}
}

// InvalidParamf reports an out-of-range or malformed argument with formatting.
func InvalidParamf(op, format string, args ...any) *Error {
	return &Error{Op: op, Code: CodeInvalidParameter, Detail: fmt.Sprintf(format, args...)}
}

// InvalidHandle reports a handle whose tag, generation, or slot state does
// not match the expected resource.
func InvalidHandle(op, detail string) *Error {
	return &Error{Op: op, Code: CodeInvalidHandle, Detail: detail}
}

// InvalidState reports an operation applied to a resource in the wrong state.
func InvalidState(op, detail string) *Error {
	return &Error{Op: op, Code: CodeInvalidState, Detail: detail}
}

// Timeout reports that a blocking operation's timeout elapsed. This is an
// expected outcome callers are meant to branch on.
func Timeout(op string) *Error {
	return &Error{Op: op, Code: CodeTimeout}
}

// OutOfResources reports slot or memory exhaustion.
func OutOfResources(op, what string) *Error {
	return &Error{Op: op, Code: CodeOutOfResources, Detail: fmt.Sprintf("no free %s", what)}
}

// Full reports a no-wait send against a full queue.
func Full(op string) *Error {
	return &Error{Op: op, Code: CodeFull}
}

// Empty reports a no-wait receive or peek against an empty queue.
func Empty(op string) *Error {
	return &Error{Op: op, Code: CodeEmpty}
}

// NotInitialized reports use of an instance that is closed or was never set up.
func NotInitialized(op string) *Error {
	return &Error{Op: op, Code: CodeNotInitialized}
}
