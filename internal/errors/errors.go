// Package errors provides the error taxonomy shared by the fuzzy engine, the
// optimizer drivers and the service layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies an error by how callers are expected to react to it.
type Kind uint8

const (
	// KindUnknown is the zero Kind.
	KindUnknown Kind = iota
	// KindConfiguration errors are fatal at construction time. No partially
	// built object is ever returned alongside one.
	KindConfiguration
	// KindInvalidInput marks programmer errors at an API boundary, such as an
	// objective vector of the wrong length.
	KindInvalidInput
	// KindNumeric marks a degenerate numeric state. The engine resolves these
	// internally through its fallback policy.
	KindNumeric
	// KindNotFound marks lookups of unknown engines, variables or runs.
	KindNotFound
	// KindConflict marks operations that are invalid in the current state,
	// such as cancelling a finished run.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInvalidInput:
		return "invalid_input"
	case KindNumeric:
		return "numeric"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Sentinels for matching with errors.Is. Only the Kind is compared.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
	ErrNumeric       = &Error{Kind: KindNumeric}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConflict      = &Error{Kind: KindConflict}
)

// Error represents an error with a kind, context and stack trace.
type Error struct {
	// Kind classifies the error.
	Kind Kind
	// The underlying error that was returned
	Err error
	// A human-readable message describing the error
	Message string
	// The operation that was being performed when the error occurred
	Operation string
	// The component or package where the error occurred
	Component string
	// The stack trace
	Stack []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var builder strings.Builder

	if e.Component != "" {
		builder.WriteString(e.Component)
	}

	if e.Operation != "" {
		if builder.Len() > 0 {
			builder.WriteString(".")
		}
		builder.WriteString(e.Operation)
	}

	if e.Message != "" {
		if builder.Len() > 0 {
			builder.WriteString(": ")
		}
		builder.WriteString(e.Message)
	}

	if e.Err != nil {
		if builder.Len() > 0 {
			builder.WriteString(": ")
		}
		builder.WriteString(e.Err.Error())
	}

	if builder.Len() == 0 {
		builder.WriteString(e.Kind.String())
	}

	return builder.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the package sentinels work with
// errors.Is regardless of message or context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind != KindUnknown && t.Kind == e.Kind
}

// WithOperation adds an operation to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithComponent adds a component to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// StackTrace returns the stack trace as a slice of strings.
func (e *Error) StackTrace() []string {
	return e.Stack
}

// New creates a new error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{
		Kind:    kind,
		Message: msg,
		Stack:   getStackTrace(),
	}
}

// Errorf creates a new error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Stack:   getStackTrace(),
	}
}

// Configurationf is shorthand for Errorf(KindConfiguration, ...).
func Configurationf(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: fmt.Sprintf(format, args...),
		Stack:   getStackTrace(),
	}
}

// InvalidInputf is shorthand for Errorf(KindInvalidInput, ...).
func InvalidInputf(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Message: fmt.Sprintf(format, args...),
		Stack:   getStackTrace(),
	}
}

// Wrap wraps err with additional context. The kind of a wrapped *Error is
// preserved; other errors are classified as KindUnknown.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}

	e := &Error{
		Err:     err,
		Message: msg,
		Stack:   getStackTrace(),
	}
	var inner *Error
	if stderrors.As(err, &inner) {
		e.Kind = inner.Kind
		e.Stack = inner.Stack
	}
	return e
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// getStackTrace returns the current stack trace as a slice of strings.
func getStackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, getStackTrace, and the constructor
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "internal/errors") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}

	return stack
}
