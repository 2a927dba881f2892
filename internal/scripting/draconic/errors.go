package draconic

import (
	"errors"
	"fmt"
)

// ErrReservedName is wrapped by errors raised when a script assigns to a builtin.
var ErrReservedName = errors.New("draconic: name is reserved")

// ErrInternal wraps a fault inside the interpreter itself, such as a
// recovered panic. It is never catchable by a script.
var ErrInternal = errors.New("draconic: internal error")

// SyntaxError reports source that does not parse.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

// Error implements error.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("draconic: syntax error at line %d, col %d: %s", e.Line, e.Col, e.Msg)
}

// LimitKind names the resource ceiling a script ran into.
type LimitKind string

const (
	TooManyStatements LimitKind = "TooManyStatements"
	TooManyLoops      LimitKind = "TooManyLoops"
	IterableTooLong   LimitKind = "IterableTooLong"
	TooLong           LimitKind = "TooLong"
	RecursionDepth    LimitKind = "RecursionDepth"
	NumberTooHigh     LimitKind = "NumberTooHigh"
	Timeout           LimitKind = "Timeout"
)

// LimitError reports an exceeded resource ceiling. It is never catchable by
// a script's try/except.
type LimitError struct {
	Kind LimitKind
	Msg  string
}

// Error implements error.
func (e *LimitError) Error() string {
	if e.Msg == "" {
		return "draconic: " + string(e.Kind)
	}
	return fmt.Sprintf("draconic: %s: %s", e.Kind, e.Msg)
}

// Is matches any *LimitError of the same Kind, so
// errors.Is(err, &LimitError{Kind: TooManyLoops}) works.
func (e *LimitError) Is(target error) bool {
	t, ok := target.(*LimitError)
	return ok && t.Kind == e.Kind
}

func limitf(kind LimitKind, format string, args ...any) *LimitError {
	return &LimitError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// UserAbort is raised by err(); the message is meant for the invoking user.
type UserAbort struct {
	Message        string
	PrivateMessage bool
}

// Error implements error.
func (e *UserAbort) Error() string {
	return e.Message
}

// Runtime error kinds, matched by name in except clauses.
const (
	TypeError           = "TypeError"
	ValueError          = "ValueError"
	NameError           = "NameError"
	KeyError            = "KeyError"
	IndexError          = "IndexError"
	AttributeError      = "AttributeError"
	ZeroDivisionError   = "ZeroDivisionError"
	OverflowError       = "OverflowError"
	NotDefined          = "NotDefined"
	FeatureNotAvailable = "FeatureNotAvailable"
)

// RuntimeError is an ordinary script failure. Only RuntimeErrors are caught
// by try/except.
type RuntimeError struct {
	Kind string
	Msg  string
	Line int
	Err  error
}

// Error implements error.
func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Msg, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the underlying cause, if any.
func (e *RuntimeError) Unwrap() error { return e.Err }

// Errorf builds a RuntimeError of the given kind. Host builtins use it for
// failures a script may catch.
func Errorf(kind, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func typeErrorf(format string, args ...any) *RuntimeError {
	return Errorf(TypeError, format, args...)
}

func valueErrorf(format string, args ...any) *RuntimeError {
	return Errorf(ValueError, format, args...)
}
