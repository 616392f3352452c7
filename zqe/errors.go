// Package zqe classifies errors so that callers can tell a missing object or
// a bad argument apart from an I/O failure without matching on strings.
package zqe

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// A Kind represents a class of error.
type Kind int

const (
	Other Kind = iota
	Invalid
	NotFound
	Exists
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Invalid:
		return "invalid operation"
	case NotFound:
		return "item does not exist"
	case Exists:
		return "item already exists"
	case Conflict:
		return "conflict with pending operation"
	}
	return "unknown error kind"
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != Other {
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns just the Err.Error() string, if present, or the Kind
// string description.
func (e *Error) Message() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != Other {
		return e.Kind.String()
	}
	return "no error"
}

// E builds an error from any mix of a Kind, an existing error, and a
// format string with arguments as for fmt.Errorf (including %w).  The
// format string must come last.
func E(args ...any) error {
	if len(args) == 0 {
		panic("no args to zqe.E")
	}
	e := &Error{}
	for i, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case error:
			e.Err = arg
		case string:
			e.Err = fmt.Errorf(arg, args[i+1:]...)
			return e
		default:
			_, file, line, _ := runtime.Caller(1)
			return fmt.Errorf("unknown type %T value %v in zqe.E call at %v:%v", arg, arg, file, line)
		}
	}
	return e
}

// KindOf returns the Kind of the first *Error in err's chain or Other.
func KindOf(err error) Kind {
	var zerr *Error
	if errors.As(err, &zerr) {
		return zerr.Kind
	}
	return Other
}

func kindf(kind Kind, format string, args []any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func ErrInvalid(format string, args ...any) error {
	return kindf(Invalid, format, args)
}

func ErrNotFound(format string, args ...any) error {
	return kindf(NotFound, format, args)
}

func ErrExists(format string, args ...any) error {
	return kindf(Exists, format, args)
}

func ErrConflict(format string, args ...any) error {
	return kindf(Conflict, format, args)
}

func IsInvalid(err error) bool  { return KindOf(err) == Invalid }
func IsNotFound(err error) bool { return KindOf(err) == NotFound }
func IsExists(err error) bool   { return KindOf(err) == Exists }
func IsConflict(err error) bool { return KindOf(err) == Conflict }

// RecoverError converts a value recovered from a panic into an error that
// includes the panicking goroutine's stack.
func RecoverError(r any) error {
	buf := make([]byte, 4096)
	buf = buf[:runtime.Stack(buf, false)]
	return fmt.Errorf("panic: %+v\n%s", r, buf)
}
