package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Error kinds. Every error that crosses a usecase boundary should carry one of
// these so the transport layer can map it with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConfiguration   = errors.New("configuration error")
	ErrUpstream        = errors.New("upstream failure")
	ErrInvalidResponse = errors.New("invalid upstream response")
)

var kinds = []error{
	ErrInvalidArgument,
	ErrValidation,
	ErrNotFound,
	ErrConfiguration,
	ErrUpstream,
	ErrInvalidResponse,
}

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// Mark tags err with kind. A nil err produces a bare kind error carrying msg.
// The result matches both kind and err under errors.Is.
func Mark(kind error, err error, msg string) error {
	if kind == nil {
		return Wrap(err, msg)
	}
	if err == nil {
		return &kindError{kind: kind, msg: msg}
	}
	if errors.Is(err, kind) {
		return Wrap(err, msg)
	}
	return fmt.Errorf("%s: %w: %w", msg, kind, err)
}

// kindError is a kind with a caller-facing message and no further cause.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Message returns the message of the first causeless Mark found in the chain,
// falling back to the kind text. It is safe to show to API clients.
func Message(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	if kind := KindOf(err); kind != nil {
		return kind.Error()
	}
	return ""
}

// KindOf returns the outermost kind in err's chain, or nil.
func KindOf(err error) error {
	var found error
	var walk func(error) bool
	walk = func(e error) bool {
		if e == nil {
			return false
		}
		for _, kind := range kinds {
			if e == kind {
				found = kind
				return true
			}
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				if walk(inner) {
					return true
				}
			}
		case interface{ Unwrap() error }:
			return walk(u.Unwrap())
		}
		return false
	}
	walk(err)
	return found
}

// WithStack captures a stack trace once (recommended: only at the root cause boundary).
// You can still wrap it later with Wrap/Wrapf.
func WithStack(err error) error {
	if err == nil {
		return nil
	}

	var se *StackError
	if errors.As(err, &se) {
		return err
	}

	return &StackError{
		err:   err,
		stack: debug.Stack(),
	}
}

// StackError wraps an error and stores a stack trace.
type StackError struct {
	err   error
	stack []byte
}

func (e *StackError) Error() string { return e.err.Error() }
func (e *StackError) Unwrap() error { return e.err }
func (e *StackError) Stack() []byte { return e.stack }

// Loggable makes slog encode the error as structured fields.
// Usage: slog.Any("err", errs.Loggable(err))
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

type loggable struct{ err error }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.Any("chain", ErrorChainStrings(l.err)),
	}
	if kind := KindOf(l.err); kind != nil {
		attrs = append(attrs, slog.String("kind", kind.Error()))
	}

	var se *StackError
	if errors.As(l.err, &se) {
		attrs = append(attrs, slog.String("stack", string(se.Stack())))
	}

	return slog.GroupValue(attrs...)
}

// ErrorChainStrings returns the unwrap chain as strings (outer -> inner).
// Multi-wrapped errors are walked depth first.
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		out = append(out, e.Error())
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
