// Package fail defines the failure kinds surfaced by the observable wrappers.
// Errors coming out of a platform collaborator never cross into published
// state directly; they are re-expressed as one of these kinds first.
package fail

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Decode   Kind = iota // malformed configuration input
	Activate             // category/mode unavailable or activation failed
	Create               // resource construction failed
)

func (k Kind) String() string {
	switch k {
	case Decode:
		return "decode"
	case Activate:
		return "activate"
	case Create:
		return "create"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	ErrDecode   = &Error{Kind: Decode}
	ErrActivate = &Error{Kind: Activate}
	ErrCreate   = &Error{Kind: Create}
)

// Error carries a failure kind and a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Reason
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrActivate)
// works regardless of the reason text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap converts err into an *Error of the given kind. An err that already
// is (or wraps) an *Error keeps its original kind.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: kind, Reason: err.Error()}
}

// KindOf reports the kind of err and whether err carries one.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
