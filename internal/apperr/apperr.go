package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an Error.
type Kind int

const (
	// KindUnknown is returned by KindOf for unclassified errors.
	KindUnknown Kind = iota
	// KindTransient marks external collaborator failures.
	KindTransient
	// KindMalformed marks undecodable or unusable input.
	KindMalformed
	// KindNotFound marks store misses.
	KindNotFound
	// KindInternal marks unexpected store or backend failures.
	KindInternal
)

// Sentinels matched by errors.Is for each kind.
var (
	ErrTransient = errors.New("transient external error")
	ErrMalformed = errors.New("malformed input")
	ErrNotFound  = errors.New("not found")
	ErrInternal  = errors.New("internal error")
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransient:
		return ErrTransient
	case KindMalformed:
		return ErrMalformed
	case KindNotFound:
		return ErrNotFound
	case KindInternal:
		return ErrInternal
	default:
		return nil
	}
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Transient wraps err as a transient external failure.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Malformed wraps err as malformed input.
func Malformed(op string, err error) error {
	return &Error{Kind: KindMalformed, Op: op, Err: err}
}

// NotFound reports a miss for key.
func NotFound(op, key string) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("key %q", key)}
}

// Internal wraps err as an internal failure.
func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	case errors.Is(err, ErrInternal):
		return KindInternal
	}
	return KindUnknown
}

// IsNotFound is shorthand for errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
