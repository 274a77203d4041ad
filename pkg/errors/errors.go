package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure for retry purposes
type Kind int

const (
	// Unknown failures are not retried.
	Unknown Kind = iota
	// Transient failures (timeouts, dropped connections) may succeed unchanged on a second try.
	Transient
	// Permanent failures (missing link, no permission) will not.
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is a classified failure raised by a deletion step
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err; a nil err yields nil
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewTransient creates a retryable error
func NewTransient(op, message string, err error) *Error {
	return &Error{Kind: Transient, Op: op, Message: message, Err: err}
}

// NewPermanent creates a non-retryable error
func NewPermanent(op, message string, err error) *Error {
	return &Error{Kind: Permanent, Op: op, Message: message, Err: err}
}

type timeout interface {
	Timeout() bool
}

// KindOf reports the classification of err. An explicit *Error wins;
// otherwise anything in the chain reporting Timeout() is Transient.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}

	var classified *Error
	if stderrors.As(err, &classified) && classified.Kind != Unknown {
		return classified.Kind
	}

	if stderrors.Is(err, context.Canceled) {
		return Unknown
	}

	var t timeout
	if stderrors.As(err, &t) && t.Timeout() {
		return Transient
	}

	return Unknown
}

// IsTransient is the retry predicate used by the deletion engine
func IsTransient(err error) bool {
	return KindOf(err) == Transient
}

// Sentinel errors shared across packages
var (
	ErrNoHandler      = stderrors.New("no handler found")
	ErrRateLimited    = stderrors.New("rate limit exceeded")
	ErrBlocked        = stderrors.New("action block detected")
	ErrSessionInvalid = stderrors.New("session invalid")
	ErrCookiesMissing = stderrors.New("missing required cookies")
)

// Is and As re-export the standard helpers so callers need only one import
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
