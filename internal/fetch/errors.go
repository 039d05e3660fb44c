package fetch

import (
	"errors"
	"fmt"
	"time"
)

type ErrorKind int

const (
	Transient ErrorKind = iota
	RateLimited
	AuthRequired
	NotFound
)

func (k ErrorKind) String() string {
	switch k {
	case RateLimited:
		return "rate-limited"
	case AuthRequired:
		return "auth-required"
	case NotFound:
		return "not-found"
	default:
		return "transient"
	}
}

// FetchError classifies a failed poll. RetryAfter is set when the
// upstream asked for a specific pause.
type FetchError struct {
	Kind       ErrorKind
	Err        error
	RetryAfter time.Duration
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...interface{}) *FetchError {
	return &FetchError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err. Errors outside the taxonomy count as
// Transient.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Transient
}

// RetryAfter returns the upstream-requested pause carried by err, if any.
func RetryAfter(err error) time.Duration {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.RetryAfter
	}
	return 0
}

func normalize(err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Kind: Transient, Err: err}
}
