// Package failure classifies errors into the three ways a run reacts to them:
// abort the run, skip the current article, or retry and then skip.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Kind is the reaction an error calls for.
type Kind int

const (
	// Skip drops the current article and moves on.
	Skip Kind = iota
	// Transient may succeed if retried.
	Transient
	// Fatal stops the whole run.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Skip:
		return "skip"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Err: err}
}

// AsFatal marks err as fatal. Nil stays nil.
func AsFatal(err error) error { return wrap(Fatal, err) }

// AsSkip marks err as a per-article failure. Nil stays nil.
func AsSkip(err error) error { return wrap(Skip, err) }

// AsTransient marks err as retryable. Nil stays nil.
func AsTransient(err error) error { return wrap(Transient, err) }

func Fatalf(format string, args ...any) error {
	return AsFatal(fmt.Errorf(format, args...))
}

func Skipf(format string, args ...any) error {
	return AsSkip(fmt.Errorf(format, args...))
}

func Transientf(format string, args ...any) error {
	return AsTransient(fmt.Errorf(format, args...))
}

// KindOf classifies err. Explicitly marked errors keep their kind, deadline
// and network errors are transient, and anything else is a skip.
// The outermost marker wins.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return Transient
	}
	return Skip
}

func IsFatal(err error) bool     { return err != nil && KindOf(err) == Fatal }
func IsTransient(err error) bool { return err != nil && KindOf(err) == Transient }

// RetryPolicy bounds Retry.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is three tries starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        3,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
	}
}

// Retry runs fn until it succeeds, returns a non-transient error, or the
// policy runs out of tries. A transient error that survives every try comes
// back marked as Skip.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn(ctx)
		if err != nil && !IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.MaxTries))

	if err != nil && IsTransient(err) && ctx.Err() == nil {
		return AsSkip(fmt.Errorf("gave up after %d tries: %w", p.MaxTries, err))
	}
	return err
}
