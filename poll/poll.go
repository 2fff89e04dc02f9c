// Package poll provides a bounded retry combinator for pull-style status
// endpoints.
//
// [Run] calls an attempt function up to Policy.MaxAttempts times, sleeping
// Policy.Interval between calls. The attempt function is the classifier: it
// reports a value and done=true for a terminal response, done=false to keep
// polling, or an error. Errors are retried unless they are marked
// [Permanent] or occur on the final attempt.
//
//	url, err := poll.Run(ctx, poll.Policy{
//	    Interval:    backoff.NewConstant(20 * time.Second),
//	    MaxAttempts: 360,
//	}, func(ctx context.Context, n int) (string, bool, error) {
//	    st, err := client.Status(ctx, handle)
//	    if err != nil {
//	        return "", false, err
//	    }
//	    return st.URL, st.Done(), nil
//	})
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meemee/studio/backoff"
)

var (
	// ErrExhausted is returned when every attempt completed without a
	// terminal response.
	ErrExhausted = errors.New("poll: attempts exhausted")

	// ErrAttemptFailed wraps the error of the final attempt.
	ErrAttemptFailed = errors.New("poll: final attempt failed")
)

// Policy bounds a poll loop.
type Policy struct {
	// Interval yields the pause after each non-terminal attempt.
	Interval backoff.Strategy

	// MaxAttempts is the total number of attempts. Values below 1 mean 1.
	MaxAttempts int

	// OnRetry, when set, is called with the error of every attempt that
	// failed but will be retried.
	OnRetry func(attempt int, err error)

	// Sleep overrides the context-aware timer wait. Tests use it to avoid
	// real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Budget returns the total time spent sleeping when every attempt is
// non-terminal. It assumes a constant interval strategy.
func (p Policy) Budget() time.Duration {
	if p.Interval == nil {
		return 0
	}
	var total time.Duration
	for n := 1; n < p.attempts(); n++ {
		total += p.Interval.Delay(n)
	}
	return total
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. Run returns the wrapped error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Run executes the poll loop. It returns the value of the first terminal
// attempt, ErrExhausted when no attempt was terminal, an error wrapping
// ErrAttemptFailed when the final attempt errored, the unwrapped error of a
// Permanent failure, or ctx.Err() if the context ends while waiting.
func Run[T any](ctx context.Context, p Policy, attempt func(ctx context.Context, n int) (T, bool, error)) (T, error) {
	var zero T
	maxAttempts := p.attempts()

	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, done, err := attempt(ctx, n)
		switch {
		case err != nil:
			var perm *permanentError
			if errors.As(err, &perm) {
				return zero, perm.err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			if n == maxAttempts {
				return zero, fmt.Errorf("%w: %w", ErrAttemptFailed, err)
			}
			if p.OnRetry != nil {
				p.OnRetry(n, err)
			}
		case done:
			return v, nil
		}

		if n == maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.delay(n)); err != nil {
			return zero, err
		}
	}

	return zero, ErrExhausted
}

func (p Policy) delay(n int) time.Duration {
	if p.Interval == nil {
		return 0
	}
	return p.Interval.Delay(n)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
