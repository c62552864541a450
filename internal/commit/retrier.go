// Package commit wraps mutations of the authoritative episode record
// with bounded retry and exponential backoff. Only transient failures
// are retried; anything else aborts immediately. A retrier never
// swallows failure: when it gives up the caller gets an ExhaustedError
// and owns the terminal fallback.
package commit

import (
	"context"
	"fmt"
	"time"
)

// Mutation is one atomic write against the authoritative record. It is
// invoked once per attempt and must re-read whatever state it needs, so
// a retry after a serialization conflict sees the latest row.
type Mutation func(ctx context.Context) error

// ExhaustedError is the terminal outcome of a failed commit: retries
// ran out, or a non-transient error aborted them.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("commit exhausted after %d attempt(s): %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Retrier applies mutations with doubling backoff between attempts.
type Retrier struct {
	MaxAttempts    int
	InitialBackoff time.Duration

	// Sleep is replaced in tests. The default waits the given duration
	// or until the context is done, whichever comes first.
	Sleep func(ctx context.Context, d time.Duration)

	// OnAttempt observes every attempt and its outcome (nil on
	// success) so callers can log the full retry history.
	OnAttempt func(attempt int, err error)
}

// Default policy for status commits: 5 attempts starting at 2s, so a
// full cycle spans 2+4+8+16 seconds of backoff.
const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 2 * time.Second
)

// NewRetrier returns a retrier with the default commit policy.
func NewRetrier() *Retrier {
	return &Retrier{MaxAttempts: DefaultMaxAttempts, InitialBackoff: DefaultInitialBackoff}
}

// Do runs mutation until it succeeds, a non-transient error aborts, the
// attempts run out, or ctx is done.
func (r *Retrier) Do(ctx context.Context, mutation Mutation) error {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := r.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &ExhaustedError{Attempts: attempt - 1, LastErr: err}
		}

		err := mutation(ctx)
		if r.OnAttempt != nil {
			r.OnAttempt(attempt, err)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return &ExhaustedError{Attempts: attempt, LastErr: err}
		}
		if attempt < maxAttempts {
			r.sleep(ctx, backoff)
			backoff *= 2
		}
	}
	return &ExhaustedError{Attempts: maxAttempts, LastErr: lastErr}
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) {
	if r.Sleep != nil {
		r.Sleep(ctx, d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
