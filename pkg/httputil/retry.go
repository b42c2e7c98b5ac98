package httputil

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// RetryableError marks a transient failure that [Retry] may attempt again.
// After, when set, is the delay the server asked for.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is wrapped in a [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Policy controls [Retry].
type Policy struct {
	// Attempts is the total number of calls, including the first.
	// Values below 1 mean one call.
	Attempts int

	// Backoff is the delay before the second call; it doubles after each
	// failure up to MaxBackoff (unbounded when zero).
	Backoff    time.Duration
	MaxBackoff time.Duration

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Retry calls fn until it succeeds, returns an error that is not a
// [RetryableError], or the attempts run out. A server-requested delay
// longer than the current backoff replaces it. It returns the last error,
// or ctx.Err() if ctx is done while waiting.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Backoff

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var rerr *RetryableError
		if !errors.As(err, &rerr) || attempt == attempts {
			return err
		}

		wait := max(delay, rerr.After)
		if p.MaxBackoff > 0 {
			wait = min(wait, max(p.MaxBackoff, rerr.After))
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxBackoff > 0 {
			delay = min(delay, p.MaxBackoff)
		}
	}
}

// retryAfter parses a Retry-After header given in seconds. HTTP dates and
// malformed values yield zero.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
