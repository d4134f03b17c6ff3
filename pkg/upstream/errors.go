package upstream

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthRejected indicates the upstream calendar API rejected the credential.
// Never retried here; token refresh is the auth collaborator's job.
var ErrAuthRejected = errors.New("upstream rejected calendar credential")

// ErrRetriesExhausted wraps the last retryable error once the backoff budget
// for a single page is spent.
var ErrRetriesExhausted = errors.New("upstream retries exhausted")

// ThrottledError signals a rate-limited response. RetryAfter is zero when the
// upstream gave no hint.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream throttled, retry after %s", e.RetryAfter)
	}
	return "upstream throttled"
}

// UnavailableError signals a transient upstream failure (5xx or transport).
type UnavailableError struct {
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream unavailable: %v", e.Err)
	}
	return fmt.Sprintf("upstream unavailable (status %d)", e.StatusCode)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// retryable reports whether the fetcher's backoff policy applies to err.
func retryable(err error) bool {
	var throttled *ThrottledError
	var unavailable *UnavailableError
	return errors.As(err, &throttled) || errors.As(err, &unavailable)
}
