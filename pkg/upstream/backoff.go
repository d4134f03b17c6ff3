package upstream

import "time"

// Backoff is a deterministic exponential backoff schedule: Base doubled per
// attempt, capped at Max, for at most MaxRetries retries. No jitter, so tests
// can pin exact delays.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:       500 * time.Millisecond,
		Max:        30 * time.Second,
		MaxRetries: 5,
	}
}

// Delay returns the sleep before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
