package metrics

import (
	"errors"
	"fmt"
	"time"
)

// MaxWindow is the hard cap on a requested time window.
const MaxWindow = 7 * 24 * time.Hour

// futureSkew is the tolerance for windows reaching slightly past "now",
// absorbing clock drift between clients and this service.
const futureSkew = 5 * time.Minute

// ErrTimeout is returned to a caller whose deadline elapsed while waiting for
// an in-flight computation. The computation itself keeps running.
var ErrTimeout = errors.New("timed out waiting for metrics computation")

// ValidationError marks a request that must not reach the upstream at all.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid time window: " + e.Reason
}

// Window is the bounded interval metrics are computed over.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Validate(now time.Time) error {
	if !w.Start.Before(w.End) {
		return &ValidationError{Reason: "start must be before end"}
	}
	if w.End.Sub(w.Start) > MaxWindow {
		return &ValidationError{Reason: fmt.Sprintf("window exceeds %s", MaxWindow)}
	}
	if w.Start.After(now.Add(futureSkew)) {
		return &ValidationError{Reason: "window lies in the future"}
	}
	return nil
}

// Days returns the window length in fractional days.
func (w Window) Days() float64 {
	return w.End.Sub(w.Start).Hours() / 24
}

// Minutes returns the window length in minutes.
func (w Window) Minutes() float64 {
	return w.End.Sub(w.Start).Minutes()
}

// cacheKey collapses near-identical requests onto one cache entry by
// truncating the window bounds to the minute.
func cacheKey(userUid string, w Window) string {
	return fmt.Sprintf("%s|%d|%d",
		userUid,
		w.Start.Truncate(time.Minute).Unix(),
		w.End.Truncate(time.Minute).Unix(),
	)
}

// Result is the derived summary for one window. Gap fields are nil when the
// window held fewer than two events.
type Result struct {
	TotalMeetings          int
	TotalDurationMinutes   float64
	AvgDurationMinutes     float64
	MedianGapMinutes       *float64
	MaxGapMinutes          *float64
	MinGapMinutes          *float64
	MeetingFrequencyPerDay float64
	BlobValue              int
	Partial                bool
	Warnings               []string
}

// clone returns an independent copy so cached results stay immutable.
func (r Result) clone() Result {
	c := r
	c.MedianGapMinutes = cloneFloat(r.MedianGapMinutes)
	c.MaxGapMinutes = cloneFloat(r.MaxGapMinutes)
	c.MinGapMinutes = cloneFloat(r.MinGapMinutes)
	if r.Warnings != nil {
		c.Warnings = make([]string, len(r.Warnings))
		copy(c.Warnings, r.Warnings)
	}
	return c
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
