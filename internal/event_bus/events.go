package event_bus

import "time"

const (
	CacheLookupDone     EventType = "metrics.cache.lookup"
	UpstreamRetried     EventType = "upstream.retried"
	PartialResultServed EventType = "metrics.partial"
	MetricsComputed     EventType = "metrics.computed"
)

// CacheLookup is published on every window cache read.
type CacheLookup struct {
	Key string
	Hit bool
}

// UpstreamRetry is published before each backoff sleep in the event fetcher.
type UpstreamRetry struct {
	Attempt int
	Delay   time.Duration
	Reason  string
}

// PartialResult is published when a truncated event set is served.
type PartialResult struct {
	Key      string
	Warnings []string
}

// ComputationDone is published after a cache miss has been computed.
type ComputationDone struct {
	Key           string
	Latency       time.Duration
	TotalMeetings int
	Partial       bool
}
