package upstream

import (
	"context"
	"time"
)

// Event is a raw calendar event as returned by the upstream API.
type Event struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Page is one page of upstream results. NextToken is the opaque continuation
// token; empty means the last page.
type Page struct {
	Events    []Event
	NextToken string
}

// PageSource is a single-page view of a calendar backend. Implementations
// translate backend-specific throttling and failure signals into the error
// types of this package.
type PageSource interface {
	FetchPage(ctx context.Context, from time.Time, to time.Time, pageToken string) (Page, error)
}

// FetchResult carries the events of a window together with the truncation
// signal when the upstream could not be read to the end.
type FetchResult struct {
	Events   []Event
	Partial  bool
	Warnings []string
}

// Source produces all events of a window, following pagination and absorbing
// transient upstream failures.
type Source interface {
	Fetch(ctx context.Context, from time.Time, to time.Time) (FetchResult, error)
}
