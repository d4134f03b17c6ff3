package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

// maxPages is a guard against a misbehaving upstream handing out continuation
// tokens forever.
const maxPages = 1000

// Fetcher implements Source over a PageSource. It follows continuation tokens,
// retries throttled and transient failures with bounded backoff, and degrades
// to a partial result when retries run out mid-pagination.
type Fetcher struct {
	src     PageSource
	backoff Backoff
	bus     *event_bus.EventBus
}

func NewFetcher(src PageSource, backoff Backoff, bus *event_bus.EventBus) *Fetcher {
	return &Fetcher{
		src:     src,
		backoff: backoff,
		bus:     bus,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, from time.Time, to time.Time) (FetchResult, error) {
	var result FetchResult

	pageToken := ""
	for pages := 0; pages < maxPages; pages++ {
		page, err := f.fetchPageWithRetry(ctx, from, to, pageToken)
		if err != nil {
			if errors.Is(err, ErrRetriesExhausted) && len(result.Events) > 0 {
				// Prefer a flagged partial result over failing the request
				// when some events were already gathered.
				warning := fmt.Sprintf("calendar fetch truncated after %d events: %v", len(result.Events), err)
				log.Warn(warning)
				result.Partial = true
				result.Warnings = append(result.Warnings, warning)
				return result, nil
			}
			return FetchResult{}, err
		}

		pastWindow := false
		for _, ev := range page.Events {
			// Defensive trimming: never trust the upstream to honor the
			// window bounds.
			if ev.Start.After(to) {
				pastWindow = true
				continue
			}
			if ev.End.Before(from) {
				continue
			}
			result.Events = append(result.Events, ev)
		}

		if pastWindow || page.NextToken == "" {
			return result, nil
		}
		pageToken = page.NextToken
	}

	log.Warnf("calendar fetch stopped after %d pages, upstream kept returning continuation tokens", maxPages)
	result.Partial = true
	result.Warnings = append(result.Warnings, fmt.Sprintf("calendar fetch stopped after %d pages", maxPages))
	return result, nil
}

func (f *Fetcher) fetchPageWithRetry(ctx context.Context, from time.Time, to time.Time, pageToken string) (Page, error) {
	for attempt := 0; ; attempt++ {
		page, err := f.src.FetchPage(ctx, from, to, pageToken)
		if err == nil {
			return page, nil
		}
		if !retryable(err) {
			return Page{}, err
		}
		if attempt >= f.backoff.MaxRetries {
			return Page{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, err)
		}

		delay := f.backoff.Delay(attempt)
		var throttled *ThrottledError
		if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
			// Upstream hint wins over the computed schedule.
			delay = throttled.RetryAfter
		}

		log.Debugf("retrying upstream page fetch in %s (attempt %d): %v", delay, attempt+1, err)
		f.bus.Publish(event_bus.NewEvent(event_bus.UpstreamRetried, event_bus.UpstreamRetry{
			Attempt: attempt + 1,
			Delay:   delay,
			Reason:  err.Error(),
		}))

		select {
		case <-ctx.Done():
			return Page{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}
