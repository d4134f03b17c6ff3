package upstream

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/internal/event_bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var windowStart = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
var windowEnd = time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

// scriptedPageSource replays a fixed sequence of responses, one per call.
type scriptedPageSource struct {
	responses []pageResponse
	calls     int
}

type pageResponse struct {
	page Page
	err  error
}

func (s *scriptedPageSource) FetchPage(_ context.Context, _ time.Time, _ time.Time, _ string) (Page, error) {
	if s.calls >= len(s.responses) {
		return Page{}, fmt.Errorf("unexpected call %d", s.calls)
	}
	r := s.responses[s.calls]
	s.calls++
	return r.page, r.err
}

func testEvent(id string, startOffset, endOffset time.Duration) Event {
	return Event{
		ID:    id,
		Start: windowStart.Add(startOffset),
		End:   windowStart.Add(endOffset),
	}
}

func fastBackoff() Backoff {
	return Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond, MaxRetries: 2}
}

func TestFetcher_SinglePage(t *testing.T) {
	// given
	src := &scriptedPageSource{responses: []pageResponse{
		{page: Page{Events: []Event{
			testEvent("a", 9*time.Hour, 9*time.Hour+30*time.Minute),
			testEvent("b", 10*time.Hour, 10*time.Hour+45*time.Minute),
		}}},
	}}
	fetcher := NewFetcher(src, fastBackoff(), event_bus.NewEventBus())

	// when
	result, err := fetcher.Fetch(context.Background(), windowStart, windowEnd)

	// then
	require.NoError(t, err)
	assert.False(t, result.Partial)
	assert.Empty(t, result.Warnings)
	assert.Len(t, result.Events, 2)
	assert.Equal(t, 1, src.calls)
}

func TestFetcher_FollowsContinuationTokens(t *testing.T) {
	// given
	src := &scriptedPageSource{responses: []pageResponse{
		{page: Page{Events: []Event{testEvent("a", time.Hour, 2*time.Hour)}, NextToken: "page-2"}},
		{page: Page{Events: []Event{testEvent("b", 3*time.Hour, 4*time.Hour)}, NextToken: "page-3"}},
		{page: Page{Events: []Event{testEvent("c", 5*time.Hour, 6*time.Hour)}}},
	}}
	fetcher := NewFetcher(src, fastBackoff(), event_bus.NewEventBus())

	// when
	result, err := fetcher.Fetch(context.Background(), windowStart, windowEnd)

	// then
	require.NoError(t, err)
	assert.Len(t, result.Events, 3)
	assert.Equal(t, 3, src.calls)
	assert.False(t, result.Partial)
}

func TestFetcher_RetriesThrottledPageThenSucceeds(t *testing.T) {
	// given
	src := &scriptedPageSource{responses: []pageResponse{
		{err: &ThrottledError{}},
		{err: &ThrottledError{RetryAfter: 2 * time.Millisecond}},
		{page: Page{Events: []Event{testEvent("a", time.Hour, 2*time.Hour)}}},
	}}
	bus := event_bus.NewEventBus()
	var retries []event_bus.UpstreamRetry
	event_bus.SubscribeTyped[event_bus.UpstreamRetry](bus, event_bus.UpstreamRetried, func(e event_bus.EventT[event_bus.UpstreamRetry]) {
		retries = append(retries, e.Data)
	})
	fetcher := NewFetcher(src, fastBackoff(), bus)

	// when
	result, err := fetcher.Fetch(context.Background(), windowStart, windowEnd)

	// then
	require.NoError(t, err)
	assert.Len(t, result.Events, 1)
	assert.Equal(t, 3, src.calls)
	require.Len(t, retries, 2)
	assert.Equal(t, time.Millisecond, retries[0].Delay)
	// retry-after hint overrides the schedule
	assert.Equal(t, 2*time.Millisecond, retries[1].Delay)
}

func TestFetcher_ExhaustionMidPaginationReturnsPartial(t *testing.T) {
	// given: first page succeeds, second page throttles past the retry budget
	src := &scriptedPageSource{responses: []pageResponse{
		{page: Page{Events: []Event{testEvent("a", time.Hour, 2*time.Hour)}, NextToken: "page-2"}},
		{err: &ThrottledError{}},
		{err: &ThrottledError{}},
		{err: &ThrottledError{}},
	}}
	fetcher := NewFetcher(src, fastBackoff(), event_bus.NewEventBus())

	// when
	result, err := fetcher.Fetch(context.Background(), windowStart, windowEnd)

	// then
	require.NoError(t, err)
	assert.True(t, result.Partial)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "truncated")
	assert.Len(t, result.Events, 1)
}

func TestFetcher_ExhaustionOnFirstPageFails(t *testing.T) {
	// given
	src := &scriptedPageSource{responses: []pageResponse{
		{err: &UnavailableError{StatusCode: 503}},
		{err: &UnavailableError{StatusCode: 503}},
		{err: &UnavailableError{StatusCode: 503}},
	}}
	fetcher := NewFetcher(src, fastBackoff(), event_bus.NewEventBus())

	// when
	_, err := fetcher.Fetch(context.Background(), windowStart, windowEnd)

	// then
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	var unavailable *UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestFetcher_AuthErrorIsNotRetried(t *testing.T) {
	// given
	src := &scriptedPageSource{responses: []pageResponse{
		{err: fmt.Errorf("fetching page: %w", ErrAuthRejected)},
	}}
	fetcher := NewFetcher(src, fastBackoff(), event_bus.NewEventBus())

	// when
	_, err := fetcher.Fetch(context.Background(), windowStart, windowEnd)

	// then
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Equal(t, 1, src.calls)
}

func TestFetcher_TrimsEventsOutsideWindowAndStopsPaging(t *testing.T) {
	// given: second page is already past the window end, third page must never
	// be requested
	src := &scriptedPageSource{responses: []pageResponse{
		{page: Page{Events: []Event{
			testEvent("before", -3*time.Hour, -2*time.Hour),
			testEvent("inside", time.Hour, 2*time.Hour),
		}, NextToken: "page-2"}},
		{page: Page{Events: []Event{
			testEvent("after", 25*time.Hour, 26*time.Hour),
		}, NextToken: "page-3"}},
		{page: Page{Events: []Event{testEvent("never", 30*time.Hour, 31*time.Hour)}}},
	}}
	fetcher := NewFetcher(src, fastBackoff(), event_bus.NewEventBus())

	// when
	result, err := fetcher.Fetch(context.Background(), windowStart, windowEnd)

	// then
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "inside", result.Events[0].ID)
	assert.Equal(t, 2, src.calls)
}

func TestFetcher_BackoffRespectsContextCancellation(t *testing.T) {
	// given
	src := &scriptedPageSource{responses: []pageResponse{
		{err: &ThrottledError{RetryAfter: time.Minute}},
	}}
	fetcher := NewFetcher(src, fastBackoff(), event_bus.NewEventBus())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// when
	_, err := fetcher.Fetch(ctx, windowStart, windowEnd)

	// then
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
