package google

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/pkg/credential"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/upstream"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// PageSource reads calendar events from the Google Calendar API, one page per
// call. Ascending start order is requested but treated as a hint only.
type PageSource struct {
	creds      credential.Provider
	calendarId string
	pageSize   int64
}

func NewPageSource(creds credential.Provider, calendarId string, pageSize int) *PageSource {
	if calendarId == "" {
		calendarId = "primary"
	}
	return &PageSource{
		creds:      creds,
		calendarId: calendarId,
		pageSize:   int64(pageSize),
	}
}

func (s *PageSource) FetchPage(ctx context.Context, from time.Time, to time.Time, pageToken string) (upstream.Page, error) {
	service, err := s.prepareCalendarService(ctx)
	if err != nil {
		return upstream.Page{}, err
	}

	call := service.Events.List(s.calendarId).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(s.pageSize)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	googleEvents, err := call.Context(ctx).Do()
	if err != nil {
		return upstream.Page{}, translateError(err)
	}

	events := make([]upstream.Event, 0, len(googleEvents.Items))
	for _, item := range googleEvents.Items {
		start, err := parseEventTime(item.Start)
		if err != nil {
			log.Warnf("skipping Google event %s with unparsable start: %v", item.Id, err)
			continue
		}
		end, err := parseEventTime(item.End)
		if err != nil {
			log.Warnf("skipping Google event %s with unparsable end: %v", item.Id, err)
			continue
		}
		events = append(events, upstream.Event{
			ID:    item.Id,
			Start: start,
			End:   end,
		})
	}

	return upstream.Page{Events: events, NextToken: googleEvents.NextPageToken}, nil
}

func (s *PageSource) prepareCalendarService(ctx context.Context) (*gcal.Service, error) {
	tokenSource, err := s.creds.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	service, err := gcal.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		err := fmt.Errorf("unable to create Calendar client: %w", err)
		log.Error(err)
		return nil, err
	}
	return service, nil
}

func parseEventTime(edt *gcal.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("missing event time")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	// All-day events carry a date only.
	return time.Parse("2006-01-02", edt.Date)
}

// translateError maps Google API failures onto the upstream error taxonomy.
func translateError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		// Transport-level failure, retryable like a 5xx.
		return &upstream.UnavailableError{Err: err}
	}

	switch {
	case gerr.Code == 429 || isRateLimitReason(gerr):
		return &upstream.ThrottledError{RetryAfter: retryAfterHint(gerr)}
	case gerr.Code == 401 || gerr.Code == 403:
		return fmt.Errorf("google calendar API returned %d: %w", gerr.Code, upstream.ErrAuthRejected)
	case gerr.Code >= 500:
		return &upstream.UnavailableError{StatusCode: gerr.Code}
	default:
		return fmt.Errorf("google calendar API error: %w", gerr)
	}
}

// isRateLimitReason detects Google's habit of reporting quota exhaustion as
// 403 with a rate-limit reason instead of 429.
func isRateLimitReason(gerr *googleapi.Error) bool {
	if gerr.Code != 403 {
		return false
	}
	for _, item := range gerr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

func retryAfterHint(gerr *googleapi.Error) time.Duration {
	if gerr.Header == nil {
		return 0
	}
	seconds, err := strconv.Atoi(gerr.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
