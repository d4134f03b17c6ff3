package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/pkg/credential"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/upstream"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// graphDateTime is the zone-less format Graph uses for event times. The
// Prefer header pins the zone to UTC so ParseInLocation is unambiguous.
const graphDateTime = "2006-01-02T15:04:05.999999999"

// PageSource reads calendar events from the Microsoft Graph calendarView
// endpoint, one page per call. The continuation token is the full
// @odata.nextLink URL.
type PageSource struct {
	creds    credential.Provider
	baseURL  string
	pageSize int
}

func NewPageSource(creds credential.Provider, pageSize int) *PageSource {
	return &PageSource{
		creds:    creds,
		baseURL:  defaultBaseURL,
		pageSize: pageSize,
	}
}

// NewPageSourceWithBaseURL exists for tests running against a local server.
func NewPageSourceWithBaseURL(creds credential.Provider, pageSize int, baseURL string) *PageSource {
	return &PageSource{
		creds:    creds,
		baseURL:  baseURL,
		pageSize: pageSize,
	}
}

type graphEvent struct {
	Id    string         `json:"id"`
	Start graphEventTime `json:"start"`
	End   graphEventTime `json:"end"`
}

type graphEventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type calendarViewResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

func (s *PageSource) FetchPage(ctx context.Context, from time.Time, to time.Time, pageToken string) (upstream.Page, error) {
	client, err := s.prepareGraphClient(ctx)
	if err != nil {
		return upstream.Page{}, err
	}

	requestURL := pageToken
	if requestURL == "" {
		// According to the Graph API docs, the endpoint to list events in a
		// window is:
		// GET https://graph.microsoft.com/v1.0/me/calendarView?startDateTime=...&endDateTime=...
		query := url.Values{}
		query.Set("startDateTime", from.UTC().Format(time.RFC3339))
		query.Set("endDateTime", to.UTC().Format(time.RFC3339))
		query.Set("$orderby", "start/dateTime")
		query.Set("$top", strconv.Itoa(s.pageSize))
		requestURL = s.baseURL + "/me/calendarView?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		log.Errorf("Failed to create request: %v", err)
		return upstream.Page{}, err
	}
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return upstream.Page{}, err
		}
		return upstream.Page{}, &upstream.UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return upstream.Page{}, err
	}

	var response calendarViewResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		log.Errorf("Failed to decode Graph response: %v", err)
		return upstream.Page{}, err
	}

	events := make([]upstream.Event, 0, len(response.Value))
	for _, item := range response.Value {
		start, err := parseGraphTime(item.Start)
		if err != nil {
			log.Warnf("skipping Graph event %s with unparsable start: %v", item.Id, err)
			continue
		}
		end, err := parseGraphTime(item.End)
		if err != nil {
			log.Warnf("skipping Graph event %s with unparsable end: %v", item.Id, err)
			continue
		}
		events = append(events, upstream.Event{
			ID:    item.Id,
			Start: start,
			End:   end,
		})
	}

	return upstream.Page{Events: events, NextToken: response.NextLink}, nil
}

// prepareGraphClient returns an authenticated HTTP client for the Graph API
func (s *PageSource) prepareGraphClient(ctx context.Context) (*http.Client, error) {
	tokenSource, err := s.creds.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, tokenSource), nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &upstream.ThrottledError{RetryAfter: retryAfterHeader(resp)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("graph API returned %d: %w", resp.StatusCode, upstream.ErrAuthRejected)
	case resp.StatusCode >= 500:
		return &upstream.UnavailableError{StatusCode: resp.StatusCode}
	default:
		return fmt.Errorf("graph API returned non-OK status: %d", resp.StatusCode)
	}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func parseGraphTime(t graphEventTime) (time.Time, error) {
	loc := time.UTC
	if t.TimeZone != "" && t.TimeZone != "UTC" {
		parsed, err := time.LoadLocation(t.TimeZone)
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown timezone %q: %w", t.TimeZone, err)
		}
		loc = parsed
	}
	return time.ParseInLocation(graphDateTime, t.DateTime, loc)
}
