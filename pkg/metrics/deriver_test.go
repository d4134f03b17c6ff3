package metrics

import (
	"testing"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dayStart = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
var oneDayWindow = Window{Start: dayStart, End: dayStart.Add(24 * time.Hour)}

func event(id string, startHour, startMin, endHour, endMin int) upstream.Event {
	return upstream.Event{
		ID:    id,
		Start: dayStart.Add(time.Duration(startHour)*time.Hour + time.Duration(startMin)*time.Minute),
		End:   dayStart.Add(time.Duration(endHour)*time.Hour + time.Duration(endMin)*time.Minute),
	}
}

func TestDerive_TwoMeetingsOneDay(t *testing.T) {
	// given: 09:00-09:30 and 10:00-10:45
	events := []upstream.Event{
		event("a", 9, 0, 9, 30),
		event("b", 10, 0, 10, 45),
	}

	// when
	result := Derive(events, oneDayWindow, DefaultBlobConfig())

	// then
	assert.Equal(t, 2, result.TotalMeetings)
	assert.Equal(t, 75.0, result.TotalDurationMinutes)
	assert.Equal(t, 37.5, result.AvgDurationMinutes)
	require.NotNil(t, result.MedianGapMinutes)
	assert.Equal(t, 30.0, *result.MedianGapMinutes)
	assert.Equal(t, 30.0, *result.MinGapMinutes)
	assert.Equal(t, 30.0, *result.MaxGapMinutes)
	assert.Equal(t, 2.0, result.MeetingFrequencyPerDay)
	assert.False(t, result.Partial)
	assert.Empty(t, result.Warnings)
	// load 75/360, balance 1 (single day), gap health 30/60, equal weights
	assert.Equal(t, 57, result.BlobValue)
}

func TestDerive_OverlappingEventsAreNotMerged(t *testing.T) {
	// given: 09:00-10:00 and 09:30-10:30 overlap by 30 minutes
	events := []upstream.Event{
		event("a", 9, 0, 10, 0),
		event("b", 9, 30, 10, 30),
	}

	// when
	result := Derive(events, oneDayWindow, DefaultBlobConfig())

	// then: both durations counted in full, negative gap clamped to zero
	assert.Equal(t, 120.0, result.TotalDurationMinutes)
	require.NotNil(t, result.MinGapMinutes)
	assert.Equal(t, 0.0, *result.MinGapMinutes)
	assert.Equal(t, 0.0, *result.MedianGapMinutes)
	assert.Equal(t, 0.0, *result.MaxGapMinutes)
}

func TestDerive_NoEvents(t *testing.T) {
	// when
	result := Derive(nil, oneDayWindow, DefaultBlobConfig())

	// then
	assert.Equal(t, 0, result.TotalMeetings)
	assert.Equal(t, 0.0, result.TotalDurationMinutes)
	assert.Equal(t, 0.0, result.AvgDurationMinutes)
	assert.Nil(t, result.MedianGapMinutes)
	assert.Nil(t, result.MinGapMinutes)
	assert.Nil(t, result.MaxGapMinutes)
	assert.Equal(t, 0.0, result.MeetingFrequencyPerDay)
	// zero-load baseline: load 0, balance 1, gap health 1
	assert.Equal(t, 67, result.BlobValue)
	assert.False(t, result.Partial)
}

func TestDerive_SingleEventHasNoGapStats(t *testing.T) {
	// when
	result := Derive([]upstream.Event{event("a", 9, 0, 10, 0)}, oneDayWindow, DefaultBlobConfig())

	// then
	assert.Equal(t, 1, result.TotalMeetings)
	assert.Nil(t, result.MedianGapMinutes)
	assert.Nil(t, result.MinGapMinutes)
	assert.Nil(t, result.MaxGapMinutes)
}

func TestDerive_MalformedEventsAreDroppedWithWarning(t *testing.T) {
	// given: event "bad" ends before it starts
	events := []upstream.Event{
		event("a", 9, 0, 9, 30),
		event("bad", 11, 0, 10, 0),
		event("b", 10, 0, 10, 45),
	}

	// when
	result := Derive(events, oneDayWindow, DefaultBlobConfig())

	// then
	assert.Equal(t, 2, result.TotalMeetings)
	assert.Equal(t, 75.0, result.TotalDurationMinutes)
	assert.True(t, result.Partial)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "bad")
}

func TestDerive_IsDeterministicOnUnsortedInput(t *testing.T) {
	// given: the same events in two different orders
	ordered := []upstream.Event{
		event("a", 9, 0, 9, 30),
		event("b", 10, 0, 10, 45),
		event("c", 13, 0, 14, 0),
		event("d", 16, 30, 17, 0),
	}
	shuffled := []upstream.Event{ordered[2], ordered[0], ordered[3], ordered[1]}

	// when
	first := Derive(ordered, oneDayWindow, DefaultBlobConfig())
	second := Derive(shuffled, oneDayWindow, DefaultBlobConfig())
	third := Derive(shuffled, oneDayWindow, DefaultBlobConfig())

	// then
	assert.Equal(t, first, second)
	assert.Equal(t, second, third)
}

func TestDerive_GapStatsAreOrderedAndNonNegative(t *testing.T) {
	// given: a mix of tight, overlapping and wide gaps
	events := []upstream.Event{
		event("a", 8, 0, 9, 0),
		event("b", 8, 30, 9, 30), // overlaps a
		event("c", 10, 0, 10, 30),
		event("d", 13, 0, 13, 30),
	}

	// when
	result := Derive(events, oneDayWindow, DefaultBlobConfig())

	// then
	require.NotNil(t, result.MinGapMinutes)
	assert.GreaterOrEqual(t, *result.MinGapMinutes, 0.0)
	assert.LessOrEqual(t, *result.MinGapMinutes, *result.MedianGapMinutes)
	assert.LessOrEqual(t, *result.MedianGapMinutes, *result.MaxGapMinutes)
}

func TestDerive_MedianOfEvenGapCount(t *testing.T) {
	// given: gaps of 30 and 90 minutes
	events := []upstream.Event{
		event("a", 9, 0, 9, 30),
		event("b", 10, 0, 10, 30),
		event("c", 12, 0, 12, 30),
	}

	// when
	result := Derive(events, oneDayWindow, DefaultBlobConfig())

	// then: standard median averages the two middle values
	require.NotNil(t, result.MedianGapMinutes)
	assert.Equal(t, 60.0, *result.MedianGapMinutes)
}

func TestDerive_FrequencyUsesRequestedWindow(t *testing.T) {
	// given: a 2-day window with all events on day one
	window := Window{Start: dayStart, End: dayStart.Add(48 * time.Hour)}
	events := []upstream.Event{
		event("a", 9, 0, 9, 30),
		event("b", 10, 0, 10, 30),
		event("c", 11, 0, 11, 30),
		event("d", 12, 0, 12, 30),
	}

	// when
	result := Derive(events, window, DefaultBlobConfig())

	// then
	assert.Equal(t, 2.0, result.MeetingFrequencyPerDay)
}

func TestDerive_BalancedDaysScoreHigherThanClusteredDays(t *testing.T) {
	// given: the same meeting count spread evenly vs clustered on one day
	window := Window{Start: dayStart, End: dayStart.Add(48 * time.Hour)}
	spread := []upstream.Event{
		event("a", 9, 0, 9, 30),
		event("b", 33, 0, 33, 30), // day two
	}
	clustered := []upstream.Event{
		event("a", 9, 0, 9, 30),
		event("b", 10, 0, 10, 30),
	}

	// when
	balanced := Derive(spread, window, DefaultBlobConfig())
	lopsided := Derive(clustered, window, DefaultBlobConfig())

	// then
	assert.Greater(t, balanced.BlobValue, lopsided.BlobValue)
}

func TestDerive_BlobValueStaysInRange(t *testing.T) {
	// given: a window packed far beyond capacity
	var events []upstream.Event
	for hour := 0; hour < 24; hour++ {
		events = append(events, event(string(rune('a'+hour)), hour, 0, hour, 59))
	}

	// when
	result := Derive(events, oneDayWindow, DefaultBlobConfig())

	// then
	assert.GreaterOrEqual(t, result.BlobValue, 0)
	assert.LessOrEqual(t, result.BlobValue, 100)
}
