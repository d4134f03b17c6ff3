package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/pkg/upstream"
	log "github.com/sirupsen/logrus"
)

// BlobConfig controls the composite 0-100 score. The score is a weighted mean
// of three sub-scores in [0,1]:
//
//   - load:      total meeting minutes relative to CapacityFraction of the
//     window, capped at 1
//   - balance:   1 minus the per-day meeting-count stddev normalized by its
//     mean, capped into [0,1]
//   - gapHealth: average gap relative to TargetGap, capped at 1
//
// Weights are normalized over their sum, the weighted mean is scaled to 100
// and rounded to the nearest integer. The formula is deliberately stable for
// a given configuration.
type BlobConfig struct {
	LoadWeight       float64
	BalanceWeight    float64
	GapWeight        float64
	CapacityFraction float64
	TargetGap        time.Duration
}

func DefaultBlobConfig() BlobConfig {
	return BlobConfig{
		LoadWeight:       1,
		BalanceWeight:    1,
		GapWeight:        1,
		CapacityFraction: 0.25,
		TargetGap:        60 * time.Minute,
	}
}

// Derive computes the metrics summary for the events of a window. Pure and
// deterministic: no I/O, no clock, same input always yields the same Result.
// Input order does not matter; events are re-sorted internally.
func Derive(events []upstream.Event, window Window, cfg BlobConfig) Result {
	var result Result

	valid := make([]upstream.Event, 0, len(events))
	for _, ev := range events {
		if ev.Start.After(ev.End) {
			warning := fmt.Sprintf("dropping malformed event %s: start after end", ev.ID)
			log.Warn(warning)
			result.Warnings = append(result.Warnings, warning)
			result.Partial = true
			continue
		}
		valid = append(valid, ev)
	}

	// Deterministic order: start, then end, then id.
	sort.Slice(valid, func(i, j int) bool {
		if !valid[i].Start.Equal(valid[j].Start) {
			return valid[i].Start.Before(valid[j].Start)
		}
		if !valid[i].End.Equal(valid[j].End) {
			return valid[i].End.Before(valid[j].End)
		}
		return valid[i].ID < valid[j].ID
	})

	result.TotalMeetings = len(valid)
	for _, ev := range valid {
		// Overlapping events are not merged: load semantics, not occupancy.
		result.TotalDurationMinutes += ev.End.Sub(ev.Start).Minutes()
	}
	if result.TotalMeetings > 0 {
		result.AvgDurationMinutes = result.TotalDurationMinutes / float64(result.TotalMeetings)
	}

	gaps := adjacentGaps(valid)
	if gaps != nil {
		sorted := make([]float64, len(gaps))
		copy(sorted, gaps)
		sort.Float64s(sorted)

		result.MinGapMinutes = floatPtr(sorted[0])
		result.MaxGapMinutes = floatPtr(sorted[len(sorted)-1])
		result.MedianGapMinutes = floatPtr(median(sorted))
	}

	// Frequency is over the requested window, not the span of the events.
	result.MeetingFrequencyPerDay = float64(result.TotalMeetings) / window.Days()

	result.BlobValue = blobValue(result, gaps, valid, window, cfg)

	return result
}

// adjacentGaps returns the minutes between consecutive events in sorted
// order. Overlaps clamp to zero rather than being discarded. Nil with fewer
// than two events.
func adjacentGaps(sorted []upstream.Event) []float64 {
	if len(sorted) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(sorted)-1)
	for i := 0; i < len(sorted)-1; i++ {
		gap := sorted[i+1].Start.Sub(sorted[i].End).Minutes()
		if gap < 0 {
			gap = 0
		}
		gaps = append(gaps, gap)
	}
	return gaps
}

// median expects its input sorted ascending.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func blobValue(result Result, gaps []float64, sorted []upstream.Event, window Window, cfg BlobConfig) int {
	weightSum := cfg.LoadWeight + cfg.BalanceWeight + cfg.GapWeight
	if weightSum <= 0 {
		return 0
	}

	capacity := window.Minutes() * cfg.CapacityFraction
	load := 0.0
	if capacity > 0 {
		load = math.Min(1, result.TotalDurationMinutes/capacity)
	}

	score := cfg.LoadWeight*load +
		cfg.BalanceWeight*balanceScore(sorted, window) +
		cfg.GapWeight*gapHealthScore(gaps, cfg.TargetGap)

	value := int(math.Round(score / weightSum * 100))
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// balanceScore measures how evenly meetings spread over the days of the
// window. An empty or single-day window counts as perfectly balanced.
func balanceScore(sorted []upstream.Event, window Window) float64 {
	numDays := int(math.Ceil(window.Days()))
	if numDays < 1 {
		numDays = 1
	}
	if len(sorted) == 0 || numDays == 1 {
		return 1
	}

	counts := make([]float64, numDays)
	for _, ev := range sorted {
		day := int(ev.Start.Sub(window.Start).Hours() / 24)
		if day < 0 {
			day = 0
		}
		if day >= numDays {
			day = numDays - 1
		}
		counts[day]++
	}

	mean := float64(len(sorted)) / float64(numDays)
	variance := 0.0
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(numDays)

	normalized := math.Sqrt(variance) / mean
	return 1 - math.Min(1, normalized)
}

// gapHealthScore rates the average breathing room between meetings against
// the target gap. No gaps at all reads as healthy.
func gapHealthScore(gaps []float64, targetGap time.Duration) float64 {
	if len(gaps) == 0 {
		return 1
	}
	target := targetGap.Minutes()
	if target <= 0 {
		return 1
	}
	sum := 0.0
	for _, g := range gaps {
		sum += g
	}
	avg := sum / float64(len(gaps))
	return math.Min(1, avg/target)
}

func floatPtr(v float64) *float64 {
	return &v
}
