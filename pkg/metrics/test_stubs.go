package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/pkg/upstream"
)

// stubSource is a scriptable upstream.Source counting its invocations.
type stubSource struct {
	result upstream.FetchResult
	err    error
	calls  atomic.Int32
}

func (s *stubSource) Fetch(_ context.Context, _ time.Time, _ time.Time) (upstream.FetchResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return upstream.FetchResult{}, s.err
	}
	return s.result, nil
}

// stubMetricsService is a scriptable Service capturing the requested window.
type stubMetricsService struct {
	result     Result
	err        error
	lastWindow Window
}

func (s *stubMetricsService) GetMetrics(_ context.Context, window Window) (Result, error) {
	s.lastWindow = window
	if s.err != nil {
		return Result{}, s.err
	}
	return s.result, nil
}
