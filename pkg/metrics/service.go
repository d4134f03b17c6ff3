package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/internal/event_bus"
	"github.com/reshmi-chandran/graph-api-mvp/internal/utils"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/upstream"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/user"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	GetMetrics(ctx context.Context, window Window) (Result, error)
}

// Config carries the tunables of the metrics engine.
type Config struct {
	CacheTTL time.Duration
	Blob     BlobConfig
}

type ServiceImpl struct {
	source upstream.Source
	cache  *WindowCache
	clock  utils.Clock
	cfg    Config
	bus    *event_bus.EventBus
}

func NewService(source upstream.Source, cache *WindowCache, clock utils.Clock, cfg Config, bus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{
		source: source,
		cache:  cache,
		clock:  clock,
		cfg:    cfg,
		bus:    bus,
	}
}

func (s *ServiceImpl) GetMetrics(ctx context.Context, window Window) (Result, error) {
	if err := window.Validate(s.clock.Now()); err != nil {
		return Result{}, err
	}

	uid, err := user.CurrentUid(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get current user: %w", err)
	}

	key := cacheKey(uid, window)
	return s.cache.GetOrCompute(ctx, key, s.cfg.CacheTTL, func(flightCtx context.Context) (Result, error) {
		return s.compute(flightCtx, key, window)
	})
}

func (s *ServiceImpl) compute(ctx context.Context, key string, window Window) (Result, error) {
	started := time.Now()

	fetched, err := s.source.Fetch(ctx, window.Start, window.End)
	if err != nil {
		log.Errorf("failed to fetch events for key %s: %v", key, err)
		return Result{}, err
	}

	result := Derive(fetched.Events, window, s.cfg.Blob)
	if fetched.Partial {
		result.Partial = true
	}
	// Fetch-time warnings come first, derivation warnings after.
	if len(fetched.Warnings) > 0 {
		result.Warnings = append(append([]string{}, fetched.Warnings...), result.Warnings...)
	}

	if result.Partial {
		s.bus.Publish(event_bus.NewEvent(event_bus.PartialResultServed, event_bus.PartialResult{
			Key:      key,
			Warnings: result.Warnings,
		}))
	}
	s.bus.Publish(event_bus.NewEvent(event_bus.MetricsComputed, event_bus.ComputationDone{
		Key:           key,
		Latency:       time.Since(started),
		TotalMeetings: result.TotalMeetings,
		Partial:       result.Partial,
	}))

	return result, nil
}
