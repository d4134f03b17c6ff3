package app

import (
	"fmt"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/internal/config"
	"github.com/reshmi-chandran/graph-api-mvp/internal/event_bus"
	"github.com/reshmi-chandran/graph-api-mvp/internal/utils"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/credential"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/google"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/metrics"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/msgraph"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/upstream"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Bus   *event_bus.EventBus
	Clock utils.Clock

	CredentialProvider credential.Provider
	PageSource         upstream.PageSource
	EventSource        upstream.Source

	WindowCache    *metrics.WindowCache
	MetricsService metrics.Service
	MetricsHandler *metrics.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{}

	deps.Bus = event_bus.NewEventBus()
	deps.Clock = &utils.SystemClock{}

	deps.CredentialProvider = credential.NewStaticProvider(cfg.Credential.AccessToken)

	switch cfg.Upstream.Provider {
	case "google":
		deps.PageSource = google.NewPageSource(deps.CredentialProvider, cfg.Google.CalendarId, cfg.Upstream.PageSize)
	case "msgraph":
		deps.PageSource = msgraph.NewPageSource(deps.CredentialProvider, cfg.Upstream.PageSize)
	default:
		return nil, fmt.Errorf("unknown upstream provider: %q", cfg.Upstream.Provider)
	}

	backoff := upstream.Backoff{
		Base:       time.Duration(cfg.Upstream.BaseDelayMs) * time.Millisecond,
		Max:        time.Duration(cfg.Upstream.MaxDelayMs) * time.Millisecond,
		MaxRetries: cfg.Upstream.MaxRetries,
	}
	deps.EventSource = upstream.NewFetcher(deps.PageSource, backoff, deps.Bus)

	computeTimeout := time.Duration(cfg.Metrics.ComputeTimeoutSeconds) * time.Second
	deps.WindowCache = metrics.NewWindowCache(deps.Clock, computeTimeout, deps.Bus)

	metricsCfg := metrics.Config{
		CacheTTL: time.Duration(cfg.Metrics.CacheTtlMinutes) * time.Minute,
		Blob: metrics.BlobConfig{
			LoadWeight:       cfg.Metrics.Blob.LoadWeight,
			BalanceWeight:    cfg.Metrics.Blob.BalanceWeight,
			GapWeight:        cfg.Metrics.Blob.GapWeight,
			CapacityFraction: cfg.Metrics.Blob.CapacityFraction,
			TargetGap:        time.Duration(cfg.Metrics.Blob.TargetGapMinutes * float64(time.Minute)),
		},
	}
	deps.MetricsService = metrics.NewService(deps.EventSource, deps.WindowCache, deps.Clock, metricsCfg, deps.Bus)

	requestTimeout := time.Duration(cfg.Metrics.RequestTimeoutSeconds) * time.Second
	deps.MetricsHandler = metrics.NewHandler(deps.MetricsService, deps.Clock, requestTimeout)

	return deps, nil
}
