package app

import (
	"github.com/reshmi-chandran/graph-api-mvp/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

// subscribeTelemetrySink routes the engine's telemetry events to logrus. The
// engine itself never owns a log transport.
func subscribeTelemetrySink(bus *event_bus.EventBus) {
	event_bus.SubscribeTyped[event_bus.CacheLookup](bus, event_bus.CacheLookupDone,
		func(e event_bus.EventT[event_bus.CacheLookup]) {
			log.WithFields(log.Fields{
				"key": e.Data.Key,
				"hit": e.Data.Hit,
			}).Debug("window cache lookup")
		})

	event_bus.SubscribeTyped[event_bus.UpstreamRetry](bus, event_bus.UpstreamRetried,
		func(e event_bus.EventT[event_bus.UpstreamRetry]) {
			log.WithFields(log.Fields{
				"attempt": e.Data.Attempt,
				"delay":   e.Data.Delay.String(),
				"reason":  e.Data.Reason,
			}).Info("retrying upstream calendar fetch")
		})

	event_bus.SubscribeTyped[event_bus.PartialResult](bus, event_bus.PartialResultServed,
		func(e event_bus.EventT[event_bus.PartialResult]) {
			log.WithFields(log.Fields{
				"key":      e.Data.Key,
				"warnings": e.Data.Warnings,
			}).Warn("serving partial metrics result")
		})

	event_bus.SubscribeTyped[event_bus.ComputationDone](bus, event_bus.MetricsComputed,
		func(e event_bus.EventT[event_bus.ComputationDone]) {
			log.WithFields(log.Fields{
				"key":           e.Data.Key,
				"latency":       e.Data.Latency.String(),
				"totalMeetings": e.Data.TotalMeetings,
				"partial":       e.Data.Partial,
			}).Info("metrics computed")
		})
}
