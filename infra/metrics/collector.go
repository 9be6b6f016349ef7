package metrics

import (
	"context"

	"github.com/stasyk411/gbr/core/events"
	"github.com/stasyk411/gbr/core/logger"
	coremetrics "github.com/stasyk411/gbr/core/metrics"
	coremon "github.com/stasyk411/gbr/core/monitoring"
	"github.com/stasyk411/gbr/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// lifecycle events. It stops when the context is canceled or the bus is
// closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	coremon.Go("metrics-collector", func() {
		defer bus.Unsubscribe(sub)
		coremetrics.Collect(ctx, sink, sub, log)
	})
}
