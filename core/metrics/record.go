package metrics

import (
	"context"

	"github.com/stasyk411/gbr/core/events"
	"github.com/stasyk411/gbr/core/logger"
)

// Record translates a lifecycle event into the matching sink call. Events
// the sink has no recorder for are ignored.
func Record(sink MetricsSink, e events.Event) error {
	switch ev := e.(type) {
	case events.UnitStatusChanged:
		return sink.RecordTransition(TransitionEvent{
			Entity: "unit", ID: ev.UnitID, From: ev.From.String(), To: ev.To.String(), Time: ev.At,
		})
	case events.CallStatusChanged:
		return sink.RecordTransition(TransitionEvent{
			Entity: "call", ID: ev.CallID, From: ev.From.String(), To: ev.To.String(), Time: ev.At,
		})
	case events.CallAssigned:
		if rec, ok := sink.(AssignmentRecorder); ok {
			return rec.RecordAssignment(AssignmentEvent{
				CallID: ev.CallID, UnitID: ev.UnitID, Reassigned: ev.PreviousUnitID != 0, Time: ev.At,
			})
		}
	case events.CrewNotified:
		if rec, ok := sink.(NotificationRecorder); ok {
			n := NotificationEvent{
				CallID: ev.CallID, UnitID: ev.UnitID, Delivered: ev.Err == nil, Latency: ev.Latency, Time: ev.At,
			}
			if ev.Err != nil {
				n.Error = ev.Err.Error()
			}
			return rec.RecordNotification(n)
		}
	}
	return nil
}

// Collect records events from ch until it is closed or ctx is done.
func Collect(ctx context.Context, sink MetricsSink, ch <-chan events.Event, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := Record(sink, e); err != nil {
				log.Warnf("metrics %s: %v", e.Kind(), err)
			}
		}
	}
}
