package journal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stasyk411/gbr/core/events"
	"github.com/stasyk411/gbr/core/logger"
)

// FromEvent converts a lifecycle event into a Record.
func FromEvent(e events.Event) Record {
	r := Record{Timestamp: e.OccurredAt().UTC(), Kind: e.Kind()}
	switch ev := e.(type) {
	case events.UnitCreated:
		r.UnitID = ev.Unit.ID
		r.To = ev.Unit.Status.String()
		r.Detail = ev.Unit.Name
	case events.UnitStatusChanged:
		r.UnitID, r.CallID = ev.UnitID, ev.CallID
		r.From, r.To = ev.From.String(), ev.To.String()
	case events.UnitContactBound:
		r.UnitID = ev.UnitID
		r.Detail = ev.Handle
	case events.CallCreated:
		r.CallID = ev.Call.ID
		r.To = ev.Call.Status.String()
		r.Detail = fmt.Sprintf("%s, %s", ev.Call.ObjectName, ev.Call.Address)
		if ev.Geocoded {
			r.Detail += " (geocoded)"
		}
	case events.CallStatusChanged:
		r.CallID, r.UnitID = ev.CallID, ev.UnitID
		r.From, r.To = ev.From.String(), ev.To.String()
	case events.CallAssigned:
		r.CallID, r.UnitID = ev.CallID, ev.UnitID
		if ev.PreviousUnitID != 0 {
			r.From = strconv.FormatInt(ev.PreviousUnitID, 10)
		}
		r.To = strconv.FormatInt(ev.UnitID, 10)
	case events.CrewNotified:
		r.CallID, r.UnitID = ev.CallID, ev.UnitID
		r.Detail = "delivered to " + ev.Handle
		if ev.Err != nil {
			r.Detail = "failed: " + ev.Err.Error()
		}
	}
	return r
}

// Recorder appends lifecycle events to a Store.
type Recorder struct {
	store Store
	log   logger.Logger
}

func NewRecorder(st Store, log logger.Logger) *Recorder {
	return &Recorder{store: st, log: log}
}

// Record appends e.
func (r *Recorder) Record(ctx context.Context, e events.Event) error {
	return r.store.Append(ctx, FromEvent(e))
}

// Run records events from ch until it is closed or ctx is done. Append
// failures are logged and do not stop the loop.
func (r *Recorder) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := r.Record(ctx, e); err != nil {
				r.log.Errorf("journal %s: %v", e.Kind(), err)
			}
		}
	}
}
