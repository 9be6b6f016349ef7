package dispatch

import "github.com/stasyk411/gbr/core/events"

// Publisher receives lifecycle events. *eventbus.TypedBus[events.Event]
// satisfies it.
type Publisher interface {
	Publish(events.Event)
}

func publishAll(p Publisher, evs []events.Event) {
	if p == nil {
		return
	}
	for _, e := range evs {
		p.Publish(e)
	}
}
