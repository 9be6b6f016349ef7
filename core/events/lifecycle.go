package events

import (
	"time"

	"github.com/stasyk411/gbr/core/model"
)

// Event is implemented by every lifecycle event.
type Event interface {
	// Kind is a stable identifier used by journals and metrics.
	Kind() string
	OccurredAt() time.Time
}

// UnitCreated is emitted when a unit is registered.
type UnitCreated struct {
	Unit model.Unit
	At   time.Time
}

func (UnitCreated) Kind() string            { return "unit_created" }
func (e UnitCreated) OccurredAt() time.Time { return e.At }

// UnitStatusChanged is emitted when a unit's status is written, including
// writes that keep the same status.
type UnitStatusChanged struct {
	UnitID int64
	From   model.UnitStatus
	To     model.UnitStatus
	// CallID is set when the change is a side effect of a call transition.
	CallID int64
	At     time.Time
}

func (UnitStatusChanged) Kind() string            { return "unit_status" }
func (e UnitStatusChanged) OccurredAt() time.Time { return e.At }

// UnitContactBound is emitted when a contact handle is bound to a unit.
type UnitContactBound struct {
	UnitID int64
	Handle string
	At     time.Time
}

func (UnitContactBound) Kind() string            { return "unit_contact" }
func (e UnitContactBound) OccurredAt() time.Time { return e.At }

// CallCreated is emitted when a call is recorded.
type CallCreated struct {
	Call     model.Call
	Geocoded bool
	At       time.Time
}

func (CallCreated) Kind() string            { return "call_created" }
func (e CallCreated) OccurredAt() time.Time { return e.At }

// CallStatusChanged is emitted for every call status write.
type CallStatusChanged struct {
	CallID int64
	UnitID int64
	From   model.CallStatus
	To     model.CallStatus
	At     time.Time
}

func (CallStatusChanged) Kind() string            { return "call_status" }
func (e CallStatusChanged) OccurredAt() time.Time { return e.At }

// CallAssigned is emitted when a call is bound to a unit.
type CallAssigned struct {
	CallID         int64
	UnitID         int64
	// PreviousUnitID is non-zero when the call was moved from another unit.
	PreviousUnitID int64
	At             time.Time
}

func (CallAssigned) Kind() string            { return "call_assigned" }
func (e CallAssigned) OccurredAt() time.Time { return e.At }

// CrewNotified reports the outcome of an alert sent to a crew.
type CrewNotified struct {
	CallID  int64
	UnitID  int64
	Handle  string
	Latency time.Duration
	Err     error
	At      time.Time
}

func (CrewNotified) Kind() string            { return "crew_notified" }
func (e CrewNotified) OccurredAt() time.Time { return e.At }
