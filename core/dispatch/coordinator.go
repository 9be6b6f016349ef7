package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stasyk411/gbr/core/events"
	"github.com/stasyk411/gbr/core/logger"
	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/notify"
	"github.com/stasyk411/gbr/core/store"
)

// ErrNotification wraps failures to alert a crew after a committed
// assignment. The assignment itself stays in place.
var ErrNotification = errors.New("crew notification failed")

// Coordinator binds calls to units.
type Coordinator struct {
	store    store.Store
	notifier notify.Notifier
	cfg      Config
	bus      Publisher
	log      logger.Logger
	now      func() time.Time
}

// NewCoordinator returns a Coordinator. notifier and bus may be nil; without
// a notifier AssignAndNotify behaves like Assign.
func NewCoordinator(st store.Store, notifier notify.Notifier, cfg Config, bus Publisher, log logger.Logger) (*Coordinator, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewCoordinator")
	}
	return &Coordinator{store: st, notifier: notifier, cfg: cfg, bus: bus, log: log, now: time.Now}, nil
}

// Assign binds the call to the unit, sets the call ASSIGNED and the unit
// BUSY in one transaction. assigned_at is stamped on the first assignment
// only. Assigning a unit that already serves another active call fails with
// model.ErrConflict unless busy assignment is allowed. Moving a call to a
// different unit leaves the previous unit's status untouched.
func (c *Coordinator) Assign(ctx context.Context, callID, unitID int64) (call model.Call, err error) {
	defer func(start time.Time) { observe("assign", start, err) }(time.Now())
	var evs []events.Event
	err = c.store.RunInTx(ctx, func(ctx context.Context, tx store.Repository) error {
		cur, err := tx.GetCall(ctx, callID)
		if err != nil {
			return err
		}
		unit, err := tx.GetUnit(ctx, unitID)
		if err != nil {
			return err
		}
		if c.cfg.StrictTransitions && cur.Status == model.CallCompleted {
			return model.Conflictf("call %d already completed", callID)
		}
		if !c.cfg.AllowBusyAssignment {
			other, err := otherActiveCall(ctx, tx, unitID, callID)
			if err != nil {
				return err
			}
			if other != 0 {
				return model.Conflictf("unit %d already serving call %d", unitID, other)
			}
		}

		now := c.now().UTC()
		prevStatus := cur.Status
		var prevUnit int64
		if cur.UnitID != nil && *cur.UnitID != unitID {
			prevUnit = *cur.UnitID
		}
		cur.UnitID = &unitID
		cur.Status = model.CallAssigned
		if cur.AssignedAt == nil {
			cur.AssignedAt = &now
		}
		if err := tx.UpdateCall(ctx, cur); err != nil {
			return err
		}
		_, ev, err := writeUnitStatus(ctx, tx, unit, model.UnitBusy, callID, now)
		if err != nil {
			return err
		}
		call = cur
		evs = append(evs,
			events.CallAssigned{CallID: callID, UnitID: unitID, PreviousUnitID: prevUnit, At: now},
			events.CallStatusChanged{CallID: callID, UnitID: unitID, From: prevStatus, To: model.CallAssigned, At: now},
			ev,
		)
		return nil
	})
	if err != nil {
		c.log.Warnf("assign call %d to unit %d: %v", callID, unitID, err)
		return model.Call{}, err
	}
	assignmentsTotal.Inc()
	c.log.Infof("call %d assigned to unit %d", callID, unitID)
	publishAll(c.bus, evs)
	return call, nil
}

// CanNotify reports whether a notifier is configured.
func (c *Coordinator) CanNotify() bool { return c.notifier != nil }

// AssignAndNotify assigns the call and alerts the crew. When the alert
// cannot be delivered the committed call is returned together with an error
// wrapping ErrNotification.
func (c *Coordinator) AssignAndNotify(ctx context.Context, callID, unitID int64) (model.Call, error) {
	call, err := c.Assign(ctx, callID, unitID)
	if err != nil {
		return model.Call{}, err
	}
	if c.notifier == nil {
		return call, nil
	}
	return call, c.Notify(ctx, call)
}

// Notify alerts the crew of the unit bound to call.
func (c *Coordinator) Notify(ctx context.Context, call model.Call) error {
	if call.UnitID == nil {
		return fmt.Errorf("%w: call %d has no unit", ErrNotification, call.ID)
	}
	if c.notifier == nil {
		return fmt.Errorf("%w: no notifier configured", ErrNotification)
	}
	unit, err := c.store.GetUnit(ctx, *call.UnitID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}
	start := time.Now()
	if !unit.HasContact() {
		err = fmt.Errorf("unit %d: %w", unit.ID, notify.ErrNoContact)
	} else {
		nctx, cancel := context.WithTimeout(ctx, c.cfg.notifyTimeout())
		err = c.notifier.Notify(nctx, unit.ContactHandle, AlertFor(call, unit))
		cancel()
	}
	publishAll(c.bus, []events.Event{events.CrewNotified{
		CallID: call.ID, UnitID: unit.ID, Handle: unit.ContactHandle,
		Latency: time.Since(start), Err: err, At: c.now().UTC(),
	}})
	if err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		c.log.Errorf("notify unit %d about call %d: %v", unit.ID, call.ID, err)
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}
	notificationsTotal.WithLabelValues("delivered").Inc()
	return nil
}

// AlertFor builds the crew alert for call.
func AlertFor(call model.Call, unit model.Unit) notify.Alert {
	return notify.Alert{
		CallID:      call.ID,
		UnitID:      unit.ID,
		UnitName:    unit.Name,
		ObjectName:  call.ObjectName,
		Address:     call.Address,
		Description: call.Description,
		Latitude:    call.Latitude,
		Longitude:   call.Longitude,
		Links:       notify.NavigationLinks(call.Latitude, call.Longitude, call.Address),
	}
}
