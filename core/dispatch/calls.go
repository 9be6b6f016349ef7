package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stasyk411/gbr/core/events"
	"github.com/stasyk411/gbr/core/geocode"
	"github.com/stasyk411/gbr/core/logger"
	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
)

// CallInput carries the fields accepted when recording a call. Coordinates
// are optional but must be supplied together.
type CallInput struct {
	ObjectName  string
	Address     string
	Description string
	Latitude    *float64
	Longitude   *float64
}

// CallManager implements the call lifecycle.
type CallManager struct {
	store    store.Store
	geocoder geocode.Geocoder
	cfg      Config
	bus      Publisher
	log      logger.Logger
	now      func() time.Time
}

// NewCallManager returns a CallManager backed by st. geocoder and bus may be
// nil.
func NewCallManager(st store.Store, geocoder geocode.Geocoder, cfg Config, bus Publisher, log logger.Logger) (*CallManager, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewCallManager")
	}
	return &CallManager{store: st, geocoder: geocoder, cfg: cfg, bus: bus, log: log, now: time.Now}, nil
}

func validCoordinates(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return model.Validationf("latitude and longitude must be given together")
	}
	if lat == nil {
		return nil
	}
	if math.IsNaN(*lat) || *lat < -90 || *lat > 90 {
		return model.Validationf("latitude %v out of range", *lat)
	}
	if math.IsNaN(*lon) || *lon < -180 || *lon > 180 {
		return model.Validationf("longitude %v out of range", *lon)
	}
	return nil
}

// CreateCall records a PENDING call. When coordinates are missing and a
// geocoder is configured the address is resolved best effort; a resolved
// address replaces the input text with its normalised form.
func (m *CallManager) CreateCall(ctx context.Context, in CallInput) (c model.Call, err error) {
	defer func(start time.Time) { observe("create_call", start, err) }(time.Now())
	c = model.Call{
		ObjectName:  strings.TrimSpace(in.ObjectName),
		Address:     strings.TrimSpace(in.Address),
		Description: strings.TrimSpace(in.Description),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Status:      model.CallPending,
	}
	if c.ObjectName == "" {
		return model.Call{}, model.Validationf("object name is required")
	}
	if c.Address == "" {
		return model.Call{}, model.Validationf("address is required")
	}
	if err := validCoordinates(c.Latitude, c.Longitude); err != nil {
		return model.Call{}, err
	}
	geocoded := false
	if !c.HasCoordinates() && m.geocoder != nil {
		loc, gerr := m.geocoder.Geocode(ctx, c.Address)
		switch {
		case gerr == nil:
			c.Latitude = model.Ptr(loc.Latitude)
			c.Longitude = model.Ptr(loc.Longitude)
			if loc.Address != "" {
				c.Address = loc.Address
			}
			geocoded = true
		case errors.Is(gerr, geocode.ErrNotFound):
			m.log.Debugw("address not resolved", map[string]any{"address": c.Address})
		default:
			m.log.Warnf("geocode %q: %v", c.Address, gerr)
		}
	}
	c.CreatedAt = m.now().UTC()
	c, err = m.store.CreateCall(ctx, c)
	if err != nil {
		return model.Call{}, err
	}
	m.log.Infof("call %d %q at %q recorded", c.ID, c.ObjectName, c.Address)
	publishAll(m.bus, []events.Event{events.CallCreated{Call: c, Geocoded: geocoded, At: c.CreatedAt}})
	return c, nil
}

// SetCallStatus moves a call to target and applies the unit side effects in
// the same transaction:
//
//   - COMPLETED stamps completed_at and frees the bound unit
//   - IN_PROGRESS marks the bound unit ARRIVED
//   - PENDING unbinds the unit, freeing it when the call was active
//
// ASSIGNED and IN_PROGRESS need a bound unit; use Coordinator.Assign first.
func (m *CallManager) SetCallStatus(ctx context.Context, id int64, target model.CallStatus) (c model.Call, err error) {
	defer func(start time.Time) { observe("set_call_status", start, err) }(time.Now())
	if !target.Valid() {
		return model.Call{}, model.Validationf("invalid call status %d", int(target))
	}
	var evs []events.Event
	err = m.store.RunInTx(ctx, func(ctx context.Context, tx store.Repository) error {
		cur, err := tx.GetCall(ctx, id)
		if err != nil {
			return err
		}
		if m.cfg.StrictTransitions {
			if err := checkTransition(cur.Status, target); err != nil {
				return fmt.Errorf("call %d: %w", id, err)
			}
		}
		c, evs, err = m.transition(ctx, tx, cur, target)
		return err
	})
	if err != nil {
		return model.Call{}, err
	}
	m.log.Infof("call %d status %s", c.ID, c.Status)
	publishAll(m.bus, evs)
	return c, nil
}

//gocyclo:ignore
func (m *CallManager) transition(ctx context.Context, tx store.Repository, c model.Call, target model.CallStatus) (model.Call, []events.Event, error) {
	now := m.now().UTC()
	prev := c.Status
	var (
		evs    []events.Event
		unitID int64
	)
	if c.UnitID != nil {
		unitID = *c.UnitID
	}
	// Lock the bound unit before any active-call check.
	var unit model.Unit
	if unitID != 0 {
		u, err := tx.GetUnit(ctx, unitID)
		if err != nil {
			return model.Call{}, nil, err
		}
		unit = u
	}
	setUnit := func(status model.UnitStatus) error {
		u, ev, err := writeUnitStatus(ctx, tx, unit, status, c.ID, now)
		if err != nil {
			return err
		}
		unit = u
		evs = append(evs, ev)
		return nil
	}

	switch target {
	case model.CallPending:
		if unitID != 0 && prev.Active() {
			busy, err := otherActiveCall(ctx, tx, unitID, c.ID)
			if err != nil {
				return model.Call{}, nil, err
			}
			if busy == 0 {
				if err := setUnit(model.UnitFree); err != nil {
					return model.Call{}, nil, err
				}
			}
		}
		c.UnitID = nil
		unitID = 0
	case model.CallAssigned, model.CallInProgress:
		if unitID == 0 {
			return model.Call{}, nil, model.Validationf("call %d has no unit; assign it first", c.ID)
		}
		if !prev.Active() && !m.cfg.AllowBusyAssignment {
			other, err := otherActiveCall(ctx, tx, unitID, c.ID)
			if err != nil {
				return model.Call{}, nil, err
			}
			if other != 0 {
				return model.Call{}, nil, model.Conflictf("unit %d already serving call %d", unitID, other)
			}
		}
		if target == model.CallAssigned {
			if c.AssignedAt == nil {
				c.AssignedAt = &now
			}
			if !prev.Active() {
				if err := setUnit(model.UnitBusy); err != nil {
					return model.Call{}, nil, err
				}
			}
		} else if err := setUnit(model.UnitArrived); err != nil {
			return model.Call{}, nil, err
		}
	case model.CallCompleted:
		if prev != model.CallCompleted {
			if c.CompletedAt == nil {
				c.CompletedAt = &now
			}
			if unitID != 0 {
				if err := m.releaseOnCompletion(ctx, tx, unitID, c.ID, setUnit); err != nil {
					return model.Call{}, nil, err
				}
			}
		}
	}

	c.Status = target
	if err := tx.UpdateCall(ctx, c); err != nil {
		return model.Call{}, nil, err
	}
	evs = append(evs, events.CallStatusChanged{CallID: c.ID, UnitID: unitID, From: prev, To: target, At: now})
	return c, evs, nil
}

// releaseOnCompletion frees the unit of a completed call. With busy
// assignment allowed the unit is freed unconditionally; otherwise it stays
// busy while another active call still references it.
func (m *CallManager) releaseOnCompletion(ctx context.Context, tx store.Repository, unitID, callID int64, setUnit func(model.UnitStatus) error) error {
	if !m.cfg.AllowBusyAssignment {
		other, err := otherActiveCall(ctx, tx, unitID, callID)
		if err != nil {
			return err
		}
		if other != 0 {
			m.log.Warnf("unit %d kept busy: still serving call %d", unitID, other)
			return nil
		}
	}
	return setUnit(model.UnitFree)
}

// otherActiveCall returns the id of an active call other than callID bound
// to unitID, or 0.
func otherActiveCall(ctx context.Context, tx store.Repository, unitID, callID int64) (int64, error) {
	active, err := tx.ListCalls(ctx, store.CallFilter{Statuses: model.ActiveCallStatuses, UnitID: &unitID})
	if err != nil {
		return 0, err
	}
	for _, a := range active {
		if a.ID != callID {
			return a.ID, nil
		}
	}
	return 0, nil
}

// GetCall returns a call by id.
func (m *CallManager) GetCall(ctx context.Context, id int64) (model.Call, error) {
	return m.store.GetCall(ctx, id)
}

// GetCallsByStatus returns calls in any of the given statuses. No statuses
// means every call.
func (m *CallManager) GetCallsByStatus(ctx context.Context, statuses ...model.CallStatus) ([]model.Call, error) {
	return m.store.ListCalls(ctx, store.CallFilter{Statuses: statuses})
}

// GetPendingCalls returns calls awaiting assignment.
func (m *CallManager) GetPendingCalls(ctx context.Context) ([]model.Call, error) {
	return m.GetCallsByStatus(ctx, model.CallPending)
}

// GetActiveCalls returns ASSIGNED and IN_PROGRESS calls.
func (m *CallManager) GetActiveCalls(ctx context.Context) ([]model.Call, error) {
	return m.GetCallsByStatus(ctx, model.ActiveCallStatuses...)
}

// GetCallsByUnit returns every call bound to unitID.
func (m *CallManager) GetCallsByUnit(ctx context.Context, unitID int64) ([]model.Call, error) {
	return m.store.ListCalls(ctx, store.CallFilter{UnitID: &unitID})
}

// GetAllCalls returns every call.
func (m *CallManager) GetAllCalls(ctx context.Context) ([]model.Call, error) {
	return m.store.ListCalls(ctx, store.CallFilter{})
}
