package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stasyk411/gbr/core/events"
	"github.com/stasyk411/gbr/core/logger"
	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
)

// UnitInput carries the fields accepted when registering a unit.
type UnitInput struct {
	Name          string
	ContactHandle string
	Phone         string
	Notes         string
}

// UnitManager implements the unit lifecycle.
type UnitManager struct {
	store store.Store
	bus   Publisher
	log   logger.Logger
	now   func() time.Time
}

// NewUnitManager returns a UnitManager backed by st. bus may be nil.
func NewUnitManager(st store.Store, bus Publisher, log logger.Logger) (*UnitManager, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewUnitManager")
	}
	return &UnitManager{store: st, bus: bus, log: log, now: time.Now}, nil
}

// validContactHandle rejects handles that cannot form a single MQTT topic
// level.
func validContactHandle(handle string) error {
	if i := strings.IndexAny(handle, "/+#"); i >= 0 {
		return model.Validationf("contact handle %q must not contain %q", handle, handle[i])
	}
	return nil
}

// CreateUnit registers a FREE unit. A contact handle already bound to another
// unit fails with an error matching both model.ErrValidation and
// model.ErrConflict.
func (m *UnitManager) CreateUnit(ctx context.Context, in UnitInput) (u model.Unit, err error) {
	defer func(start time.Time) { observe("create_unit", start, err) }(time.Now())
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Unit{}, model.Validationf("unit name is required")
	}
	handle := strings.TrimSpace(in.ContactHandle)
	if err := validContactHandle(handle); err != nil {
		return model.Unit{}, err
	}
	u, err = m.store.CreateUnit(ctx, model.Unit{
		Name:          name,
		ContactHandle: handle,
		Status:        model.UnitFree,
		Phone:         strings.TrimSpace(in.Phone),
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     m.now().UTC(),
	})
	if err != nil {
		return model.Unit{}, err
	}
	m.log.Infof("unit %d %q registered", u.ID, u.Name)
	publishAll(m.bus, []events.Event{events.UnitCreated{Unit: u, At: u.CreatedAt}})
	return u, nil
}

// SetUnitStatus writes target unconditionally; every status is reachable
// from every other one.
func (m *UnitManager) SetUnitStatus(ctx context.Context, id int64, target model.UnitStatus) (u model.Unit, err error) {
	defer func(start time.Time) { observe("set_unit_status", start, err) }(time.Now())
	if !target.Valid() {
		return model.Unit{}, model.Validationf("invalid unit status %d", int(target))
	}
	var evs []events.Event
	err = m.store.RunInTx(ctx, func(ctx context.Context, tx store.Repository) error {
		cur, err := tx.GetUnit(ctx, id)
		if err != nil {
			return err
		}
		var ev events.Event
		u, ev, err = writeUnitStatus(ctx, tx, cur, target, 0, m.now())
		if err != nil {
			return err
		}
		evs = append(evs, ev)
		return nil
	})
	if err != nil {
		return model.Unit{}, err
	}
	m.log.Infof("unit %d status %s", u.ID, u.Status)
	publishAll(m.bus, evs)
	return u, nil
}

// GetFreeUnits returns units currently in FREE status.
func (m *UnitManager) GetFreeUnits(ctx context.Context) ([]model.Unit, error) {
	free := model.UnitFree
	return m.store.ListUnits(ctx, store.UnitFilter{Status: &free})
}

// FindByContactHandle returns the unit bound to handle.
func (m *UnitManager) FindByContactHandle(ctx context.Context, handle string) (model.Unit, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return model.Unit{}, model.NotFoundf("unit with empty contact handle")
	}
	units, err := m.store.ListUnits(ctx, store.UnitFilter{ContactHandle: handle})
	if err != nil {
		return model.Unit{}, err
	}
	if len(units) == 0 {
		return model.Unit{}, model.NotFoundf("unit with contact handle %q", handle)
	}
	return units[0], nil
}

// GetUnit returns a unit by id.
func (m *UnitManager) GetUnit(ctx context.Context, id int64) (model.Unit, error) {
	return m.store.GetUnit(ctx, id)
}

// ListUnits returns the units matching f.
func (m *UnitManager) ListUnits(ctx context.Context, f store.UnitFilter) ([]model.Unit, error) {
	return m.store.ListUnits(ctx, f)
}

// BindContactHandle attaches handle to an existing unit, replacing any
// previous handle.
func (m *UnitManager) BindContactHandle(ctx context.Context, id int64, handle string) (u model.Unit, err error) {
	defer func(start time.Time) { observe("bind_contact", start, err) }(time.Now())
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return model.Unit{}, model.Validationf("contact handle is required")
	}
	if err := validContactHandle(handle); err != nil {
		return model.Unit{}, err
	}
	err = m.store.RunInTx(ctx, func(ctx context.Context, tx store.Repository) error {
		cur, err := tx.GetUnit(ctx, id)
		if err != nil {
			return err
		}
		cur.ContactHandle = handle
		if err := tx.UpdateUnit(ctx, cur); err != nil {
			return err
		}
		u = cur
		return nil
	})
	if err != nil {
		return model.Unit{}, err
	}
	m.log.Infof("unit %d bound to contact %q", u.ID, handle)
	publishAll(m.bus, []events.Event{events.UnitContactBound{UnitID: u.ID, Handle: handle, At: m.now().UTC()}})
	return u, nil
}

// writeUnitStatus persists target on u within tx and returns the event to
// publish after commit.
func writeUnitStatus(ctx context.Context, tx store.Repository, u model.Unit, target model.UnitStatus, callID int64, now time.Time) (model.Unit, events.Event, error) {
	prev := u.Status
	u.Status = target
	if err := tx.UpdateUnit(ctx, u); err != nil {
		return model.Unit{}, nil, err
	}
	return u, events.UnitStatusChanged{UnitID: u.ID, From: prev, To: target, CallID: callID, At: now.UTC()}, nil
}
