package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stasyk411/gbr/core/events"
	"github.com/stasyk411/gbr/core/geocode"
	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/notify"
	"github.com/stasyk411/gbr/core/store"
	"github.com/stasyk411/gbr/infra/logger"
	"github.com/stasyk411/gbr/infra/store/memory"
)

type recordBus struct {
	mu  sync.Mutex
	evs []events.Event
}

func (b *recordBus) Publish(e events.Event) {
	b.mu.Lock()
	b.evs = append(b.evs, e)
	b.mu.Unlock()
}

func (b *recordBus) kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.evs))
	for i, e := range b.evs {
		out[i] = e.Kind()
	}
	return out
}

func (b *recordBus) reset() {
	b.mu.Lock()
	b.evs = nil
	b.mu.Unlock()
}

type sentAlert struct {
	handle string
	alert  notify.Alert
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentAlert
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, handle string, a notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentAlert{handle: handle, alert: a})
	return nil
}

type env struct {
	store    store.Store
	units    *UnitManager
	calls    *CallManager
	coord    *Coordinator
	bus      *recordBus
	notifier *fakeNotifier
}

func newEnv(t *testing.T, cfg Config, st store.Store, gc geocode.Geocoder) *env {
	t.Helper()
	if st == nil {
		st = memory.New()
	}
	t.Cleanup(func() { _ = st.Close() })
	bus := &recordBus{}
	n := &fakeNotifier{}
	log := logger.NopLogger{}
	units, err := NewUnitManager(st, bus, log)
	require.NoError(t, err)
	calls, err := NewCallManager(st, gc, cfg, bus, log)
	require.NoError(t, err)
	coord, err := NewCoordinator(st, n, cfg, bus, log)
	require.NoError(t, err)
	return &env{store: st, units: units, calls: calls, coord: coord, bus: bus, notifier: n}
}

func (e *env) unit(t *testing.T, name, handle string) model.Unit {
	t.Helper()
	u, err := e.units.CreateUnit(context.Background(), UnitInput{Name: name, ContactHandle: handle})
	require.NoError(t, err)
	return u
}

func (e *env) call(t *testing.T, object, address string) model.Call {
	t.Helper()
	c, err := e.calls.CreateCall(context.Background(), CallInput{ObjectName: object, Address: address})
	require.NoError(t, err)
	return c
}

func (e *env) unitStatus(t *testing.T, id int64) model.UnitStatus {
	t.Helper()
	u, err := e.store.GetUnit(context.Background(), id)
	require.NoError(t, err)
	return u.Status
}

// failingUnitWrites makes every unit update inside a transaction fail.
type failingUnitWrites struct {
	store.Store
}

func (f failingUnitWrites) RunInTx(ctx context.Context, fn store.TxFunc) error {
	return f.Store.RunInTx(ctx, func(ctx context.Context, tx store.Repository) error {
		return fn(ctx, failingRepo{tx})
	})
}

type failingRepo struct {
	store.Repository
}

func (failingRepo) UpdateUnit(context.Context, model.Unit) error {
	return model.StorageError("update unit", errors.New("disk full"))
}

func staticGeocoder(loc geocode.Location, err error) geocode.Geocoder {
	return geocode.Func(func(context.Context, string) (geocode.Location, error) {
		if err != nil {
			return geocode.Location{}, err
		}
		return loc, nil
	})
}

func callName(i int) string { return fmt.Sprintf("Object %d", i) }
