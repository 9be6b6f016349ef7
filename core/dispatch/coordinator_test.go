package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/notify"
	"github.com/stasyk411/gbr/core/store"
	"github.com/stasyk411/gbr/infra/store/memory"
	"github.com/stasyk411/gbr/infra/store/sqlite"
)

func TestAssignEndToEnd(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	u := e.unit(t, "Crew-A", "")
	c := e.call(t, "Store X", "Main St 1")
	e.bus.reset()

	got, err := e.coord.Assign(ctx, c.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallAssigned, got.Status)
	require.NotNil(t, got.UnitID)
	assert.Equal(t, u.ID, *got.UnitID)
	require.NotNil(t, got.AssignedAt)
	assert.Equal(t, model.UnitBusy, e.unitStatus(t, u.ID))
	assert.Equal(t, []string{"call_assigned", "call_status", "unit_status"}, e.bus.kinds())

	free, err := e.units.GetFreeUnits(ctx)
	require.NoError(t, err)
	assert.Empty(t, free)

	_, err = e.calls.SetCallStatus(ctx, c.ID, model.CallInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.UnitArrived, e.unitStatus(t, u.ID))

	done, err := e.calls.SetCallStatus(ctx, c.ID, model.CallCompleted)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, *got.AssignedAt, *done.AssignedAt)
	assert.Equal(t, u.ID, *done.UnitID)
	assert.Equal(t, model.UnitFree, e.unitStatus(t, u.ID))
}

func TestAssignUnknownIDs(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	u := e.unit(t, "Crew-A", "")
	c := e.call(t, "Store X", "Main St 1")

	_, err := e.coord.Assign(ctx, 404, u.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = e.coord.Assign(ctx, c.ID, 404)
	assert.ErrorIs(t, err, model.ErrNotFound)

	got, err := e.calls.GetCall(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallPending, got.Status)
	assert.Nil(t, got.UnitID)
	assert.Equal(t, model.UnitFree, e.unitStatus(t, u.ID))
}

func TestAssignSameUnitTwice(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	u := e.unit(t, "Crew-A", "")
	c := e.call(t, "Store X", "Main St 1")
	first, err := e.coord.Assign(ctx, c.ID, u.ID)
	require.NoError(t, err)
	second, err := e.coord.Assign(ctx, c.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.AssignedAt, *second.AssignedAt)
	assert.Equal(t, model.UnitBusy, e.unitStatus(t, u.ID))
}

func TestReassignToAnotherUnit(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	a := e.unit(t, "Crew-A", "")
	b := e.unit(t, "Crew-B", "")
	c := e.call(t, "Store X", "Main St 1")
	_, err := e.coord.Assign(ctx, c.ID, a.ID)
	require.NoError(t, err)

	got, err := e.coord.Assign(ctx, c.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, *got.UnitID)
	assert.Equal(t, model.UnitBusy, e.unitStatus(t, b.ID))
	// the previous crew is released by the dispatcher, not implicitly
	assert.Equal(t, model.UnitBusy, e.unitStatus(t, a.ID))
}

func TestAssignBusyUnit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Config{}, nil, nil)
	u := e.unit(t, "Crew-A", "")
	first := e.call(t, "first", "a")
	second := e.call(t, "second", "b")
	_, err := e.coord.Assign(ctx, first.ID, u.ID)
	require.NoError(t, err)

	_, err = e.coord.Assign(ctx, second.ID, u.ID)
	require.ErrorIs(t, err, model.ErrConflict)
	got, err := e.calls.GetCall(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallPending, got.Status)

	// a completed call no longer holds the unit
	_, err = e.calls.SetCallStatus(ctx, first.ID, model.CallCompleted)
	require.NoError(t, err)
	_, err = e.coord.Assign(ctx, second.ID, u.ID)
	require.NoError(t, err)
}

func TestAssignBusyUnitAllowed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Config{AllowBusyAssignment: true}, nil, nil)
	u := e.unit(t, "Crew-A", "")
	first := e.call(t, "first", "a")
	second := e.call(t, "second", "b")
	_, err := e.coord.Assign(ctx, first.ID, u.ID)
	require.NoError(t, err)
	_, err = e.coord.Assign(ctx, second.ID, u.ID)
	require.NoError(t, err)

	active, err := e.calls.GetCallsByUnit(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	// completing either call frees the crew even though the other is active
	_, err = e.calls.SetCallStatus(ctx, first.ID, model.CallCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.UnitFree, e.unitStatus(t, u.ID))
	got, err := e.calls.GetCall(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallAssigned, got.Status)
}

func TestAssignRollsBackOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	e := newEnv(t, Config{}, failingUnitWrites{base}, nil)
	u := e.unit(t, "Crew-A", "")
	c := e.call(t, "Store X", "Main St 1")
	e.bus.reset()

	_, err := e.coord.Assign(ctx, c.ID, u.ID)
	require.ErrorIs(t, err, model.ErrStorage)
	assert.Equal(t, "storage", model.KindOf(err))

	got, err := base.GetCall(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallPending, got.Status)
	assert.Nil(t, got.UnitID)
	assert.Nil(t, got.AssignedAt)
	assert.Empty(t, e.bus.kinds())
}

func TestAssignAndNotify(t *testing.T) {
	ctx := context.Background()
	lat, lon := 55.75, 37.61
	e := newEnv(t, Config{}, nil, nil)
	u := e.unit(t, "Crew-A", "@crew_a")
	c, err := e.calls.CreateCall(ctx, CallInput{
		ObjectName: "Store X", Address: "Main St 1", Description: "alarm zone 2",
		Latitude: &lat, Longitude: &lon,
	})
	require.NoError(t, err)
	e.bus.reset()

	got, err := e.coord.AssignAndNotify(ctx, c.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallAssigned, got.Status)
	require.Len(t, e.notifier.sent, 1)
	sent := e.notifier.sent[0]
	assert.Equal(t, "@crew_a", sent.handle)
	assert.Equal(t, c.ID, sent.alert.CallID)
	assert.Equal(t, "Crew-A", sent.alert.UnitName)
	assert.Equal(t, "Store X", sent.alert.ObjectName)
	assert.Equal(t, "alarm zone 2", sent.alert.Description)
	assert.Len(t, sent.alert.Links, 2)
	assert.Contains(t, e.bus.kinds(), "crew_notified")
}

func TestAssignAndNotifyWithoutContact(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Config{}, nil, nil)
	u := e.unit(t, "Crew-A", "")
	c := e.call(t, "Store X", "Main St 1")

	got, err := e.coord.AssignAndNotify(ctx, c.ID, u.ID)
	require.ErrorIs(t, err, ErrNotification)
	assert.ErrorIs(t, err, notify.ErrNoContact)
	assert.Equal(t, model.CallAssigned, got.Status)
	assert.Empty(t, e.notifier.sent)

	stored, err := e.calls.GetCall(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallAssigned, stored.Status)
	assert.Equal(t, model.UnitBusy, e.unitStatus(t, u.ID))
}

func TestAssignAndNotifyDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Config{}, nil, nil)
	e.notifier.err = notify.ErrAckTimeout
	u := e.unit(t, "Crew-A", "@crew_a")
	c := e.call(t, "Store X", "Main St 1")

	got, err := e.coord.AssignAndNotify(ctx, c.ID, u.ID)
	require.ErrorIs(t, err, ErrNotification)
	assert.ErrorIs(t, err, notify.ErrAckTimeout)
	assert.Equal(t, model.CallAssigned, got.Status)
	assert.Equal(t, model.UnitBusy, e.unitStatus(t, u.ID))
}

func TestAssignAndNotifyPropagatesAssignError(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	u := e.unit(t, "Crew-A", "@crew_a")
	_, err := e.coord.AssignAndNotify(context.Background(), 99, u.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotification)
	assert.Empty(t, e.notifier.sent)
}

func TestAlertForWithoutCoordinates(t *testing.T) {
	a := AlertFor(model.Call{ID: 3, ObjectName: "Store X", Address: "Main St 1"}, model.Unit{ID: 1, Name: "Crew-A"})
	assert.Nil(t, a.Latitude)
	require.Len(t, a.Links, 2)
	assert.Contains(t, a.Links[0].URL, "Main")
}

var sqliteSeq atomic.Int64

func openSQLite(t *testing.T) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:dispatch%d?mode=memory&cache=shared", sqliteSeq.Add(1))
	st, err := sqlite.Open(context.Background(), dsn)
	require.NoError(t, err)
	return st
}

type storeFactory func(t *testing.T) store.Store

func localBackends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(*testing.T) store.Store { return memory.New() },
		"sqlite": openSQLite,
	}
}

func TestConcurrentAssignment(t *testing.T) {
	for name, open := range localBackends() {
		t.Run(name, func(t *testing.T) { testConcurrentAssignment(t, open) })
	}
}

func TestConcurrentReactivation(t *testing.T) {
	for name, open := range localBackends() {
		t.Run(name, func(t *testing.T) { testConcurrentReactivation(t, open) })
	}
}

// race starts every fn at once and sorts the results into successes and
// conflicts. Any other error fails the test.
func race(t *testing.T, fns ...func() error) (succeeded, conflicts int32) {
	t.Helper()
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		ok    atomic.Int32
		busy  atomic.Int32
		other = make(chan error, len(fns))
	)
	for _, fn := range fns {
		wg.Add(1)
		go func(fn func() error) {
			defer wg.Done()
			<-start
			err := fn()
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, model.ErrConflict):
				busy.Add(1)
			default:
				other <- err
			}
		}(fn)
	}
	close(start)
	wg.Wait()
	close(other)
	for err := range other {
		t.Errorf("unexpected error: %v", err)
	}
	return ok.Load(), busy.Load()
}

func testConcurrentAssignment(t *testing.T, open storeFactory) {
	const workers = 8
	ctx := context.Background()
	e := newEnv(t, Config{}, open(t), nil)
	u := e.unit(t, "Crew-A", "")
	fns := make([]func() error, workers)
	for i := range fns {
		c := e.call(t, callName(i), "Main St 1")
		fns[i] = func() error {
			_, err := e.coord.Assign(ctx, c.ID, u.ID)
			return err
		}
	}

	succeeded, conflicts := race(t, fns...)
	assert.Equal(t, int32(1), succeeded)
	assert.Equal(t, int32(workers-1), conflicts)
	active, err := e.calls.GetActiveCalls(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, u.ID, *active[0].UnitID)
	pending, err := e.calls.GetPendingCalls(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, workers-1)
	assert.Equal(t, model.UnitBusy, e.unitStatus(t, u.ID))
}

// testConcurrentReactivation reopens a completed call bound to a unit while
// another call is assigned to the same unit. Only one of them may win.
func testConcurrentReactivation(t *testing.T, open storeFactory) {
	const rounds = 10
	ctx := context.Background()
	e := newEnv(t, Config{}, open(t), nil)
	u := e.unit(t, "Crew-A", "")
	for i := 0; i < rounds; i++ {
		done := e.call(t, callName(2*i), "Main St 1")
		_, err := e.coord.Assign(ctx, done.ID, u.ID)
		require.NoError(t, err)
		_, err = e.calls.SetCallStatus(ctx, done.ID, model.CallCompleted)
		require.NoError(t, err)
		fresh := e.call(t, callName(2*i+1), "Main St 2")

		succeeded, conflicts := race(t,
			func() error {
				_, err := e.calls.SetCallStatus(ctx, done.ID, model.CallAssigned)
				return err
			},
			func() error {
				_, err := e.coord.Assign(ctx, fresh.ID, u.ID)
				return err
			},
		)
		assert.Equal(t, int32(1), succeeded, "round %d", i)
		assert.Equal(t, int32(1), conflicts, "round %d", i)

		active, err := e.calls.GetCallsByStatus(ctx, model.ActiveCallStatuses...)
		require.NoError(t, err)
		require.Len(t, active, 1, "round %d", i)
		assert.Equal(t, model.UnitBusy, e.unitStatus(t, u.ID))

		_, err = e.calls.SetCallStatus(ctx, active[0].ID, model.CallCompleted)
		require.NoError(t, err)
		require.Equal(t, model.UnitFree, e.unitStatus(t, u.ID))
	}
}
