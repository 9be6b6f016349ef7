// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"UnitRoundTrip", testUnitRoundTrip},
		{"UnitNotFound", testUnitNotFound},
		{"ContactHandleUnique", testContactHandleUnique},
		{"ListUnitsFilter", testListUnitsFilter},
		{"CallRoundTrip", testCallRoundTrip},
		{"ListCallsFilter", testListCallsFilter},
		{"TxCommit", testTxCommit},
		{"TxRollback", testTxRollback},
		{"TxSerialisedWriters", testTxSerialisedWriters},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func testUnitRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	u, err := s.CreateUnit(ctx, model.Unit{Name: "Crew-A", ContactHandle: "crew-a", Phone: "+7 900", Status: model.UnitFree})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.GetUnit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Crew-A", got.Name)
	assert.Equal(t, "crew-a", got.ContactHandle)
	assert.Equal(t, "+7 900", got.Phone)
	assert.Equal(t, model.UnitFree, got.Status)
	assert.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Millisecond)

	got.Status = model.UnitArrived
	got.Notes = "night shift"
	require.NoError(t, s.UpdateUnit(ctx, got))
	again, err := s.GetUnit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnitArrived, again.Status)
	assert.Equal(t, "night shift", again.Notes)
	assert.False(t, again.UpdatedAt.Before(again.CreatedAt))

	second, err := s.CreateUnit(ctx, model.Unit{Name: "Crew-B"})
	require.NoError(t, err)
	assert.NotEqual(t, u.ID, second.ID)
}

func testUnitNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.GetUnit(ctx, 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
	err = s.UpdateUnit(ctx, model.Unit{ID: 404, Name: "ghost"})
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.GetCall(ctx, 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
	err = s.UpdateCall(ctx, model.Call{ID: 404, ObjectName: "x", Address: "y"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testContactHandleUnique(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, err := s.CreateUnit(ctx, model.Unit{Name: "A", ContactHandle: "h1"})
	require.NoError(t, err)
	_, err = s.CreateUnit(ctx, model.Unit{Name: "B", ContactHandle: "h1"})
	assert.ErrorIs(t, err, model.ErrConflict)

	// units without a handle never collide
	_, err = s.CreateUnit(ctx, model.Unit{Name: "C"})
	require.NoError(t, err)
	d, err := s.CreateUnit(ctx, model.Unit{Name: "D"})
	require.NoError(t, err)

	d.ContactHandle = "h1"
	assert.ErrorIs(t, s.UpdateUnit(ctx, d), model.ErrConflict)

	// rewriting a unit with its own handle is fine
	a.Notes = "updated"
	assert.NoError(t, s.UpdateUnit(ctx, a))

	units, err := s.ListUnits(ctx, store.UnitFilter{})
	require.NoError(t, err)
	assert.Len(t, units, 3)
}

func testListUnitsFilter(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, u := range []model.Unit{
		{Name: "A", Status: model.UnitFree, ContactHandle: "a"},
		{Name: "B", Status: model.UnitBusy, ContactHandle: "b"},
		{Name: "C", Status: model.UnitFree},
	} {
		_, err := s.CreateUnit(ctx, u)
		require.NoError(t, err)
	}
	free := model.UnitFree
	got, err := s.ListUnits(ctx, store.UnitFilter{Status: &free})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "C", got[1].Name)

	got, err = s.ListUnits(ctx, store.UnitFilter{ContactHandle: "b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Name)

	got, err = s.ListUnits(ctx, store.UnitFilter{ContactHandle: "zzz"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testCallRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	unit, err := s.CreateUnit(ctx, model.Unit{Name: "Crew-A"})
	require.NoError(t, err)

	c, err := s.CreateCall(ctx, model.Call{ObjectName: "Store X", Address: "Main St 1", Status: model.CallPending})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)

	got, err := s.GetCall(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Store X", got.ObjectName)
	assert.Nil(t, got.UnitID)
	assert.Nil(t, got.Latitude)
	assert.Nil(t, got.AssignedAt)
	assert.Nil(t, got.CompletedAt)

	at := time.Now().UTC().Truncate(time.Millisecond)
	got.Status = model.CallAssigned
	got.UnitID = model.Ptr(unit.ID)
	got.AssignedAt = &at
	got.Latitude = model.Ptr(55.751244)
	got.Longitude = model.Ptr(37.618423)
	got.Description = "alarm zone 2"
	require.NoError(t, s.UpdateCall(ctx, got))

	again, err := s.GetCall(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallAssigned, again.Status)
	require.NotNil(t, again.UnitID)
	assert.Equal(t, unit.ID, *again.UnitID)
	require.NotNil(t, again.AssignedAt)
	assert.WithinDuration(t, at, *again.AssignedAt, time.Millisecond)
	require.True(t, again.HasCoordinates())
	assert.InDelta(t, 55.751244, *again.Latitude, 1e-9)
	assert.Equal(t, "alarm zone 2", again.Description)
}

func testListCallsFilter(t *testing.T, s store.Store) {
	ctx := context.Background()
	u1, err := s.CreateUnit(ctx, model.Unit{Name: "U1"})
	require.NoError(t, err)
	u2, err := s.CreateUnit(ctx, model.Unit{Name: "U2"})
	require.NoError(t, err)
	calls := []model.Call{
		{ObjectName: "p", Address: "a", Status: model.CallPending},
		{ObjectName: "a1", Address: "a", Status: model.CallAssigned, UnitID: model.Ptr(u1.ID)},
		{ObjectName: "ip", Address: "a", Status: model.CallInProgress, UnitID: model.Ptr(u2.ID)},
		{ObjectName: "done", Address: "a", Status: model.CallCompleted, UnitID: model.Ptr(u1.ID)},
	}
	for _, c := range calls {
		_, err := s.CreateCall(ctx, c)
		require.NoError(t, err)
	}

	all, err := s.ListCalls(ctx, store.CallFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	active, err := s.ListCalls(ctx, store.CallFilter{Statuses: model.ActiveCallStatuses})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a1", active[0].ObjectName)
	assert.Equal(t, "ip", active[1].ObjectName)

	byUnit, err := s.ListCalls(ctx, store.CallFilter{UnitID: model.Ptr(u1.ID)})
	require.NoError(t, err)
	assert.Len(t, byUnit, 2)

	activeU1, err := s.ListCalls(ctx, store.CallFilter{Statuses: model.ActiveCallStatuses, UnitID: model.Ptr(u1.ID)})
	require.NoError(t, err)
	require.Len(t, activeU1, 1)
	assert.Equal(t, "a1", activeU1[0].ObjectName)
}

func testTxCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	u, err := s.CreateUnit(ctx, model.Unit{Name: "A"})
	require.NoError(t, err)
	c, err := s.CreateCall(ctx, model.Call{ObjectName: "o", Address: "a"})
	require.NoError(t, err)

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Repository) error {
		call, err := tx.GetCall(ctx, c.ID)
		if err != nil {
			return err
		}
		unit, err := tx.GetUnit(ctx, u.ID)
		if err != nil {
			return err
		}
		call.Status = model.CallAssigned
		call.UnitID = model.Ptr(unit.ID)
		if err := tx.UpdateCall(ctx, call); err != nil {
			return err
		}
		unit.Status = model.UnitBusy
		return tx.UpdateUnit(ctx, unit)
	})
	require.NoError(t, err)

	gotU, err := s.GetUnit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnitBusy, gotU.Status)
	gotC, err := s.GetCall(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallAssigned, gotC.Status)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	u, err := s.CreateUnit(ctx, model.Unit{Name: "A"})
	require.NoError(t, err)
	boom := errors.New("boom")

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Repository) error {
		unit, err := tx.GetUnit(ctx, u.ID)
		if err != nil {
			return err
		}
		unit.Status = model.UnitBusy
		if err := tx.UpdateUnit(ctx, unit); err != nil {
			return err
		}
		if _, err := tx.CreateUnit(ctx, model.Unit{Name: "temp"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetUnit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnitFree, got.Status)
	units, err := s.ListUnits(ctx, store.UnitFilter{})
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

// testTxSerialisedWriters runs concurrent read-modify-write transactions on
// one unit. No update may be lost.
func testTxSerialisedWriters(t *testing.T, s store.Store) {
	const writers = 8
	ctx := context.Background()
	u, err := s.CreateUnit(ctx, model.Unit{Name: "A"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunInTx(ctx, func(ctx context.Context, tx store.Repository) error {
				unit, err := tx.GetUnit(ctx, u.ID)
				if err != nil {
					return err
				}
				unit.Notes += "x"
				return tx.UpdateUnit(ctx, unit)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetUnit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", writers), got.Notes)
}
