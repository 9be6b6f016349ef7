package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
)

func TestUnitLifecycle(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	u := e.unit(t, "Crew-A", "crew-a")
	assert.Equal(t, model.UnitFree, u.Status)

	for _, target := range []model.UnitStatus{model.UnitBusy, model.UnitArrived, model.UnitFree, model.UnitArrived} {
		got, err := e.units.SetUnitStatus(ctx, u.ID, target)
		require.NoError(t, err)
		assert.Equal(t, target, got.Status)
		assert.Equal(t, target, e.unitStatus(t, u.ID))
	}
	assert.Equal(t, []string{"unit_created", "unit_status", "unit_status", "unit_status", "unit_status"}, e.bus.kinds())
}

func TestSetUnitStatusUnknownUnit(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	_, err := e.units.SetUnitStatus(context.Background(), 42, model.UnitBusy)
	assert.ErrorIs(t, err, model.ErrNotFound)

	u := e.unit(t, "Crew-A", "")
	_, err = e.units.SetUnitStatus(context.Background(), u.ID, model.UnitStatus(99))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateUnitValidation(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	_, err := e.units.CreateUnit(ctx, UnitInput{Name: "   "})
	assert.ErrorIs(t, err, model.ErrValidation)

	e.unit(t, "Crew-A", "crew")
	_, err = e.units.CreateUnit(ctx, UnitInput{Name: "Crew-B", ContactHandle: " crew "})
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.ErrorIs(t, err, model.ErrConflict)

	all, err := e.units.ListUnits(ctx, store.UnitFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFindByContactHandle(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	a := e.unit(t, "Crew-A", "111")
	e.unit(t, "Crew-B", "")

	got, err := e.units.FindByContactHandle(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = e.units.FindByContactHandle(ctx, "222")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = e.units.FindByContactHandle(ctx, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetFreeUnits(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	a := e.unit(t, "A", "")
	b := e.unit(t, "B", "")
	_, err := e.units.SetUnitStatus(ctx, b.ID, model.UnitBusy)
	require.NoError(t, err)

	free, err := e.units.GetFreeUnits(ctx)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, a.ID, free[0].ID)
}

func TestBindContactHandle(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	a := e.unit(t, "A", "")
	b := e.unit(t, "B", "taken")

	got, err := e.units.BindContactHandle(ctx, a.ID, "555")
	require.NoError(t, err)
	assert.Equal(t, "555", got.ContactHandle)
	found, err := e.units.FindByContactHandle(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	_, err = e.units.BindContactHandle(ctx, a.ID, "taken")
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = e.units.BindContactHandle(ctx, b.ID, "")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = e.units.BindContactHandle(ctx, 999, "x")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestContactHandleTopicCharacters(t *testing.T) {
	e := newEnv(t, Config{}, nil, nil)
	ctx := context.Background()
	a := e.unit(t, "A", "")
	for _, handle := range []string{"crew/a", "crew+a", "#crew"} {
		_, err := e.units.CreateUnit(ctx, UnitInput{Name: "B", ContactHandle: handle})
		assert.ErrorIs(t, err, model.ErrValidation, handle)
		_, err = e.units.BindContactHandle(ctx, a.ID, handle)
		assert.ErrorIs(t, err, model.ErrValidation, handle)
	}
	units, err := e.units.ListUnits(ctx, store.UnitFilter{})
	require.NoError(t, err)
	assert.Len(t, units, 1)
	assert.Empty(t, units[0].ContactHandle)
}

func TestNewUnitManagerNilStore(t *testing.T) {
	_, err := NewUnitManager(nil, nil, nil)
	assert.Error(t, err)
}
