package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
	"github.com/stasyk411/gbr/core/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	s := New()
	ctx := context.Background()
	c, err := s.CreateCall(ctx, model.Call{ObjectName: "o", Address: "a", Latitude: model.Ptr(1.0)})
	assert.NoError(t, err)
	*c.Latitude = 2
	got, err := s.GetCall(ctx, c.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, *got.Latitude)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := New()
	assert.NoError(t, s.Close())
	_, err := s.GetUnit(context.Background(), 1)
	assert.ErrorIs(t, err, model.ErrStorage)
	err = s.RunInTx(context.Background(), func(context.Context, store.Repository) error { return nil })
	assert.ErrorIs(t, err, model.ErrStorage)
}
