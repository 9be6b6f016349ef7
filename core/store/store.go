// Package store defines the persistence contract for units and calls.
package store

import (
	"context"

	"github.com/stasyk411/gbr/core/model"
)

// UnitFilter narrows unit listings. Zero values match everything.
type UnitFilter struct {
	Status        *model.UnitStatus
	ContactHandle string
}

// Match reports whether u satisfies the filter.
func (f UnitFilter) Match(u model.Unit) bool {
	if f.Status != nil && u.Status != *f.Status {
		return false
	}
	if f.ContactHandle != "" && u.ContactHandle != f.ContactHandle {
		return false
	}
	return true
}

// CallFilter narrows call listings. An empty Statuses slice matches any status.
type CallFilter struct {
	Statuses []model.CallStatus
	UnitID   *int64
}

// Match reports whether c satisfies the filter.
func (f CallFilter) Match(c model.Call) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if c.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.UnitID != nil && !c.BoundTo(*f.UnitID) {
		return false
	}
	return true
}

// Repository is the entity CRUD surface shared by stores and transactions.
//
// Get returns model.ErrNotFound for unknown ids. Create and Update return
// model.ErrConflict when a contact handle is already bound to another unit.
// Backend failures are wrapped with model.ErrStorage.
type Repository interface {
	CreateUnit(ctx context.Context, u model.Unit) (model.Unit, error)
	GetUnit(ctx context.Context, id int64) (model.Unit, error)
	UpdateUnit(ctx context.Context, u model.Unit) error
	ListUnits(ctx context.Context, f UnitFilter) ([]model.Unit, error)

	CreateCall(ctx context.Context, c model.Call) (model.Call, error)
	GetCall(ctx context.Context, id int64) (model.Call, error)
	UpdateCall(ctx context.Context, c model.Call) error
	ListCalls(ctx context.Context, f CallFilter) ([]model.Call, error)
}

// TxFunc runs inside a transaction. Returning an error rolls back every
// write made through tx.
type TxFunc func(ctx context.Context, tx Repository) error

// Store is a durable Repository with multi-entity transactions.
//
// RunInTx serialises conflicting transactions: entities read through tx are
// locked against concurrent writers until fn returns. fn must only use tx,
// never the Store itself.
type Store interface {
	Repository
	RunInTx(ctx context.Context, fn TxFunc) error
	Close() error
}
