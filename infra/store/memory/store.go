// Package memory provides an in-process Store used by tests and the
// single-node demo mode.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
)

var errClosed = errors.New("store closed")

type state struct {
	units    map[int64]model.Unit
	calls    map[int64]model.Call
	nextUnit int64
	nextCall int64
}

func newState() *state {
	return &state{units: map[int64]model.Unit{}, calls: map[int64]model.Call{}}
}

func (s *state) clone() *state {
	cp := &state{
		units:    make(map[int64]model.Unit, len(s.units)),
		calls:    make(map[int64]model.Call, len(s.calls)),
		nextUnit: s.nextUnit,
		nextCall: s.nextCall,
	}
	for id, u := range s.units {
		cp.units[id] = u
	}
	for id, c := range s.calls {
		cp.calls[id] = c.Clone()
	}
	return cp
}

// Store keeps units and calls in maps guarded by a single lock.
// Transactions run against a copy of the state that replaces the live state
// only when the callback succeeds.
type Store struct {
	mu     sync.RWMutex
	st     *state
	now    func() time.Time
	closed bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// RunInTx holds the write lock for the whole callback, so transactions are
// fully serialised.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.StorageError("begin tx", errClosed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &repo{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read(fn func(r *repo) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.StorageError("read", errClosed)
	}
	return fn(&repo{st: s.st, now: s.now})
}

func (s *Store) write(fn func(r *repo) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.StorageError("write", errClosed)
	}
	return fn(&repo{st: s.st, now: s.now})
}

func (s *Store) CreateUnit(ctx context.Context, u model.Unit) (out model.Unit, err error) {
	err = s.write(func(r *repo) error {
		out, err = r.CreateUnit(ctx, u)
		return err
	})
	return out, err
}

func (s *Store) GetUnit(ctx context.Context, id int64) (out model.Unit, err error) {
	err = s.read(func(r *repo) error {
		out, err = r.GetUnit(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) UpdateUnit(ctx context.Context, u model.Unit) error {
	return s.write(func(r *repo) error { return r.UpdateUnit(ctx, u) })
}

func (s *Store) ListUnits(ctx context.Context, f store.UnitFilter) (out []model.Unit, err error) {
	err = s.read(func(r *repo) error {
		out, err = r.ListUnits(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) CreateCall(ctx context.Context, c model.Call) (out model.Call, err error) {
	err = s.write(func(r *repo) error {
		out, err = r.CreateCall(ctx, c)
		return err
	})
	return out, err
}

func (s *Store) GetCall(ctx context.Context, id int64) (out model.Call, err error) {
	err = s.read(func(r *repo) error {
		out, err = r.GetCall(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) UpdateCall(ctx context.Context, c model.Call) error {
	return s.write(func(r *repo) error { return r.UpdateCall(ctx, c) })
}

func (s *Store) ListCalls(ctx context.Context, f store.CallFilter) (out []model.Call, err error) {
	err = s.read(func(r *repo) error {
		out, err = r.ListCalls(ctx, f)
		return err
	})
	return out, err
}

// Close marks the store closed. Further calls fail with a storage error.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// repo operates on a state without locking; the caller holds the lock.
type repo struct {
	st  *state
	now func() time.Time
}

func (r *repo) handleTaken(handle string, except int64) bool {
	if handle == "" {
		return false
	}
	for id, u := range r.st.units {
		if id != except && u.ContactHandle == handle {
			return true
		}
	}
	return false
}

func (r *repo) CreateUnit(_ context.Context, u model.Unit) (model.Unit, error) {
	if r.handleTaken(u.ContactHandle, 0) {
		return model.Unit{}, model.DuplicateContactHandle(u.ContactHandle)
	}
	r.st.nextUnit++
	u.ID = r.st.nextUnit
	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt
	r.st.units[u.ID] = u
	return u, nil
}

func (r *repo) GetUnit(_ context.Context, id int64) (model.Unit, error) {
	u, ok := r.st.units[id]
	if !ok {
		return model.Unit{}, model.UnitNotFound(id)
	}
	return u, nil
}

func (r *repo) UpdateUnit(_ context.Context, u model.Unit) error {
	if _, ok := r.st.units[u.ID]; !ok {
		return model.UnitNotFound(u.ID)
	}
	if r.handleTaken(u.ContactHandle, u.ID) {
		return model.DuplicateContactHandle(u.ContactHandle)
	}
	u.UpdatedAt = r.now().UTC()
	r.st.units[u.ID] = u
	return nil
}

func (r *repo) ListUnits(_ context.Context, f store.UnitFilter) ([]model.Unit, error) {
	res := make([]model.Unit, 0, len(r.st.units))
	for _, u := range r.st.units {
		if f.Match(u) {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *repo) CreateCall(_ context.Context, c model.Call) (model.Call, error) {
	r.st.nextCall++
	c = c.Clone()
	c.ID = r.st.nextCall
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}
	r.st.calls[c.ID] = c
	return c.Clone(), nil
}

func (r *repo) GetCall(_ context.Context, id int64) (model.Call, error) {
	c, ok := r.st.calls[id]
	if !ok {
		return model.Call{}, model.CallNotFound(id)
	}
	return c.Clone(), nil
}

func (r *repo) UpdateCall(_ context.Context, c model.Call) error {
	if _, ok := r.st.calls[c.ID]; !ok {
		return model.CallNotFound(c.ID)
	}
	r.st.calls[c.ID] = c.Clone()
	return nil
}

func (r *repo) ListCalls(_ context.Context, f store.CallFilter) ([]model.Call, error) {
	res := make([]model.Call, 0, len(r.st.calls))
	for _, c := range r.st.calls {
		if f.Match(c) {
			res = append(res, c.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
