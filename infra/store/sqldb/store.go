package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists units and calls in a SQL database.
type Store struct {
	*repo
	db *sql.DB
}

// Open applies the dialect schema to db and returns a Store owning db.
func Open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	for _, stmt := range d.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, model.StorageError("apply schema", err)
		}
	}
	return &Store{repo: &repo{q: db, d: d, now: time.Now}, db: db}, nil
}

// RunInTx runs fn in a database transaction. Rows read through tx are
// locked when the dialect supports row locks.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StorageError("begin tx", err)
	}
	if err := fn(ctx, &repo{q: tx, d: s.d, now: s.now, inTx: true}); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return model.StorageError("commit tx", err)
	}
	return nil
}

// DB exposes the underlying handle for maintenance commands.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

type repo struct {
	q    querier
	d    Dialect
	now  func() time.Time
	inTx bool
}

const unitColumns = `id, name, contact_handle, status, phone, notes, created_at, updated_at`

const callColumns = `id, object_name, address, description, latitude, longitude, status, unit_id, created_at, assigned_at, completed_at`

func (r *repo) lock() string {
	if r.inTx {
		return r.d.LockSuffix
	}
	return ""
}

func (r *repo) CreateUnit(ctx context.Context, u model.Unit) (model.Unit, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	u.UpdatedAt = u.CreatedAt
	q := r.d.rebind(`INSERT INTO units (name, contact_handle, status, phone, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := r.q.QueryRowContext(ctx, q,
		u.Name, nullString(u.ContactHandle), u.Status.String(), u.Phone, u.Notes,
		u.CreatedAt.UnixNano(), u.UpdatedAt.UnixNano()).Scan(&u.ID)
	if err != nil {
		if r.d.IsUniqueViolation != nil && r.d.IsUniqueViolation(err) {
			return model.Unit{}, model.DuplicateContactHandle(u.ContactHandle)
		}
		return model.Unit{}, model.StorageError("insert unit", err)
	}
	return u, nil
}

func (r *repo) GetUnit(ctx context.Context, id int64) (model.Unit, error) {
	q := r.d.rebind(`SELECT ` + unitColumns + ` FROM units WHERE id = ?` + r.lock())
	u, err := scanUnit(r.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Unit{}, model.UnitNotFound(id)
	}
	if err != nil {
		return model.Unit{}, model.StorageError("get unit", err)
	}
	return u, nil
}

func (r *repo) UpdateUnit(ctx context.Context, u model.Unit) error {
	u.UpdatedAt = r.now().UTC()
	q := r.d.rebind(`UPDATE units SET name = ?, contact_handle = ?, status = ?, phone = ?, notes = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.q.ExecContext(ctx, q,
		u.Name, nullString(u.ContactHandle), u.Status.String(), u.Phone, u.Notes, u.UpdatedAt.UnixNano(), u.ID)
	if err != nil {
		if r.d.IsUniqueViolation != nil && r.d.IsUniqueViolation(err) {
			return model.DuplicateContactHandle(u.ContactHandle)
		}
		return model.StorageError("update unit", err)
	}
	return expectOneRow(res, model.UnitNotFound(u.ID), "update unit")
}

func (r *repo) ListUnits(ctx context.Context, f store.UnitFilter) ([]model.Unit, error) {
	var args []any
	q := `SELECT ` + unitColumns + ` FROM units WHERE 1=1`
	if f.Status != nil {
		q += ` AND status = ?`
		args = append(args, f.Status.String())
	}
	if f.ContactHandle != "" {
		q += ` AND contact_handle = ?`
		args = append(args, f.ContactHandle)
	}
	q += ` ORDER BY id`
	rows, err := r.q.QueryContext(ctx, r.d.rebind(q), args...)
	if err != nil {
		return nil, model.StorageError("list units", err)
	}
	defer func() { _ = rows.Close() }()
	var res []model.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, model.StorageError("scan unit", err)
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, model.StorageError("list units", err)
	}
	return res, nil
}

func (r *repo) CreateCall(ctx context.Context, c model.Call) (model.Call, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}
	q := r.d.rebind(`INSERT INTO calls (object_name, address, description, latitude, longitude, status, unit_id, created_at, assigned_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := r.q.QueryRowContext(ctx, q,
		c.ObjectName, c.Address, c.Description,
		nullFloat(c.Latitude), nullFloat(c.Longitude), c.Status.String(), nullInt(c.UnitID),
		c.CreatedAt.UnixNano(), nullTime(c.AssignedAt), nullTime(c.CompletedAt)).Scan(&c.ID)
	if err != nil {
		return model.Call{}, model.StorageError("insert call", err)
	}
	return c, nil
}

func (r *repo) GetCall(ctx context.Context, id int64) (model.Call, error) {
	q := r.d.rebind(`SELECT ` + callColumns + ` FROM calls WHERE id = ?` + r.lock())
	c, err := scanCall(r.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Call{}, model.CallNotFound(id)
	}
	if err != nil {
		return model.Call{}, model.StorageError("get call", err)
	}
	return c, nil
}

func (r *repo) UpdateCall(ctx context.Context, c model.Call) error {
	q := r.d.rebind(`UPDATE calls SET object_name = ?, address = ?, description = ?, latitude = ?, longitude = ?,
		status = ?, unit_id = ?, assigned_at = ?, completed_at = ? WHERE id = ?`)
	res, err := r.q.ExecContext(ctx, q,
		c.ObjectName, c.Address, c.Description, nullFloat(c.Latitude), nullFloat(c.Longitude),
		c.Status.String(), nullInt(c.UnitID), nullTime(c.AssignedAt), nullTime(c.CompletedAt), c.ID)
	if err != nil {
		return model.StorageError("update call", err)
	}
	return expectOneRow(res, model.CallNotFound(c.ID), "update call")
}

func (r *repo) ListCalls(ctx context.Context, f store.CallFilter) ([]model.Call, error) {
	var args []any
	q := `SELECT ` + callColumns + ` FROM calls WHERE 1=1`
	if len(f.Statuses) > 0 {
		q += ` AND status IN (?` + strings.Repeat(", ?", len(f.Statuses)-1) + `)`
		for _, s := range f.Statuses {
			args = append(args, s.String())
		}
	}
	if f.UnitID != nil {
		q += ` AND unit_id = ?`
		args = append(args, *f.UnitID)
	}
	q += ` ORDER BY id`
	rows, err := r.q.QueryContext(ctx, r.d.rebind(q), args...)
	if err != nil {
		return nil, model.StorageError("list calls", err)
	}
	defer func() { _ = rows.Close() }()
	var res []model.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, model.StorageError("scan call", err)
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, model.StorageError("list calls", err)
	}
	return res, nil
}

func expectOneRow(res sql.Result, notFound error, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return model.StorageError(op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

