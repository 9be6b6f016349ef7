// Package sqlite opens the SQLite backed entity store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/infra/store/sqldb"
)

var schema = []string{
	`PRAGMA foreign_keys = ON`,
	`PRAGMA busy_timeout = 5000`,
	`CREATE TABLE IF NOT EXISTS units (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		contact_handle TEXT UNIQUE,
		status TEXT NOT NULL DEFAULT 'free',
		phone TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		object_name TEXT NOT NULL,
		address TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		latitude REAL,
		longitude REAL,
		status TEXT NOT NULL DEFAULT 'pending',
		unit_id INTEGER REFERENCES units(id),
		created_at INTEGER NOT NULL,
		assigned_at INTEGER,
		completed_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS calls_status_idx ON calls (status)`,
	`CREATE INDEX IF NOT EXISTS calls_unit_idx ON calls (unit_id)`,
}

// Dialect is the SQLite flavour used by sqldb.
var Dialect = sqldb.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: isUniqueViolation,
	Schema:            schema,
}

// Open opens or creates the database at dsn. A single connection is used so
// that transactions are serialised by the pool and in-memory databases are
// shared by every caller.
func Open(ctx context.Context, dsn string) (*sqldb.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, model.StorageError("open sqlite", err)
	}
	db.SetMaxOpenConns(1)
	return sqldb.Open(ctx, db, Dialect)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
