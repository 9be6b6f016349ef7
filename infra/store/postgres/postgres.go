// Package postgres opens the Postgres backed entity store using the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/infra/store/sqldb"
)

const uniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS units (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		contact_handle TEXT UNIQUE,
		status TEXT NOT NULL DEFAULT 'free',
		phone TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS calls (
		id BIGSERIAL PRIMARY KEY,
		object_name TEXT NOT NULL,
		address TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		status TEXT NOT NULL DEFAULT 'pending',
		unit_id BIGINT REFERENCES units(id),
		created_at BIGINT NOT NULL,
		assigned_at BIGINT,
		completed_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS calls_status_idx ON calls (status)`,
	`CREATE INDEX IF NOT EXISTS calls_unit_idx ON calls (unit_id)`,
}

// Dialect is the Postgres flavour used by sqldb. Reads inside transactions
// take row locks so concurrent assignments of one unit serialise.
var Dialect = sqldb.Dialect{
	Name:              "postgres",
	Numbered:          true,
	LockSuffix:        " FOR UPDATE",
	IsUniqueViolation: isUniqueViolation,
	Schema:            schema,
}

var sqlOpen = sql.Open

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*sqldb.Store, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, model.StorageError("open postgres", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, model.StorageError("ping postgres", err)
	}
	return sqldb.Open(ctx, db, Dialect)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
