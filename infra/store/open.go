// Package store selects the entity store backend from configuration.
package store

import (
	"context"
	"fmt"

	corestore "github.com/stasyk411/gbr/core/store"
	"github.com/stasyk411/gbr/infra/store/memory"
	"github.com/stasyk411/gbr/infra/store/postgres"
	"github.com/stasyk411/gbr/infra/store/sqlite"
)

// Backends accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects the entity store.
type Config struct {
	// Backend is "sqlite" (default), "postgres" or "memory".
	Backend string `json:"backend"`
	// DSN is the SQLite file path or the Postgres connection string.
	DSN string `json:"dsn"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.Backend == BackendSQLite && c.DSN == "" {
		c.DSN = "gbr.db"
	}
}

// Validate checks the backend and its DSN.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendSQLite, BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("store: dsn is required for %s", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("store: unknown backend %q", c.Backend)
	}
}

// Open returns the configured store.
func Open(ctx context.Context, cfg Config) (corestore.Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendMemory {
		return memory.New(), nil
	}
	open := sqlite.Open
	if cfg.Backend == BackendPostgres {
		open = postgres.Open
	}
	st, err := open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return st, nil
}
