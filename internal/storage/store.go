// Package storage defines the backend-agnostic store capability used by the
// loader and the stats recorder, plus the registry that backend packages
// register themselves with.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a Store.
//
// Kind must match a registered backend kind ("mssql", "postgres", "sqlite").
// DSN is passed through to the backend factory; validation is
// backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Store is the single capability interface for the target database.
//
// Both the loader and the stats recorder depend on this interface rather than
// owning their own connection logic. The schema surface is intentionally
// additive-only: there is no way to drop a table or remove a column.
//
// All columns created through this interface use the backend's maximally
// permissive text type; no type inference happens anywhere.
type Store interface {
	// Close releases the underlying connection. A Store is a scoped
	// resource: it is opened for one load or one stats append and closed
	// immediately after, even on failure.
	Close()

	// TableExists reports whether a table with the given name exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// CreateTable creates table with one permissive text column per name.
	CreateTable(ctx context.Context, table string, columns []string) error

	// TableColumns returns the table's current column names.
	TableColumns(ctx context.Context, table string) ([]string, error)

	// AddColumn adds one permissive text column to an existing table.
	AddColumn(ctx context.Context, table, column string) error

	// InsertRows appends rows to table. Row values may be nil, which is
	// submitted as SQL NULL. Statements are chunked per backend limits;
	// on failure the count of rows inserted before the failure is
	// returned, and those rows stay committed.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// EnsureStatsTable creates the fixed-schema audit table if absent.
	EnsureStatsTable(ctx context.Context) error

	// AppendStats appends one audit record. Records are never updated or
	// deleted through this interface.
	AppendStats(ctx context.Context, rec StatsRecord) error
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a storage backend under a kind (e.g. "mssql").
//
// Call Register from an init() function in a backend package. Registering the
// same kind twice panics; this fails fast on ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New opens a Store using the registered backend factory for cfg.Kind.
//
// Safe for concurrent use with Register. Returns an error if cfg.Kind is
// empty or unregistered, or whatever error the factory returns.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
