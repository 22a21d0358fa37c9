package store

import (
	"context"
	"log"

	"binwatch/config"
)

// Row is a single result row keyed by column name. Both backends return
// the same shape so callers never care which engine they run against.
type Row map[string]any

// Adapter is the uniform storage contract. The local SQLite backend and
// the remote Cloudflare D1 backend implement identical semantics; the
// backend is chosen once at startup and never switched at runtime.
type Adapter interface {
	// Execute runs a single statement and returns the generated row id.
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	// ExecuteMany runs one statement once per argument set.
	ExecuteMany(ctx context.Context, query string, argSets [][]any) error
	// FetchOne returns the first result row, or nil when there is none.
	FetchOne(ctx context.Context, query string, args ...any) (Row, error)
	// FetchAll returns every result row.
	FetchAll(ctx context.Context, query string, args ...any) ([]Row, error)
	// ExecScript runs a multi-statement SQL script.
	ExecScript(ctx context.Context, script string) error
	Name() string
	Close() error
}

// Open selects and connects the storage backend. Remote D1 credentials,
// when present, win over the local SQLite file.
func Open(cfg *config.DatabaseConfig) (Adapter, error) {
	if cfg.D1.Configured() {
		a := openD1(&cfg.D1)
		log.Printf("store: cloudflare d1 backend initialized (database %s)", cfg.D1.DatabaseID)
		return a, nil
	}
	a, err := openSQLite(cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	log.Printf("store: sqlite backend open at %s", cfg.SQLite.Path)
	return a, nil
}
