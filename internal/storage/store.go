// Package storage provides persistence for Gem definitions.
//
// A GemStore has exactly five operations. Three interchangeable backends
// implement it: an in-process map (volatile), Postgres (durable), and a
// local sqlite file (durable, single-node). The "auto" policy in Build
// decides which one serves at startup.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kaiwa-ai/gemrack/internal/config"
	"github.com/kaiwa-ai/gemrack/internal/model"
	"github.com/kaiwa-ai/gemrack/migrations"
)

// ErrNotFound is returned when a requested gem does not exist.
var ErrNotFound = errors.New("storage: not found")

// GemStore is the persistence contract for gem definitions.
// All operations normalize the gem name through model.ValidateName
// before any lookup or write.
type GemStore interface {
	// Upsert creates or fully replaces a gem. created_at is preserved on
	// replace; updated_at is always advanced server-side.
	Upsert(ctx context.Context, params model.GemUpsert) (model.Gem, error)

	// Get returns the gem or ErrNotFound.
	Get(ctx context.Context, workspaceID, name string) (model.Gem, error)

	// Delete removes the gem, reporting whether it existed. Deleting a
	// missing gem is not an error.
	Delete(ctx context.Context, workspaceID, name string) (bool, error)

	// List returns up to min(limit, 200) gems, most recently created first.
	List(ctx context.Context, workspaceID string, limit int) ([]model.Gem, error)

	// SetEnabled toggles execution for a gem without touching other fields.
	SetEnabled(ctx context.Context, workspaceID, name string, enabled bool, updatedBy *string) (model.Gem, error)
}

// clampLimit bounds a list limit to [1, 200].
func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > 200 {
		return 200
	}
	return limit
}

// Build constructs the gem store selected by cfg.StoreBackend.
//
// "auto" (the default) tries Postgres first. On failure in a managed
// execution context the error is fatal: starting with a volatile store
// there would silently drop every persisted gem on the next restart.
// Outside production the fallback to memory is logged and allowed.
// Explicit selectors bypass the policy and succeed or fail on their own.
//
// The returned *DB is non-nil only for the Postgres backend so callers
// can share the pool (metrics). cleanup is never nil.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (GemStore, *DB, func(context.Context), error) {
	noop := func(context.Context) {}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		return NewMemoryStore(), nil, noop, nil

	case config.BackendSQLite:
		st, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("storage: open sqlite store: %w", err)
		}
		return st, nil, func(context.Context) { _ = st.Close() }, nil

	case config.BackendPostgres:
		st, db, cleanup, err := buildPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, db, cleanup, nil

	case config.BackendAuto:
		st, db, cleanup, err := buildPostgres(ctx, cfg, logger)
		if err == nil {
			return st, db, cleanup, nil
		}
		if cfg.Production() {
			// Transient and permanent failures are treated alike here:
			// refusing to serve beats losing gems on redeploy.
			return nil, nil, nil, fmt.Errorf("storage: durable backend required in production but unavailable (set GEM_STORE_BACKEND=postgres and check DATABASE_URL): %w", err)
		}
		logger.Warn("storage: postgres unavailable, falling back to in-memory store (gems are lost on restart)", "error", err)
		return NewMemoryStore(), nil, noop, nil

	default:
		return nil, nil, nil, fmt.Errorf("storage: unknown backend %q", cfg.StoreBackend)
	}
}

func buildPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (GemStore, *DB, func(context.Context), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, fmt.Errorf("storage: DATABASE_URL is not set")
	}
	db, err := New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("storage: run migrations: %w", err)
	}
	cleanup := func(context.Context) { db.Close() }
	return NewPostgresStore(db), db, cleanup, nil
}
