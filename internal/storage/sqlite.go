package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kaiwa-ai/gemrack/internal/model"
)

// SQLiteStore is a durable single-node gem store backed by a local sqlite
// file. For self-hosted deployments that want persistence without running
// Postgres; the auto policy never selects it.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS gems (
	workspace_id  TEXT NOT NULL,
	name          TEXT NOT NULL,
	summary       TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL DEFAULT '',
	input_format  TEXT NOT NULL DEFAULT '',
	output_format TEXT NOT NULL DEFAULT '',
	enabled       INTEGER NOT NULL DEFAULT 1,
	created_by    TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (workspace_id, name)
);
CREATE INDEX IF NOT EXISTS idx_gems_workspace_created ON gems (workspace_id, created_at DESC);
`

// NewSQLiteStore opens (creating if needed) the sqlite database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes internally; a single connection
	// avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSQLiteTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func scanSQLiteGem(row interface{ Scan(...any) error }) (model.Gem, error) {
	var g model.Gem
	var enabled int
	var createdAt, updatedAt string
	err := row.Scan(&g.WorkspaceID, &g.Name, &g.Summary, &g.Body, &g.SystemPrompt,
		&g.InputFormat, &g.OutputFormat, &enabled, &g.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return model.Gem{}, err
	}
	g.Enabled = enabled != 0
	g.CreatedAt = parseSQLiteTime(createdAt)
	g.UpdatedAt = parseSQLiteTime(updatedAt)
	return g, nil
}

// Upsert creates or fully replaces a gem, preserving created_at and
// enabled for existing keys.
func (s *SQLiteStore) Upsert(ctx context.Context, params model.GemUpsert) (model.Gem, error) {
	name, err := model.ValidateName(params.Name)
	if err != nil {
		return model.Gem{}, err
	}

	now := sqliteTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gems (workspace_id, name, summary, body, system_prompt, input_format, output_format, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, name) DO UPDATE SET
			summary = excluded.summary,
			body = excluded.body,
			system_prompt = excluded.system_prompt,
			input_format = excluded.input_format,
			output_format = excluded.output_format,
			created_by = COALESCE(gems.created_by, excluded.created_by),
			updated_at = excluded.updated_at`,
		params.WorkspaceID, name,
		strings.TrimSpace(params.Summary), strings.TrimSpace(params.Body),
		strings.TrimSpace(params.SystemPrompt),
		strings.TrimSpace(params.InputFormat), strings.TrimSpace(params.OutputFormat),
		params.CreatedBy, now, now,
	)
	if err != nil {
		return model.Gem{}, fmt.Errorf("storage: upsert gem: %w", err)
	}
	return s.Get(ctx, params.WorkspaceID, name)
}

// Get returns the gem or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, workspaceID, name string) (model.Gem, error) {
	n, err := model.ValidateName(name)
	if err != nil {
		return model.Gem{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT workspace_id, name, summary, body, system_prompt, input_format, output_format, enabled, created_by, created_at, updated_at
		FROM gems WHERE workspace_id = ? AND name = ?`,
		workspaceID, n,
	)
	g, err := scanSQLiteGem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Gem{}, ErrNotFound
	}
	if err != nil {
		return model.Gem{}, fmt.Errorf("storage: get gem: %w", err)
	}
	return g, nil
}

// Delete removes the gem, reporting whether a row existed.
func (s *SQLiteStore) Delete(ctx context.Context, workspaceID, name string) (bool, error) {
	n, err := model.ValidateName(name)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM gems WHERE workspace_id = ? AND name = ?`, workspaceID, n)
	if err != nil {
		return false, fmt.Errorf("storage: delete gem: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: delete gem rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns up to min(limit, 200) gems, most recently created first.
func (s *SQLiteStore) List(ctx context.Context, workspaceID string, limit int) ([]model.Gem, error) {
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT workspace_id, name, summary, body, system_prompt, input_format, output_format, enabled, created_by, created_at, updated_at
		FROM gems WHERE workspace_id = ? ORDER BY created_at DESC, name ASC LIMIT ?`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list gems: %w", err)
	}
	defer rows.Close()

	var gems []model.Gem
	for rows.Next() {
		g, err := scanSQLiteGem(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan gem row: %w", err)
		}
		gems = append(gems, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list gems rows: %w", err)
	}
	return gems, nil
}

// SetEnabled toggles execution for a gem without touching other fields.
func (s *SQLiteStore) SetEnabled(ctx context.Context, workspaceID, name string, enabled bool, _ *string) (model.Gem, error) {
	n, err := model.ValidateName(name)
	if err != nil {
		return model.Gem{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE gems SET enabled = ?, updated_at = ? WHERE workspace_id = ? AND name = ?`,
		boolInt(enabled), sqliteTime(time.Now()), workspaceID, n,
	)
	if err != nil {
		return model.Gem{}, fmt.Errorf("storage: set gem enabled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Gem{}, fmt.Errorf("storage: set gem enabled rows affected: %w", err)
	}
	if affected == 0 {
		return model.Gem{}, ErrNotFound
	}
	return s.Get(ctx, workspaceID, n)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
