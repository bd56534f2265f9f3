package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kaiwa-ai/gemrack/internal/model"
)

// PostgresStore is the durable gem store: one row per gem keyed by
// (workspace_id, name), timestamps assigned server-side.
type PostgresStore struct {
	db *DB
}

// NewPostgresStore creates a gem store backed by the given DB.
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const gemColumns = `workspace_id, name, summary, body, system_prompt, input_format, output_format, enabled, created_by, created_at, updated_at`

func scanGem(row pgx.Row) (model.Gem, error) {
	var g model.Gem
	err := row.Scan(&g.WorkspaceID, &g.Name, &g.Summary, &g.Body, &g.SystemPrompt,
		&g.InputFormat, &g.OutputFormat, &g.Enabled, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

// Upsert creates or fully replaces a gem. created_at and enabled survive a
// replace; everything else takes the caller's values and updated_at advances.
func (s *PostgresStore) Upsert(ctx context.Context, params model.GemUpsert) (model.Gem, error) {
	name, err := model.ValidateName(params.Name)
	if err != nil {
		return model.Gem{}, err
	}

	row := s.db.pool.QueryRow(ctx, `
		INSERT INTO gems (workspace_id, name, summary, body, system_prompt, input_format, output_format, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workspace_id, name) DO UPDATE SET
			summary = EXCLUDED.summary,
			body = EXCLUDED.body,
			system_prompt = EXCLUDED.system_prompt,
			input_format = EXCLUDED.input_format,
			output_format = EXCLUDED.output_format,
			created_by = COALESCE(gems.created_by, EXCLUDED.created_by),
			updated_at = now()
		RETURNING `+gemColumns,
		params.WorkspaceID, name,
		strings.TrimSpace(params.Summary), strings.TrimSpace(params.Body),
		strings.TrimSpace(params.SystemPrompt),
		strings.TrimSpace(params.InputFormat), strings.TrimSpace(params.OutputFormat),
		params.CreatedBy,
	)
	g, err := scanGem(row)
	if err != nil {
		return model.Gem{}, fmt.Errorf("storage: upsert gem: %w", err)
	}
	return g, nil
}

// Get returns the gem or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, workspaceID, name string) (model.Gem, error) {
	n, err := model.ValidateName(name)
	if err != nil {
		return model.Gem{}, err
	}

	row := s.db.pool.QueryRow(ctx,
		`SELECT `+gemColumns+` FROM gems WHERE workspace_id = $1 AND name = $2`,
		workspaceID, n,
	)
	g, err := scanGem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Gem{}, ErrNotFound
	}
	if err != nil {
		return model.Gem{}, fmt.Errorf("storage: get gem: %w", err)
	}
	return g, nil
}

// Delete removes the gem, reporting whether a row existed.
func (s *PostgresStore) Delete(ctx context.Context, workspaceID, name string) (bool, error) {
	n, err := model.ValidateName(name)
	if err != nil {
		return false, err
	}

	tag, err := s.db.pool.Exec(ctx,
		`DELETE FROM gems WHERE workspace_id = $1 AND name = $2`,
		workspaceID, n,
	)
	if err != nil {
		return false, fmt.Errorf("storage: delete gem: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns up to min(limit, 200) gems, most recently created first.
func (s *PostgresStore) List(ctx context.Context, workspaceID string, limit int) ([]model.Gem, error) {
	limit = clampLimit(limit)

	rows, err := s.db.pool.Query(ctx,
		`SELECT `+gemColumns+` FROM gems WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list gems: %w", err)
	}
	defer rows.Close()

	var gems []model.Gem
	for rows.Next() {
		g, err := scanGem(rows)
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
func (s *PostgresStore) SetEnabled(ctx context.Context, workspaceID, name string, enabled bool, updatedBy *string) (model.Gem, error) {
	n, err := model.ValidateName(name)
	if err != nil {
		return model.Gem{}, err
	}

	row := s.db.pool.QueryRow(ctx,
		`UPDATE gems SET enabled = $3, updated_at = now() WHERE workspace_id = $1 AND name = $2 RETURNING `+gemColumns,
		workspaceID, n, enabled,
	)
	g, err := scanGem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Gem{}, ErrNotFound
	}
	if err != nil {
		return model.Gem{}, fmt.Errorf("storage: set gem enabled: %w", err)
	}
	if updatedBy != nil {
		s.db.logger.Info("gem enabled toggled", "workspace_id", workspaceID, "gem", n, "enabled", enabled, "updated_by", *updatedBy)
	}
	return g, nil
}
