package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaiwa-ai/gemrack/internal/model"
	"github.com/kaiwa-ai/gemrack/internal/storage"
)

// PostgresRecorder rolls usage up into gem_usage_daily rows. Increments
// are single atomic upserts, so concurrent handlers need no client-side
// locking.
type PostgresRecorder struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewPostgresRecorder creates a recorder on the shared storage pool.
func NewPostgresRecorder(db *storage.DB, logger *slog.Logger) *PostgresRecorder {
	return &PostgresRecorder{db: db, logger: logger}
}

// RecordGemRun increments the daily rollup for one execution.
func (r *PostgresRecorder) RecordGemRun(ctx context.Context, run model.GemRun) error {
	occurred := run.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO gem_usage_daily (workspace_id, day, gem_name, count, public_count, ok_count, error_count)
		VALUES ($1, $2, $3, 1, $4, $5, $6)
		ON CONFLICT (workspace_id, day, gem_name) DO UPDATE SET
			count = gem_usage_daily.count + 1,
			public_count = gem_usage_daily.public_count + EXCLUDED.public_count,
			ok_count = gem_usage_daily.ok_count + EXCLUDED.ok_count,
			error_count = gem_usage_daily.error_count + EXCLUDED.error_count`,
		run.WorkspaceID, occurred.UTC().Format(dayFormat), run.GemName,
		oneIf(run.Public), oneIf(run.OK), oneIf(!run.OK),
	)
	if err != nil {
		return fmt.Errorf("metrics: record gem run: %w", err)
	}
	return nil
}

// Daily returns per-(day, gem) rollup rows for the trailing window.
func (r *PostgresRecorder) Daily(ctx context.Context, workspaceID string, days int) ([]model.GemUsageRow, error) {
	days = clampDays(days)
	from, to := window(days)

	rows, err := r.db.Pool().Query(ctx, `
		SELECT day::text, gem_name, count, public_count, ok_count, error_count
		FROM gem_usage_daily
		WHERE workspace_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day ASC, gem_name ASC`,
		workspaceID, from.Format(dayFormat), to.Format(dayFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: daily usage: %w", err)
	}
	defer rows.Close()

	var out []model.GemUsageRow
	for rows.Next() {
		var row model.GemUsageRow
		if err := rows.Scan(&row.Date, &row.GemName, &row.Count, &row.PublicCount, &row.OKCount, &row.ErrorCount); err != nil {
			return nil, fmt.Errorf("metrics: scan daily row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metrics: daily usage rows: %w", err)
	}
	return out, nil
}

// Summary aggregates the trailing window of days for a workspace.
func (r *PostgresRecorder) Summary(ctx context.Context, workspaceID string, days, limit int) (model.GemUsageSummary, error) {
	days = clampDays(days)
	limit = clampTop(limit)
	from, to := window(days)

	summary := model.GemUsageSummary{
		WorkspaceID: workspaceID,
		Days:        days,
		FromDate:    from.Format(dayFormat),
		ToDate:      to.Format(dayFormat),
	}

	// Per-day totals across gems. Missing days are filled with zero rows
	// so charts render a continuous window.
	byDay := make(map[string]model.DayTotals, days)
	rows, err := r.db.Pool().Query(ctx, `
		SELECT day::text,
		       SUM(count), SUM(public_count), SUM(ok_count), SUM(error_count)
		FROM gem_usage_daily
		WHERE workspace_id = $1 AND day BETWEEN $2 AND $3
		GROUP BY day`,
		workspaceID, from.Format(dayFormat), to.Format(dayFormat),
	)
	if err != nil {
		return model.GemUsageSummary{}, fmt.Errorf("metrics: summary by day: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d model.DayTotals
		if err := rows.Scan(&d.Date, &d.TotalCount, &d.PublicCount, &d.OKCount, &d.ErrorCount); err != nil {
			return model.GemUsageSummary{}, fmt.Errorf("metrics: scan day totals: %w", err)
		}
		byDay[d.Date] = d
	}
	if err := rows.Err(); err != nil {
		return model.GemUsageSummary{}, fmt.Errorf("metrics: summary rows: %w", err)
	}

	for i := range days {
		date := from.AddDate(0, 0, i).Format(dayFormat)
		d, ok := byDay[date]
		if !ok {
			d = model.DayTotals{Date: date}
		}
		summary.ByDay = append(summary.ByDay, d)
		summary.TotalCount += d.TotalCount
		summary.PublicCount += d.PublicCount
		summary.OKCount += d.OKCount
		summary.ErrorCount += d.ErrorCount
	}

	topRows, err := r.db.Pool().Query(ctx, `
		SELECT gem_name, SUM(count) AS total
		FROM gem_usage_daily
		WHERE workspace_id = $1 AND day BETWEEN $2 AND $3
		GROUP BY gem_name
		ORDER BY total DESC, gem_name ASC
		LIMIT $4`,
		workspaceID, from.Format(dayFormat), to.Format(dayFormat), limit,
	)
	if err != nil {
		return model.GemUsageSummary{}, fmt.Errorf("metrics: top gems: %w", err)
	}
	defer topRows.Close()
	for topRows.Next() {
		var tg model.TopGem
		if err := topRows.Scan(&tg.GemName, &tg.Count); err != nil {
			return model.GemUsageSummary{}, fmt.Errorf("metrics: scan top gem: %w", err)
		}
		summary.TopGems = append(summary.TopGems, tg)
	}
	if err := topRows.Err(); err != nil {
		return model.GemUsageSummary{}, fmt.Errorf("metrics: top gem rows: %w", err)
	}

	return summary, nil
}

func oneIf(b bool) int {
	if b {
		return 1
	}
	return 0
}
