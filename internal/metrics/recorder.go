// Package metrics records and aggregates gem usage.
//
// The write path (RecordGemRun) is consumed by the command engine after
// every execution; the read path feeds only the admin usage surface.
// Recording is best-effort: failures are logged by callers and never
// surfaced to end users, and no transaction spans a gem write and a
// metrics write.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/kaiwa-ai/gemrack/internal/model"
	"github.com/kaiwa-ai/gemrack/internal/storage"
)

// Recorder persists and aggregates gem usage events.
type Recorder interface {
	// RecordGemRun increments the daily rollup for one execution.
	RecordGemRun(ctx context.Context, run model.GemRun) error

	// Summary aggregates the trailing window of days for a workspace.
	Summary(ctx context.Context, workspaceID string, days, limit int) (model.GemUsageSummary, error)

	// Daily returns per-(day, gem) rollup rows for the trailing window.
	Daily(ctx context.Context, workspaceID string, days int) ([]model.GemUsageRow, error)
}

// New selects a recorder for the available storage: the shared Postgres
// pool when the durable gem store is active, otherwise an in-process
// recorder. Unlike the gem store this is never fatal — usage metrics are
// not worth refusing to serve commands over.
func New(db *storage.DB, logger *slog.Logger) Recorder {
	if db != nil {
		return NewPostgresRecorder(db, logger)
	}
	logger.Info("metrics: using in-memory recorder (usage resets on restart)")
	return NewMemoryRecorder()
}

func clampDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > 365 {
		return 365
	}
	return days
}

func clampTop(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// window returns the [from, to] date bounds for a trailing window ending today.
func window(days int) (time.Time, time.Time) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -(days - 1))
	return from, to
}

const dayFormat = "2006-01-02"
