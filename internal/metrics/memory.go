package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kaiwa-ai/gemrack/internal/model"
)

type usageKey struct {
	workspaceID string
	day         string
	gemName     string
}

// MemoryRecorder keeps rollups in process. Used when no durable backend
// is configured; counts reset on restart.
type MemoryRecorder struct {
	mu    sync.RWMutex
	daily map[usageKey]model.GemUsageRow
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{daily: make(map[usageKey]model.GemUsageRow)}
}

// RecordGemRun increments the daily rollup for one execution.
func (r *MemoryRecorder) RecordGemRun(_ context.Context, run model.GemRun) error {
	occurred := run.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	day := occurred.UTC().Format(dayFormat)

	r.mu.Lock()
	defer r.mu.Unlock()

	key := usageKey{run.WorkspaceID, day, run.GemName}
	row := r.daily[key]
	row.Date = day
	row.GemName = run.GemName
	row.Count++
	row.PublicCount += oneIf(run.Public)
	row.OKCount += oneIf(run.OK)
	row.ErrorCount += oneIf(!run.OK)
	r.daily[key] = row
	return nil
}

// Daily returns per-(day, gem) rollup rows for the trailing window.
func (r *MemoryRecorder) Daily(_ context.Context, workspaceID string, days int) ([]model.GemUsageRow, error) {
	days = clampDays(days)
	from, to := window(days)
	fromStr, toStr := from.Format(dayFormat), to.Format(dayFormat)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.GemUsageRow
	for key, row := range r.daily {
		if key.workspaceID == workspaceID && key.day >= fromStr && key.day <= toStr {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].GemName < out[j].GemName
	})
	return out, nil
}

// Summary aggregates the trailing window of days for a workspace.
func (r *MemoryRecorder) Summary(ctx context.Context, workspaceID string, days, limit int) (model.GemUsageSummary, error) {
	days = clampDays(days)
	limit = clampTop(limit)
	from, to := window(days)

	rows, err := r.Daily(ctx, workspaceID, days)
	if err != nil {
		return model.GemUsageSummary{}, err
	}

	summary := model.GemUsageSummary{
		WorkspaceID: workspaceID,
		Days:        days,
		FromDate:    from.Format(dayFormat),
		ToDate:      to.Format(dayFormat),
	}

	byDay := make(map[string]model.DayTotals, days)
	byGem := make(map[string]int)
	for _, row := range rows {
		d := byDay[row.Date]
		d.Date = row.Date
		d.TotalCount += row.Count
		d.PublicCount += row.PublicCount
		d.OKCount += row.OKCount
		d.ErrorCount += row.ErrorCount
		byDay[row.Date] = d
		byGem[row.GemName] += row.Count
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

	for name, count := range byGem {
		summary.TopGems = append(summary.TopGems, model.TopGem{GemName: name, Count: count})
	}
	sort.Slice(summary.TopGems, func(i, j int) bool {
		if summary.TopGems[i].Count != summary.TopGems[j].Count {
			return summary.TopGems[i].Count > summary.TopGems[j].Count
		}
		return summary.TopGems[i].GemName < summary.TopGems[j].GemName
	})
	if len(summary.TopGems) > limit {
		summary.TopGems = summary.TopGems[:limit]
	}

	return summary, nil
}
