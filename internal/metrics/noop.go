package metrics

import (
	"context"

	"github.com/kaiwa-ai/gemrack/internal/model"
)

// NoopRecorder drops all writes and reports empty usage. Used in tests
// and when metrics are explicitly disabled.
type NoopRecorder struct{}

// RecordGemRun discards the event.
func (NoopRecorder) RecordGemRun(context.Context, model.GemRun) error {
	return nil
}

// Daily reports no rows.
func (NoopRecorder) Daily(context.Context, string, int) ([]model.GemUsageRow, error) {
	return nil, nil
}

// Summary reports an empty window.
func (NoopRecorder) Summary(_ context.Context, workspaceID string, days, _ int) (model.GemUsageSummary, error) {
	days = clampDays(days)
	from, to := window(days)
	s := model.GemUsageSummary{
		WorkspaceID: workspaceID,
		Days:        days,
		FromDate:    from.Format(dayFormat),
		ToDate:      to.Format(dayFormat),
	}
	for i := range days {
		s.ByDay = append(s.ByDay, model.DayTotals{Date: from.AddDate(0, 0, i).Format(dayFormat)})
	}
	return s, nil
}
