package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiwa-ai/gemrack/internal/model"
)

func record(t *testing.T, r Recorder, gem string, public, ok bool) {
	t.Helper()
	require.NoError(t, r.RecordGemRun(context.Background(), model.GemRun{
		WorkspaceID: "T1",
		GemName:     gem,
		Public:      public,
		OK:          ok,
		OccurredAt:  time.Now().UTC(),
	}))
}

func TestMemoryRecorder_RollupCounts(t *testing.T) {
	r := NewMemoryRecorder()
	record(t, r, "hello", true, true)
	record(t, r, "hello", false, true)
	record(t, r, "hello", false, false)

	rows, err := r.Daily(context.Background(), "T1", 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "hello", row.GemName)
	assert.Equal(t, 3, row.Count)
	assert.Equal(t, 1, row.PublicCount)
	assert.Equal(t, 2, row.OKCount)
	assert.Equal(t, 1, row.ErrorCount)
}

func TestMemoryRecorder_SummaryWindowAndTopGems(t *testing.T) {
	r := NewMemoryRecorder()
	record(t, r, "alpha", false, true)
	record(t, r, "alpha", false, true)
	record(t, r, "beta", true, false)

	s, err := r.Summary(context.Background(), "T1", 7, 1)
	require.NoError(t, err)

	assert.Equal(t, 7, s.Days)
	assert.Len(t, s.ByDay, 7, "every day of the window appears, zero-filled")
	assert.Equal(t, 3, s.TotalCount)
	assert.Equal(t, 1, s.PublicCount)
	assert.Equal(t, 2, s.OKCount)
	assert.Equal(t, 1, s.ErrorCount)

	require.Len(t, s.TopGems, 1, "top gems respects the limit")
	assert.Equal(t, "alpha", s.TopGems[0].GemName)
	assert.Equal(t, 2, s.TopGems[0].Count)
}

func TestMemoryRecorder_WorkspaceIsolation(t *testing.T) {
	r := NewMemoryRecorder()
	record(t, r, "mine", false, true)
	require.NoError(t, r.RecordGemRun(context.Background(), model.GemRun{
		WorkspaceID: "T2", GemName: "theirs", OK: true,
	}))

	rows, err := r.Daily(context.Background(), "T1", 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "mine", rows[0].GemName)
}

func TestMemoryRecorder_DaysClamped(t *testing.T) {
	r := NewMemoryRecorder()
	s, err := r.Summary(context.Background(), "T1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Days)

	s, err = r.Summary(context.Background(), "T1", 9999, 10)
	require.NoError(t, err)
	assert.Equal(t, 365, s.Days)
}
