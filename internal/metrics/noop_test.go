package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderSummary(t *testing.T) {
	var r Recorder = NoopRecorder{}
	record(t, r, "hello", true, true)

	rows, err := r.Daily(context.Background(), "T1", 7)
	require.NoError(t, err)
	assert.Empty(t, rows)

	s, err := r.Summary(context.Background(), "T1", 7, 10)
	require.NoError(t, err)
	assert.Equal(t, "T1", s.WorkspaceID)
	assert.Equal(t, 7, s.Days)
	assert.Len(t, s.ByDay, 7)
	assert.Zero(t, s.TotalCount)
	assert.NotEmpty(t, s.FromDate)
	assert.NotEmpty(t, s.ToDate)
}
