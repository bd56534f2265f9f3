package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiwa-ai/gemrack/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "gems.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	created, err := s.Upsert(ctx, model.GemUpsert{
		WorkspaceID:  "T1",
		Name:         "minutes",
		Summary:      "meeting minutes",
		SystemPrompt: "Summarize.",
		InputFormat:  model.InputFree,
		OutputFormat: model.OutputJSON,
	})
	require.NoError(t, err)
	assert.True(t, created.Enabled)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.Get(ctx, "T1", "minutes")
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestSQLiteStore_UpsertReplaceKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	first, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "g", Body: "v1"})
	require.NoError(t, err)

	second, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "g", Body: "v2"})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "v2", second.Body)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestSQLiteStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	_, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "g", Body: "x"})
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, "T1", "g")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, "T1", "g")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSQLiteStore_SetEnabled(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	_, err := s.SetEnabled(ctx, "T1", "missing", false, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "g", Body: "x"})
	require.NoError(t, err)

	g, err := s.SetEnabled(ctx, "T1", "g", false, nil)
	require.NoError(t, err)
	assert.False(t, g.Enabled)
	assert.Equal(t, "x", g.Body)
}

func TestSQLiteStore_ListIsolatesWorkspaces(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	_, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "a", Body: "x"})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T2", Name: "b", Body: "x"})
	require.NoError(t, err)

	gems, err := s.List(ctx, "T1", 50)
	require.NoError(t, err)
	require.Len(t, gems, 1)
	assert.Equal(t, "a", gems[0].Name)
}
