package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiwa-ai/gemrack/internal/model"
)

func TestMemoryStore_UpsertGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	creator := "U123"

	created, err := s.Upsert(ctx, model.GemUpsert{
		WorkspaceID:  "T1",
		Name:         "Daily-Report", // normalized to lowercase
		Summary:      "daily report generator",
		SystemPrompt: "You write reports.",
		InputFormat:  model.InputBulletPoints,
		OutputFormat: model.OutputMarkdown,
		CreatedBy:    &creator,
	})
	require.NoError(t, err)
	assert.Equal(t, "daily-report", created.Name)
	assert.True(t, created.Enabled)

	got, err := s.Get(ctx, "T1", "daily-report")
	require.NoError(t, err)
	assert.Equal(t, created.Summary, got.Summary)
	assert.Equal(t, created.SystemPrompt, got.SystemPrompt)
	assert.Equal(t, created.InputFormat, got.InputFormat)
	assert.Equal(t, created.OutputFormat, got.OutputFormat)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, "U123", *got.CreatedBy)
}

func TestMemoryStore_UpsertPreservesCreatedAtAndEnabled(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "g", Body: "v1"})
	require.NoError(t, err)

	_, err = s.SetEnabled(ctx, "T1", "g", false, nil)
	require.NoError(t, err)

	second, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "g", Body: "v2"})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.False(t, second.Enabled, "enabled is an admin toggle and must survive upsert")
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt), "updated_at is monotonically non-decreasing")
	assert.Equal(t, "v2", second.Body)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "T1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "g", Body: "x"})
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, "T1", "g")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, "T1", "g")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete of the same key reports false without error")
}

func TestMemoryStore_ListOrderAndClamp(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := range 5 {
		_, err := s.Upsert(ctx, model.GemUpsert{
			WorkspaceID: "T1",
			Name:        fmt.Sprintf("gem-%d", i),
			Body:        "x",
		})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	_, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "other", Name: "stranger", Body: "x"})
	require.NoError(t, err)

	gems, err := s.List(ctx, "T1", 3)
	require.NoError(t, err)
	require.Len(t, gems, 3)
	assert.Equal(t, "gem-4", gems[0].Name, "most recently created first")

	// Limits outside [1,200] are clamped, not rejected.
	gems, err = s.List(ctx, "T1", 0)
	require.NoError(t, err)
	assert.Len(t, gems, 1)

	gems, err = s.List(ctx, "T1", 10_000)
	require.NoError(t, err)
	assert.Len(t, gems, 5)
}

func TestMemoryStore_SetEnabled(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.SetEnabled(ctx, "T1", "missing", false, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "g", Body: "x"})
	require.NoError(t, err)

	g, err := s.SetEnabled(ctx, "T1", "g", false, nil)
	require.NoError(t, err)
	assert.False(t, g.Enabled)
	assert.Equal(t, "x", g.Body, "other fields untouched")
}

func TestMemoryStore_InvalidNameRejectedEverywhere(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T1", Name: "-bad"})
	assert.ErrorIs(t, err, model.ErrInvalidName)

	_, err = s.Get(ctx, "T1", "Ünïcode")
	assert.ErrorIs(t, err, model.ErrInvalidName)

	_, err = s.Delete(ctx, "T1", "")
	assert.ErrorIs(t, err, model.ErrInvalidName)
}
