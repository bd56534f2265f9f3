package storage_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiwa-ai/gemrack/internal/model"
	"github.com/kaiwa-ai/gemrack/internal/storage"
	"github.com/kaiwa-ai/gemrack/internal/testutil"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.StartPostgres()
	if tc == nil {
		os.Exit(m.Run())
	}
	defer tc.Terminate()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := tc.NewTestDB(context.Background(), logger)
	if err != nil {
		tc.Terminate()
		panic(err)
	}
	testDB = db
	code := m.Run()
	db.Close()
	tc.Terminate()
	os.Exit(code)
}

func requireDB(t *testing.T) *storage.PostgresStore {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres container unavailable")
	}
	return storage.NewPostgresStore(testDB)
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := requireDB(t)

	created, err := s.Upsert(ctx, model.GemUpsert{
		WorkspaceID:  "T-int",
		Name:         "release-notes",
		Summary:      "release notes writer",
		SystemPrompt: "You write release notes.",
		InputFormat:  model.InputURLList,
		OutputFormat: model.OutputMarkdown,
	})
	require.NoError(t, err)
	assert.True(t, created.Enabled)
	assert.False(t, created.CreatedAt.IsZero(), "created_at is server-assigned")

	got, err := s.Get(ctx, "T-int", "release-notes")
	require.NoError(t, err)
	assert.Equal(t, created.Summary, got.Summary)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
}

func TestPostgresStore_UpsertReplaceSemantics(t *testing.T) {
	ctx := context.Background()
	s := requireDB(t)

	first, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T-int", Name: "replace-me", Body: "v1"})
	require.NoError(t, err)

	_, err = s.SetEnabled(ctx, "T-int", "replace-me", false, nil)
	require.NoError(t, err)

	second, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T-int", Name: "replace-me", Body: "v2"})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt, "created_at survives replace")
	assert.False(t, second.Enabled, "admin toggle survives replace")
	assert.Equal(t, "v2", second.Body)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestPostgresStore_DeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := requireDB(t)

	_, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T-int", Name: "doomed", Body: "x"})
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, "T-int", "doomed")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, "T-int", "doomed")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.Get(ctx, "T-int", "doomed")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresStore_ListOrder(t *testing.T) {
	ctx := context.Background()
	s := requireDB(t)

	for _, name := range []string{"list-a", "list-b", "list-c"} {
		_, err := s.Upsert(ctx, model.GemUpsert{WorkspaceID: "T-list", Name: name, Body: "x"})
		require.NoError(t, err)
	}

	gems, err := s.List(ctx, "T-list", 2)
	require.NoError(t, err)
	require.Len(t, gems, 2)
	assert.Equal(t, "list-c", gems[0].Name, "created_at descending")
}
