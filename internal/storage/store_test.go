package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiwa-ai/gemrack/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuild_MemorySelector(t *testing.T) {
	store, db, cleanup, err := Build(context.Background(), config.Config{
		StoreBackend: config.BackendMemory,
	}, discardLogger())
	require.NoError(t, err)
	defer cleanup(context.Background())

	assert.IsType(t, &MemoryStore{}, store)
	assert.Nil(t, db)
}

func TestBuild_SQLiteSelector(t *testing.T) {
	store, db, cleanup, err := Build(context.Background(), config.Config{
		StoreBackend: config.BackendSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "gems.db"),
	}, discardLogger())
	require.NoError(t, err)
	defer cleanup(context.Background())

	assert.IsType(t, &SQLiteStore{}, store)
	assert.Nil(t, db)
}

func TestBuild_PostgresSelectorFailsWithoutURL(t *testing.T) {
	_, _, _, err := Build(context.Background(), config.Config{
		StoreBackend: config.BackendPostgres,
	}, discardLogger())
	require.Error(t, err)
}

func TestBuild_AutoFallsBackToMemoryInDev(t *testing.T) {
	// No DATABASE_URL: the postgres attempt fails immediately and the dev
	// policy falls back to the volatile store with a warning.
	store, _, cleanup, err := Build(context.Background(), config.Config{
		StoreBackend: config.BackendAuto,
	}, discardLogger())
	require.NoError(t, err)
	defer cleanup(context.Background())

	assert.IsType(t, &MemoryStore{}, store)
}

func TestBuild_AutoIsFatalInProduction(t *testing.T) {
	_, _, _, err := Build(context.Background(), config.Config{
		StoreBackend: config.BackendAuto,
		Environment:  "production",
	}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "durable backend required in production")
}

func TestBuild_UnknownBackend(t *testing.T) {
	_, _, _, err := Build(context.Background(), config.Config{
		StoreBackend: "firestore",
	}, discardLogger())
	require.Error(t, err)
}
