// Package testutil provides shared test infrastructure for integration tests
// that require a Postgres container.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    tc := testutil.StartPostgres()
//	    if tc == nil {
//	        os.Exit(m.Run()) // docker unavailable; container tests skip
//	    }
//	    defer tc.Terminate()
//	    testDB, _ = tc.NewTestDB(context.Background(), logger)
//	    os.Exit(m.Run())
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kaiwa-ai/gemrack/internal/storage"
	"github.com/kaiwa-ai/gemrack/migrations"
)

// TestContainer wraps a testcontainers container with a DSN for connecting.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// StartPostgres starts a disposable Postgres container. Returns nil when the
// container runtime is unavailable so callers can skip integration tests
// instead of failing the whole package.
func StartPostgres() (tc *TestContainer) {
	// testcontainers panics (rather than returning an error) when no Docker
	// host can be resolved at all; recover so callers still get nil and skip.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "testutil: postgres container unavailable, skipping integration tests: %v\n", r)
			tc = nil
		}
	}()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "gemrack",
			"POSTGRES_PASSWORD": "gemrack",
			"POSTGRES_DB":       "gemrack",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: postgres container unavailable, skipping integration tests: %v\n", err)
		return nil
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: container host: %v\n", err)
		_ = container.Terminate(ctx)
		return nil
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: container port: %v\n", err)
		_ = container.Terminate(ctx)
		return nil
	}

	return &TestContainer{
		Container: container,
		DSN:       fmt.Sprintf("postgres://gemrack:gemrack@%s:%s/gemrack?sslmode=disable", host, port.Port()),
	}
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// NewTestDB connects to the container database and applies migrations.
func (tc *TestContainer) NewTestDB(ctx context.Context, logger *slog.Logger) (*storage.DB, error) {
	db, err := storage.New(ctx, tc.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: connect: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("testutil: migrate: %w", err)
	}
	return db, nil
}
