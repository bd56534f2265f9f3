package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kaiwa-ai/gemrack/internal/auth"
	"github.com/kaiwa-ai/gemrack/internal/chat"
	"github.com/kaiwa-ai/gemrack/internal/config"
	"github.com/kaiwa-ai/gemrack/internal/metrics"
	"github.com/kaiwa-ai/gemrack/internal/server"
	"github.com/kaiwa-ai/gemrack/internal/service/gemini"
	"github.com/kaiwa-ai/gemrack/internal/service/gems"
	"github.com/kaiwa-ai/gemrack/internal/storage"
	"github.com/kaiwa-ai/gemrack/internal/telemetry"
	"github.com/kaiwa-ai/gemrack/internal/worker"
	"github.com/kaiwa-ai/gemrack/ui"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("GEMRACK_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("gemrack starting", "version", version, "port", cfg.Port, "backend", cfg.StoreBackend)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Build the gem store. In auto mode with a production environment a
	// durable backend failure is fatal here rather than degraded.
	store, db, closeStore, err := storage.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeStore(context.Background())

	// Usage recorder shares the Postgres pool when one is active.
	recorder := metrics.New(db, logger)

	// Generative backend (nil when GEMINI_API_KEY is unset; static gems
	// keep working).
	var generator gems.Generator
	if client := gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiImageModel, logger); client != nil {
		generator = client
		logger.Info("gemini: enabled", "model", cfg.GeminiModel, "image_model", cfg.GeminiImageModel)
	} else {
		logger.Warn("gemini: disabled (no GEMINI_API_KEY), AI gems will refuse to run")
	}

	// Slack client (nil without a bot token; slash responses still work
	// inline, but modals, uploads and deferred delivery are off).
	var chatClient chat.Client
	if sc := chat.NewSlackClient(cfg.SlackBotToken, logger); sc != nil {
		chatClient = sc
		logger.Info("slack: web api client enabled")
	} else {
		logger.Warn("slack: disabled (no SLACK_BOT_TOKEN)")
	}

	// Admin sessions (nil without ADMIN_PASSWORD).
	sessions, err := auth.NewSessionManager(cfg.AdminPassword, cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if sessions == nil {
		logger.Info("admin surface: disabled (no ADMIN_PASSWORD)")
	}

	engine := gems.NewEngine(store, recorder, generator, logger)

	// Deferred execution pool. Tasks run under the process context so an
	// already-answered HTTP exchange cannot cancel a generation, but a
	// shutdown signal still does.
	pool := worker.New(ctx, cfg.WorkerCount, cfg.WorkerQueue, logger)

	// Load embedded UI filesystem (non-nil only when built with -tags ui).
	uiFS, err := ui.DistFS()
	if err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	if uiFS != nil {
		logger.Info("ui: embedded SPA loaded")
	}

	srv := server.New(server.Config{
		Engine:             engine,
		Store:              store,
		Recorder:           recorder,
		Pool:               pool,
		Logger:             logger,
		Sessions:           sessions,
		Chat:               chatClient,
		SigningSecret:      cfg.SlackSigningSecret,
		DefaultWorkspaceID: cfg.DefaultWorkspaceID,
		Port:               cfg.Port,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		Version:            version,
		UIFS:               uiFS,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		slog.Info("gemrack shutting down")
		httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer httpCancel()
		if err := srv.Shutdown(httpCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
		pool.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("gemrack stopped")
	return nil
}
