// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backend selectors accepted by GEM_STORE_BACKEND.
const (
	BackendAuto     = "auto"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Gem store settings.
	StoreBackend string // "auto", "memory", "postgres", or "sqlite".
	DatabaseURL  string // Postgres URL for the durable backend.
	SQLitePath   string // File path for the sqlite backend.

	// Slack settings.
	SlackBotToken      string
	SlackSigningSecret string

	// Gemini settings.
	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string

	// Admin surface.
	AdminPassword string // Empty disables the admin API entirely.
	SessionSecret string // HMAC secret for admin session tokens.
	SessionTTL    time.Duration

	// Deferred execution worker pool.
	WorkerCount int
	WorkerQueue int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel           string
	Environment        string // "production" forces the durable store in auto mode.
	DefaultWorkspaceID string // Workspace assumed by the web API when none is given.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:               envInt("PORT", 8080),
		ReadTimeout:        envDuration("GEMRACK_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:       envDuration("GEMRACK_WRITE_TIMEOUT", 120*time.Second),
		StoreBackend:       strings.ToLower(envStr("GEM_STORE_BACKEND", BackendAuto)),
		DatabaseURL:        envStr("DATABASE_URL", ""),
		SQLitePath:         envStr("GEMRACK_SQLITE_PATH", "gemrack.db"),
		SlackBotToken:      envStr("SLACK_BOT_TOKEN", ""),
		SlackSigningSecret: envStr("SLACK_SIGNING_SECRET", ""),
		GeminiAPIKey:       envStr("GEMINI_API_KEY", ""),
		GeminiModel:        envStr("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiImageModel:   envStr("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		AdminPassword:      strings.TrimSpace(envStr("ADMIN_PASSWORD", "")),
		SessionSecret:      envStr("GEMRACK_SESSION_SECRET", ""),
		SessionTTL:         envDuration("GEMRACK_SESSION_TTL", 12*time.Hour),
		WorkerCount:        envInt("GEMRACK_WORKER_COUNT", 4),
		WorkerQueue:        envInt("GEMRACK_WORKER_QUEUE", 64),
		OTELEndpoint:       envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:        envStr("OTEL_SERVICE_NAME", "gemrack"),
		LogLevel:           envStr("GEMRACK_LOG_LEVEL", "info"),
		Environment:        envStr("GEMRACK_ENV", ""),
		DefaultWorkspaceID: envStr("GEMRACK_DEFAULT_WORKSPACE", "local"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendAuto, BackendMemory, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("config: GEM_STORE_BACKEND must be auto, memory, postgres, or sqlite (got %q)", c.StoreBackend)
	}
	if c.StoreBackend == BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required with GEM_STORE_BACKEND=postgres")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("config: GEMRACK_WORKER_COUNT must be positive")
	}
	if c.WorkerQueue <= 0 {
		return fmt.Errorf("config: GEMRACK_WORKER_QUEUE must be positive")
	}
	if c.AdminPassword != "" && c.SessionSecret == "" {
		return fmt.Errorf("config: GEMRACK_SESSION_SECRET is required when ADMIN_PASSWORD is set")
	}
	return nil
}

// Production reports whether the process runs in a managed execution
// context where silently losing persistence is unacceptable. Cloud Run
// sets K_SERVICE; explicit GEMRACK_ENV=production covers everything else.
func (c Config) Production() bool {
	return c.Environment == "production" || os.Getenv("K_SERVICE") != ""
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
