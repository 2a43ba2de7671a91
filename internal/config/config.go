package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type APIConfig struct {
	Addr            string        `env:"SWORDSMITH_API_ADDR" envDefault:":8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	Store           string        `env:"SWORDSMITH_STORE" envDefault:"postgres"`
	CatalogFile     string        `env:"SWORDSMITH_CATALOG_FILE"`
	CatalogCacheTTL time.Duration `env:"SWORDSMITH_CATALOG_CACHE_TTL" envDefault:"1m"`
	JWTSecret       string        `env:"SWORDSMITH_JWT_SECRET"`
	JWTIssuer       string        `env:"SWORDSMITH_JWT_ISSUER"`
	JWTAudience     string        `env:"SWORDSMITH_JWT_AUDIENCE"`
	AdKeysURL       string        `env:"SWORDSMITH_AD_KEYS_URL" envDefault:"https://www.gstatic.com/admob/reward/verifier-keys.json"`
	AdKeysTTL       time.Duration `env:"SWORDSMITH_AD_KEYS_TTL" envDefault:"24h"`
	LogLevel        string        `env:"SWORDSMITH_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SWORDSMITH_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type WorkerConfig struct {
	DatabaseURL string        `env:"DATABASE_URL"`
	ResetEvery  time.Duration `env:"SWORDSMITH_RESET_EVERY" envDefault:"1h"`
	RunOnce     bool          `env:"SWORDSMITH_WORKER_RUN_ONCE"`
	LogLevel    string        `env:"SWORDSMITH_LOG_LEVEL" envDefault:"info"`
}

type AdminConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"SWORDSMITH_JWT_SECRET"`
	JWTIssuer   string `env:"SWORDSMITH_JWT_ISSUER"`
	JWTAudience string `env:"SWORDSMITH_JWT_AUDIENCE"`
	LogLevel    string `env:"SWORDSMITH_LOG_LEVEL" envDefault:"warn"`
}

type CLIConfig struct {
	APIBaseURL string `env:"SW_API_BASE_URL" envDefault:"http://localhost:8080"`
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreMemory:
		if cfg.CatalogFile == "" {
			return cfg, fmt.Errorf("SWORDSMITH_CATALOG_FILE is required with the memory store")
		}
	default:
		return cfg, fmt.Errorf("SWORDSMITH_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return cfg, fmt.Errorf("SWORDSMITH_JWT_SECRET is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ResetEvery <= 0 {
		return cfg, fmt.Errorf("SWORDSMITH_RESET_EVERY must be positive")
	}
	return cfg, nil
}

func LoadAdminFromEnv() (AdminConfig, error) {
	var cfg AdminConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	if err := env.Parse(&cfg); err != nil {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg
}

// LogLevel maps a level name to a slog level, defaulting to info.
func LogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the JSON logger every binary writes to stdout.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: LogLevel(level)}))
}
