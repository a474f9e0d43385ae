package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr          string        `env:"TOPOCTL_LISTEN_ADDR" envDefault:":8080"`
	GRPCAddr            string        `env:"TOPOCTL_GRPC_ADDR" envDefault:":9090"`
	DBPath              string        `env:"TOPOCTL_DB_PATH" envDefault:"topoctl.db"`
	LogLevel            string        `env:"TOPOCTL_LOG_LEVEL" envDefault:"info"`
	EngineConfig        string        `env:"TOPOCTL_ENGINE_CONFIG" envDefault:"topoctl.yaml"`
	ProceduresDir       string        `env:"TOPOCTL_PROCEDURES_DIR" envDefault:"procedures"`
	ContinuationWorkers int           `env:"TOPOCTL_CONTINUATION_WORKERS" envDefault:"4"`
	ContinuationQueue   int           `env:"TOPOCTL_CONTINUATION_QUEUE" envDefault:"64"`
	ContinuationTimeout time.Duration `env:"TOPOCTL_CONTINUATION_TIMEOUT" envDefault:"5m"`
	OTelEndpoint        string        `env:"TOPOCTL_OTEL_ENDPOINT"`
	OTelServiceName     string        `env:"TOPOCTL_OTEL_SERVICE_NAME" envDefault:"topoctl"`
}

// Load reads configuration from environment variables with defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Level returns the parsed log level.
func (c Config) Level() slog.Level {
	return ParseLogLevel(c.LogLevel)
}

// ParseLogLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
