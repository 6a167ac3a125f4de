package config

import (
	"context"
	"log/slog"
	"os"
)

var currentConfig *Config

type loggerKey struct{}

// SetCurrentConfig stores the loaded configuration for commands that
// cannot reach the root command's context.
func SetCurrentConfig(cfg *Config) {
	currentConfig = cfg
}

// GetCurrentConfig returns the configuration loaded by the last
// LoadConfig call, or nil before any load.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger stores the logger in a context. Commands retrieve it with
// GetLogger, which avoids an import cycle with the cli package.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from a command context, falling back
// to a discard logger.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// NewLogger builds the CLI logger. Output is discarded unless verbose
// mode is on, in which case debug-level records go to stderr.
func NewLogger(verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
