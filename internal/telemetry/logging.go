// Package telemetry provides structured logging and Prometheus metrics for
// the collector, adapted from bronze-copier's internal/logging and
// internal/metrics packages to this specification's cycle/stage/category
// dimensions in place of bronze-copier's partition/ledger dimensions.
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// LogConfig holds logging configuration, matching the ambient config
// surface's `logging.format`/`logging.level` keys.
type LogConfig struct {
	Format string // "json" | "text"
	Level  string // "debug" | "info" | "warn" | "error"
}

// Setup initializes and returns the root logger, and installs it as the
// slog default so packages that call slog.Default() pick it up.
func Setup(cfg LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation ID (the cycleId, by convention)
// to ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID retrieves the correlation ID from ctx, if any.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateCorrelationID creates a random per-run correlation ID, used when
// no cycleId is available yet (e.g. logging config load failures).
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// CycleLogger scopes a logger to one collection cycle.
func CycleLogger(cycleID, region string) *slog.Logger {
	return slog.With("cycle_id", cycleID, "region", region)
}

// StageLogger scopes a logger to one pipeline stage within a cycle.
func StageLogger(cycleID, stage string) *slog.Logger {
	return slog.With("cycle_id", cycleID, "stage", stage)
}

// Component returns a logger tagged with a component name, for packages
// that construct their own child logger (registry, checkpoint, riot client).
func Component(name string) *slog.Logger {
	return slog.With("component", name)
}
