// Package ctxlog threads a *slog.Logger through a context.Context so that
// deeply nested steps, workers, and helpers can log with the run's
// configured level/format without a logger parameter on every signature.
package ctxlog

import (
	"context"
	"log/slog"
)

type key struct{}

var loggerKey = key{}

// WithLogger returns a child context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger embedded in ctx, or slog.Default() if the
// run never attached one (e.g. a helper invoked directly from a test).
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
