// Package logging provides the component-scoped slog wrapper used
// throughout this module: one package-level logger per package, tagged
// with the component name, structured key/value fields only.
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	level  = new(slog.LevelVar)
	output = os.Stdout
)

// SetOutput redirects all future component loggers to w. Intended for
// tests; call before constructing loggers.
func SetOutput(w *os.File) {
	mu.Lock()
	defer mu.Unlock()

	output = w
}

// SetLevel adjusts the minimum level for every logger created via Logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Logger returns a *slog.Logger tagged with the given component name.
func Logger(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})

	return slog.New(handler).With("component", component)
}

type contextKey string

const loggerKey contextKey = "dwn-core-logger"

// WithContext attaches logger to ctx for retrieval via FromContext.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger attached by WithContext, falling back
// to an unscoped default logger if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}

	return Logger("unscoped")
}
