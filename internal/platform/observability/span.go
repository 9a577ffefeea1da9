package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var (
	spanMu  sync.RWMutex
	spanLog *slog.Logger
)

// SetLogger installs the logger used for span and metric reporting.
// Until it is called, spans are no-ops.
func SetLogger(logger *slog.Logger) {
	spanMu.Lock()
	spanLog = logger
	spanMu.Unlock()
}

func currentLogger() *slog.Logger {
	spanMu.RLock()
	defer spanMu.RUnlock()
	return spanLog
}

// StartSpan records a lightweight span around a lifecycle operation. The
// returned func closes the span; pass it the operation's error.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger := currentLogger()
	if logger == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "span start",
		slog.String("component", component),
		slog.String("operation", operation),
	)

	return ctx, func(err error) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		logger.LogAttrs(ctx, level, "span end", attrs...)
	}
}
