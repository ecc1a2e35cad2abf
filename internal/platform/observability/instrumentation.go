package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

// SpanID returns the id of the innermost span carried by ctx.
func SpanID(ctx context.Context) string {
	id, _ := ctx.Value(spanKey{}).(string)
	return id
}

// StartSpan logs the start of component/operation and returns a ctx carrying
// the new span id. The returned func logs the end with the elapsed time;
// a non-nil error raises the end line to error level.
func StartSpan(ctx context.Context, component, operation string, attrs ...slog.Attr) (context.Context, func(error)) {
	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return ctx, func(error) {}
	}

	parent := SpanID(ctx)
	id := uuid.NewString()[:8]
	ctx = context.WithValue(ctx, spanKey{}, id)

	base := make([]slog.Attr, 0, len(attrs)+4)
	base = append(base,
		slog.String("span", id),
		slog.String("component", component),
		slog.String("operation", operation),
	)
	if parent != "" {
		base = append(base, slog.String("parent", parent))
	}
	base = append(base, attrs...)

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "span start", base...)

	return ctx, func(err error) {
		level := slog.LevelDebug
		end := append(base[:len(base):len(base)], slog.Duration("duration", time.Since(start)))
		if err != nil {
			level = slog.LevelError
			end = append(end, slog.String("error", err.Error()))
		}
		logger.LogAttrs(ctx, level, "span end", end...)
	}
}
