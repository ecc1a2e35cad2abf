package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpanLogsNestedSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	shutdown, err := Setup(context.Background(), Config{Enabled: true}, logger)
	require.NoError(t, err)
	defer shutdown(context.Background())

	outerCtx, endOuter := StartSpan(context.Background(), "detection", "classify", slog.String("backend", "fake"))
	outer := SpanID(outerCtx)
	require.NotEmpty(t, outer)

	innerCtx, endInner := StartSpan(outerCtx, "backend", "complete")
	assert.NotEqual(t, outer, SpanID(innerCtx))
	endInner(errors.New("timeout"))
	endOuter(nil)

	out := buf.String()
	assert.Contains(t, out, "backend=fake")
	assert.Contains(t, out, "parent="+outer)
	assert.Contains(t, out, `error=timeout`)
	assert.Equal(t, 2, strings.Count(out, "span end"))
}

func TestSpanDisabledAfterShutdown(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	shutdown, err := Setup(context.Background(), Config{Enabled: true}, logger)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	buf.Reset()

	ctx, end := StartSpan(context.Background(), "http.server", "/api/status")
	end(nil)
	assert.Empty(t, SpanID(ctx))
	assert.Empty(t, buf.String())
}
