package observability

import (
	"context"
	"log/slog"
	"sync"
)

// Config toggles span logging.
type Config struct {
	Enabled bool
}

// ShutdownFunc detaches whatever Setup installed.
type ShutdownFunc func(context.Context) error

var (
	spanMu     sync.RWMutex
	spanLogger *slog.Logger
	spanConfig Config
)

func currentLogger() (*slog.Logger, Config) {
	spanMu.RLock()
	defer spanMu.RUnlock()
	return spanLogger, spanConfig
}

// Setup routes span lines to logger. Only one installation is active at a
// time; the returned func restores the disabled state.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	spanMu.Lock()
	spanLogger = logger
	spanConfig = cfg
	spanMu.Unlock()

	if logger != nil {
		logger.InfoContext(ctx, "[OBSERVABILITY] span logging configured", slog.Bool("enabled", cfg.Enabled))
	}

	return func(context.Context) error {
		spanMu.Lock()
		defer spanMu.Unlock()
		if spanLogger == logger {
			spanLogger = nil
			spanConfig = Config{}
		}
		return nil
	}, nil
}
