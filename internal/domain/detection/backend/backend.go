package backend

import (
	"net/http"
	"strings"
	"time"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
)

const userAgent = "DroneWatch-Vision/1.0"

// New selects the backend named by cfg.Type.
func New(cfg config.BackendConfig, logger *logging.Logger) (detection.Backend, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	switch strings.ToLower(cfg.Type) {
	case "openai":
		return NewOpenAI(cfg, logger)
	case "ollama":
		return NewOllama(cfg, logger, nil)
	default:
		return nil, errors.New(errors.KindConfig, "backend.new", "unsupported backend type: "+cfg.Type)
	}
}

func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = detection.DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
