package camera

import (
	"context"
	"strings"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/image"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
)

// Capture failures. All of them mean "no frame this tick".
var (
	ErrPermissionDenied = errors.New(errors.KindCapture, "camera", "permission denied")
	ErrNoDevice         = errors.New(errors.KindCapture, "camera", "no camera device")
	ErrFrameNotReady    = errors.New(errors.KindCapture, "camera", "frame not ready")
	ErrNotAcquired      = errors.New(errors.KindCapture, "camera", "camera not acquired")
)

// Camera is an exclusively held frame source.
type Camera interface {
	// Acquire opens the source. It fails with ErrPermissionDenied or ErrNoDevice.
	Acquire(ctx context.Context) error
	// ReadFrame returns the current frame, or ErrFrameNotReady before the first one.
	ReadFrame(ctx context.Context) (detection.Frame, error)
	// Release stops the source. Safe to call more than once.
	Release() error
	Name() string
}

// New builds the camera named by cfg.Type.
func New(cfg config.CameraConfig, logger *logging.Logger) (Camera, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	security := cfg.Security
	pipeline, err := image.NewPipeline(image.Options{Security: &security, Logger: logger})
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, "camera.new", "initialise frame pipeline", err)
	}

	switch strings.ToLower(cfg.Type) {
	case "snapshot":
		return NewSnapshot(SnapshotOptions{
			URL:      cfg.SnapshotURL,
			Timeout:  cfg.Timeout,
			Pipeline: pipeline,
			Logger:   logger,
		})
	case "directory":
		return NewDirectory(cfg.Directory, pipeline, logger)
	default:
		return nil, errors.New(errors.KindConfig, "camera.new", "unsupported camera type: "+cfg.Type)
	}
}
