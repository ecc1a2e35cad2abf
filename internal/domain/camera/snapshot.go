package camera

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/image"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
)

const snapshotUserAgent = "DroneWatch-Camera/1.0"

// SnapshotOptions configures a Snapshot camera.
type SnapshotOptions struct {
	URL      string
	Timeout  time.Duration
	Pipeline *image.Pipeline
	Logger   *logging.Logger
	Client   *http.Client
}

// Snapshot polls an IP camera's still-image URL.
type Snapshot struct {
	url      string
	client   *http.Client
	pipeline *image.Pipeline
	logger   *logging.Logger

	mu       sync.Mutex
	acquired bool
}

// NewSnapshot validates options and returns an unacquired camera.
func NewSnapshot(opts SnapshotOptions) (*Snapshot, error) {
	if opts.URL == "" {
		return nil, errors.New(errors.KindConfig, "camera.snapshot", "snapshot url is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New(errors.KindConfig, "camera.snapshot", "frame pipeline is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	if opts.Client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		opts.Client = &http.Client{Timeout: timeout}
	}
	return &Snapshot{
		url:      opts.URL,
		client:   opts.Client,
		pipeline: opts.Pipeline,
		logger:   opts.Logger,
	}, nil
}

func (s *Snapshot) Name() string { return "snapshot" }

// Acquire probes the URL once so that auth and reachability problems surface at start.
func (s *Snapshot) Acquire(ctx context.Context) error {
	resp, err := s.get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	resp.Body.Close()
	if err := classifyStatus(resp.StatusCode); err != nil && err != ErrFrameNotReady {
		return err
	}

	s.mu.Lock()
	s.acquired = true
	s.mu.Unlock()
	s.logger.InfoTag("CAMERA", "snapshot camera acquired: url=%s", s.url)
	return nil
}

// ReadFrame downloads and validates one snapshot.
func (s *Snapshot) ReadFrame(ctx context.Context) (detection.Frame, error) {
	s.mu.Lock()
	acquired := s.acquired
	s.mu.Unlock()
	if !acquired {
		return detection.Frame{}, ErrNotAcquired
	}

	resp, err := s.get(ctx)
	if err != nil {
		return detection.Frame{}, fmt.Errorf("%w: %v", ErrFrameNotReady, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return detection.Frame{}, err
	}

	frame, err := s.pipeline.Process(ctx, image.Input{
		Reader:         resp.Body,
		DeclaredFormat: image.FormatFromContentType(resp.Header.Get("Content-Type")),
		Source:         s.url,
	})
	if err != nil {
		return detection.Frame{}, errors.Wrap(errors.KindCapture, "camera.snapshot.read", "invalid snapshot", err)
	}
	return frame, nil
}

// Release drops the acquisition and idle connections.
func (s *Snapshot) Release() error {
	s.mu.Lock()
	wasAcquired := s.acquired
	s.acquired = false
	s.mu.Unlock()
	if wasAcquired {
		s.client.CloseIdleConnections()
		s.logger.InfoTag("CAMERA", "snapshot camera released")
	}
	return nil
}

func (s *Snapshot) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", snapshotUserAgent)
	return s.client.Do(req)
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrPermissionDenied
	case code == http.StatusNotFound:
		return ErrNoDevice
	case code == http.StatusServiceUnavailable || code == http.StatusNoContent:
		return ErrFrameNotReady
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrFrameNotReady, code)
	}
}
