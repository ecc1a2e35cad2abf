package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/image"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
)

var frameExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// Directory replays the image files of a directory in name order, looping.
type Directory struct {
	dir      string
	pipeline *image.Pipeline
	logger   *logging.Logger

	mu    sync.Mutex
	files []string
	next  int
}

// NewDirectory returns an unacquired directory camera.
func NewDirectory(dir string, pipeline *image.Pipeline, logger *logging.Logger) (*Directory, error) {
	if dir == "" {
		return nil, errors.New(errors.KindConfig, "camera.directory", "directory is required")
	}
	if pipeline == nil {
		return nil, errors.New(errors.KindConfig, "camera.directory", "frame pipeline is required")
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Directory{dir: dir, pipeline: pipeline, logger: logger}, nil
}

func (d *Directory) Name() string { return "directory" }

// Acquire lists the frames to replay.
func (d *Directory) Acquire(ctx context.Context) error {
	entries, err := os.ReadDir(d.dir)
	switch {
	case os.IsPermission(err):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(d.dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no image files in %s", ErrNoDevice, d.dir)
	}
	sort.Strings(files)

	d.mu.Lock()
	d.files = files
	d.next = 0
	d.mu.Unlock()
	d.logger.InfoTag("CAMERA", "directory camera acquired: dir=%s frames=%d", d.dir, len(files))
	return nil
}

// ReadFrame returns the next file as a frame.
func (d *Directory) ReadFrame(ctx context.Context) (detection.Frame, error) {
	d.mu.Lock()
	if len(d.files) == 0 {
		d.mu.Unlock()
		return detection.Frame{}, ErrNotAcquired
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return detection.Frame{}, fmt.Errorf("%w: %v", ErrFrameNotReady, err)
	}
	defer f.Close()

	frame, err := d.pipeline.Process(ctx, image.Input{
		Reader:         f,
		DeclaredFormat: strings.TrimPrefix(filepath.Ext(path), "."),
		Source:         path,
	})
	if err != nil {
		return detection.Frame{}, errors.Wrap(errors.KindCapture, "camera.directory.read", "invalid frame file", err)
	}
	return frame, nil
}

// Release forgets the file list.
func (d *Directory) Release() error {
	d.mu.Lock()
	released := len(d.files) > 0
	d.files = nil
	d.next = 0
	d.mu.Unlock()
	if released {
		d.logger.InfoTag("CAMERA", "directory camera released")
	}
	return nil
}
