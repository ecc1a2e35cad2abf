package image

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/logging"
)

const defaultMaxFrameSize = 5 * 1024 * 1024

// Pipeline turns a raw image stream into a validated detection.Frame.
type Pipeline struct {
	validator *Validator
	logger    *logging.Logger
	security  *config.SecurityConfig
	stats     Stats
	now       func() time.Time
}

// Options configures the pipeline.
type Options struct {
	Security *config.SecurityConfig
	Logger   *logging.Logger
}

// Input describes one streamed frame payload.
type Input struct {
	Reader         io.Reader
	DeclaredFormat string
	Source         string
}

// NewPipeline constructs a frame pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Security == nil {
		return nil, fmt.Errorf("security config is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	return &Pipeline{
		validator: NewValidator(opts.Security, opts.Logger),
		logger:    opts.Logger,
		security:  opts.Security,
		now:       time.Now,
	}, nil
}

// Process reads the input up to the size limit, validates it and returns the frame.
func (p *Pipeline) Process(ctx context.Context, input Input) (detection.Frame, error) {
	if input.Reader == nil {
		return detection.Frame{}, fmt.Errorf("frame reader is required")
	}
	if err := ctx.Err(); err != nil {
		return detection.Frame{}, err
	}

	maxSize := p.security.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFrameSize
	}
	limited := &io.LimitedReader{R: input.Reader, N: maxSize + 1}

	buf := bytes.NewBuffer(make([]byte, 0, 32*1024))
	if _, err := io.Copy(buf, limited); err != nil {
		p.stats.Rejected.Add(1)
		return detection.Frame{}, fmt.Errorf("read frame from %s: %w", input.Source, err)
	}
	if limited.N <= 0 {
		p.stats.Rejected.Add(1)
		return detection.Frame{}, fmt.Errorf("frame from %s exceeds maximum size of %d bytes", input.Source, maxSize)
	}

	validation := p.validator.Validate(buf.Bytes(), input.DeclaredFormat)
	if !validation.IsValid {
		p.stats.Rejected.Add(1)
		if validation.SecurityRisk != "" {
			p.stats.Flagged.Add(1)
		}
		if validation.Error == nil {
			validation.Error = fmt.Errorf("frame validation failed")
		}
		return detection.Frame{}, validation.Error
	}

	p.stats.Processed.Add(1)
	p.logger.DebugTag("FRAME", "accepted frame: source=%s format=%s size=%dx%d bytes=%d",
		input.Source, validation.Format, validation.Width, validation.Height, validation.FileSize)

	return detection.Frame{
		Data:       buf.Bytes(),
		Format:     validation.Format,
		Width:      validation.Width,
		Height:     validation.Height,
		CapturedAt: p.now(),
	}, nil
}

// Stats reports how many frames were accepted and rejected.
func (p *Pipeline) Stats() Snapshot {
	return p.stats.snapshot()
}
