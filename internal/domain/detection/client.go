package detection

import (
	"context"
	"fmt"
	"time"

	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
	"dronewatch-server-go/internal/platform/observability"
)

// DefaultTimeout bounds one classify call.
const DefaultTimeout = 30 * time.Second

// Request is what a Backend receives for one completion.
type Request struct {
	Instruction string
	Frame       Frame
	Temperature float64
	MaxTokens   int
	// JSON asks the backend for a JSON-only reply where it supports that.
	JSON bool
}

// Backend sends one multimodal prompt to a vision model and returns its raw text.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// DebugEntry is one round as seen by the diagnostic channel.
type DebugEntry struct {
	At      time.Time            `json:"at"`
	Backend string               `json:"backend"`
	Raw     string               `json:"raw,omitempty"`
	Error   string               `json:"error,omitempty"`
	Kind    errors.Kind          `json:"kind,omitempty"`
	Result  ClassificationResult `json:"result"`
	Elapsed time.Duration        `json:"elapsed"`
}

// DebugSink receives the raw backend text and error of every round.
type DebugSink interface {
	Record(entry DebugEntry)
}

// Options configures a Client.
type Options struct {
	Backend     Backend
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	Debug       DebugSink
	Logger      *logging.Logger
	Metrics     *observability.Metrics
}

// Client classifies frames. Classify never returns an error: every failure
// degrades to an "error" result.
type Client struct {
	backend     Backend
	timeout     time.Duration
	temperature float64
	maxTokens   int
	debug       DebugSink
	logger      *logging.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewClient validates options and builds a Client.
func NewClient(opts Options) (*Client, error) {
	if opts.Backend == nil {
		return nil, errors.New(errors.KindConfig, "detection.new_client", "backend is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	return &Client{
		backend:     opts.Backend,
		timeout:     opts.Timeout,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		debug:       opts.Debug,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         time.Now,
	}, nil
}

// Classify sends frame to the backend and validates the reply.
func (c *Client) Classify(ctx context.Context, frame Frame) ClassificationResult {
	ctx, end := observability.StartSpan(ctx, "detection", "classify")
	started := c.now()

	raw, err := c.complete(ctx, Request{
		Instruction: ClassifyInstruction,
		Frame:       frame,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		JSON:        true,
	})

	var result ClassificationResult
	if err == nil {
		var parseErr error
		result, parseErr = ParseResult(raw)
		if parseErr != nil {
			err = errors.Wrap(errors.KindMalformed, "detection.classify", "malformed backend reply", parseErr)
		}
	}
	if err != nil {
		result = Fallback(fmt.Sprintf("Error processing frame: %v", err))
		kind := errors.KindOf(err)
		c.logger.WarnTag("DETECT", "classify degraded to fallback: backend=%s kind=%s err=%v", c.backend.Name(), kind, err)
		if c.metrics != nil {
			c.metrics.BackendFailures.WithLabelValues(string(kind)).Inc()
		}
	} else {
		c.logger.DebugTag("DETECT", "classified frame: object_type=%s drone=%v", result.ObjectType, result.DroneDetected)
	}

	c.emit(DebugEntry{
		At:      started,
		Backend: c.backend.Name(),
		Raw:     raw,
		Error:   errString(err),
		Kind:    kindOrEmpty(err),
		Result:  result,
		Elapsed: c.now().Sub(started),
	})
	end(err)
	return result
}

// complete runs the backend under the timeout budget. A backend that ignores
// ctx is abandoned once the deadline passes.
func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("backend panicked: %v", r)}
			}
		}()
		text, err := c.backend.Complete(ctx, req)
		done <- reply{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return r.text, errors.Wrap(errors.KindBackend, "detection.complete", "backend call failed", r.err)
		}
		return r.text, nil
	case <-ctx.Done():
		return "", errors.Wrap(errors.KindBackend, "detection.complete",
			fmt.Sprintf("backend did not answer within %s", c.timeout), ctx.Err())
	}
}

func (c *Client) emit(entry DebugEntry) {
	if c.debug != nil {
		c.debug.Record(entry)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func kindOrEmpty(err error) errors.Kind {
	if err == nil {
		return ""
	}
	return errors.KindOf(err)
}
