package sampler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dronewatch-server-go/internal/domain/camera"
	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
	"dronewatch-server-go/internal/platform/observability"
)

const (
	MinSensitivity = 1
	MaxSensitivity = 10
	minInterval    = time.Second
)

// IntervalForSensitivity maps sensitivity to max(11000-1000*s, 1000) ms.
// Values below MinSensitivity are treated as MinSensitivity.
func IntervalForSensitivity(s int) time.Duration {
	if s < MinSensitivity {
		s = MinSensitivity
	}
	interval := time.Duration(11000-1000*s) * time.Millisecond
	if interval < minInterval {
		return minInterval
	}
	return interval
}

// CaptureFunc produces the frame for one tick.
type CaptureFunc func(ctx context.Context) (detection.Frame, error)

// DetectFunc handles one captured frame.
type DetectFunc func(ctx context.Context, frame detection.Frame)

// Ticker is the periodic tick source.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// State reports the sampler's current state.
type State struct {
	Active   bool          `json:"active"`
	Interval time.Duration `json:"interval"`
	InFlight bool          `json:"inFlight"`
}

// Stats counts what the sampler did since it was created.
type Stats struct {
	Ticks           uint64 `json:"ticks"`
	DroppedTicks    uint64 `json:"droppedTicks"`
	Rounds          uint64 `json:"rounds"`
	CaptureFailures uint64 `json:"captureFailures"`
}

// Options configures a Sampler.
type Options struct {
	Logger  *logging.Logger
	Metrics *observability.Metrics
	// Context parents every round. Stop does not cancel it, so an in-flight
	// round always runs to completion.
	Context   context.Context
	NewTicker func(time.Duration) Ticker
}

// Sampler fires capture+detect rounds on a fixed period. A tick that finds a
// round still in flight is dropped, never queued.
type Sampler struct {
	logger    *logging.Logger
	metrics   *observability.Metrics
	baseCtx   context.Context
	newTicker func(time.Duration) Ticker

	mu       sync.Mutex
	active   bool
	interval time.Duration
	stopCh   chan struct{}
	loopDone chan struct{}

	inFlight atomic.Bool
	rounds   sync.WaitGroup

	ticks           atomic.Uint64
	droppedTicks    atomic.Uint64
	completedRounds atomic.Uint64
	captureFailures atomic.Uint64
}

// New creates an inactive sampler.
func New(opts Options) *Sampler {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	return &Sampler{
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		baseCtx:   opts.Context,
		newTicker: opts.NewTicker,
	}
}

// Start begins ticking every interval. Starting an active sampler replaces its timer.
func (s *Sampler) Start(interval time.Duration, capture CaptureFunc, detect DetectFunc) error {
	if interval <= 0 {
		return errors.New(errors.KindConfig, "sampler.start", fmt.Sprintf("interval must be positive, got %s", interval))
	}
	if capture == nil || detect == nil {
		return errors.New(errors.KindConfig, "sampler.start", "capture and detect functions are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.stopLocked()
	}

	ticker := s.newTicker(interval)
	stopCh := make(chan struct{})
	loopDone := make(chan struct{})
	s.active = true
	s.interval = interval
	s.stopCh = stopCh
	s.loopDone = loopDone

	go s.loop(ticker, stopCh, loopDone, capture, detect)
	s.logger.InfoTag("SAMPLER", "sampling started: interval=%s", interval)
	return nil
}

// Stop cancels future ticks. A round already in flight completes. Idempotent.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.stopLocked()
	s.logger.InfoTag("SAMPLER", "sampling stopped")
}

func (s *Sampler) stopLocked() {
	close(s.stopCh)
	<-s.loopDone
	s.active = false
	s.stopCh = nil
	s.loopDone = nil
}

// Wait blocks until no round is in flight. Call it after Stop.
func (s *Sampler) Wait() {
	s.rounds.Wait()
}

// State snapshots the sampler state.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Active:   s.active,
		Interval: s.interval,
		InFlight: s.inFlight.Load(),
	}
}

// Stats snapshots the counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Ticks:           s.ticks.Load(),
		DroppedTicks:    s.droppedTicks.Load(),
		Rounds:          s.completedRounds.Load(),
		CaptureFailures: s.captureFailures.Load(),
	}
}

// TryRound runs fn under the same in-flight guard as ticks. It reports false
// without calling fn when a round is already in flight.
func (s *Sampler) TryRound(fn func()) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}
	s.rounds.Add(1)
	defer s.rounds.Done()
	defer s.inFlight.Store(false)
	fn()
	return true
}

func (s *Sampler) loop(ticker Ticker, stopCh <-chan struct{}, done chan<- struct{}, capture CaptureFunc, detect DetectFunc) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C():
			s.tick(capture, detect)
		}
	}
}

func (s *Sampler) tick(capture CaptureFunc, detect DetectFunc) {
	s.ticks.Add(1)
	if s.metrics != nil {
		s.metrics.Ticks.Inc()
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		s.droppedTicks.Add(1)
		if s.metrics != nil {
			s.metrics.DroppedTicks.Inc()
		}
		s.logger.DebugTag("SAMPLER", "tick dropped: round still in flight")
		return
	}

	s.rounds.Add(1)
	go func() {
		defer s.rounds.Done()
		defer s.inFlight.Store(false)
		s.round(capture, detect)
	}()
}

func (s *Sampler) round(capture CaptureFunc, detect DetectFunc) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorTag("SAMPLER", "detection round panicked: %v", r)
		}
	}()

	ctx := s.baseCtx
	frame, err := capture(ctx)
	if err != nil {
		s.captureFailures.Add(1)
		if s.metrics != nil {
			s.metrics.CaptureFailures.Inc()
		}
		if stderrors.Is(err, camera.ErrFrameNotReady) {
			s.logger.DebugTag("SAMPLER", "tick skipped: %v", err)
		} else {
			s.logger.WarnTag("SAMPLER", "tick skipped, capture failed: %v", err)
		}
		return
	}

	detect(ctx, frame)
	s.completedRounds.Add(1)
}
