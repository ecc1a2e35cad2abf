package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dronewatch-server-go/internal/domain/alert"
	"dronewatch-server-go/internal/domain/camera"
	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/eventbus"
	"dronewatch-server-go/internal/domain/events"
	"dronewatch-server-go/internal/domain/sampler"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
	"dronewatch-server-go/internal/platform/observability"
)

// ErrMonitorActive rejects operations that need an idle monitor.
var ErrMonitorActive = errors.New(errors.KindDomain, "monitor", "monitoring is active")

// ErrRoundInFlight rejects an upload while a detection round is running.
var ErrRoundInFlight = errors.New(errors.KindDomain, "monitor", "a detection round is in flight")

// Classifier is the detection client as seen by the monitor.
type Classifier interface {
	Classify(ctx context.Context, frame detection.Frame) detection.ClassificationResult
}

// MonitorOptions wires a MonitorService.
type MonitorOptions struct {
	// Context bounds the service lifetime; when it ends monitoring stops.
	Context     context.Context
	Camera      camera.Camera
	Classifier  Classifier
	Store       events.Store
	Dispatcher  *alert.Dispatcher
	Bus         alert.Publisher
	Sampler     *sampler.Sampler
	Sensitivity int
	Logger      *logging.Logger
	Metrics     *observability.Metrics
}

// RoundResult is what one capture and classify round produced.
type RoundResult struct {
	Result  detection.ClassificationResult `json:"result"`
	Event   *detection.Event               `json:"event,omitempty"`
	Alerted bool                           `json:"alerted"`
}

// MonitorStatus 监控状态
type MonitorStatus struct {
	Active      bool          `json:"active"`
	Sensitivity int           `json:"sensitivity"`
	IntervalMS  int64         `json:"intervalMs"`
	InFlight    bool          `json:"inFlight"`
	Camera      string        `json:"camera"`
	Events      int           `json:"events"`
	Sampler     sampler.Stats `json:"sampler"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
}

// MonitorService 负责摄像头采样、分类、事件记录与告警的整个流程
type MonitorService struct {
	rootCtx    context.Context
	camera     camera.Camera
	classifier Classifier
	store      events.Store
	dispatcher *alert.Dispatcher
	bus        alert.Publisher
	sampler    *sampler.Sampler
	logger     *logging.Logger
	metrics    *observability.Metrics

	mu          sync.Mutex
	active      bool
	sensitivity int
	startedAt   time.Time
	runDone     chan struct{}
}

// NewMonitorService validates wiring. Sensitivity defaults to 5.
func NewMonitorService(opts MonitorOptions) (*MonitorService, error) {
	switch {
	case opts.Camera == nil:
		return nil, errors.New(errors.KindConfig, "monitor.new", "camera is required")
	case opts.Classifier == nil:
		return nil, errors.New(errors.KindConfig, "monitor.new", "classifier is required")
	case opts.Store == nil:
		return nil, errors.New(errors.KindConfig, "monitor.new", "event store is required")
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	if opts.Dispatcher == nil && opts.Bus != nil {
		opts.Dispatcher = alert.NewDispatcher(opts.Bus, opts.Logger, opts.Metrics)
	}
	if opts.Sampler == nil {
		opts.Sampler = sampler.New(sampler.Options{
			Logger:  opts.Logger,
			Metrics: opts.Metrics,
			Context: context.WithoutCancel(opts.Context),
		})
	}
	if opts.Sensitivity == 0 {
		opts.Sensitivity = 5
	}
	if err := validateSensitivity(opts.Sensitivity); err != nil {
		return nil, err
	}

	return &MonitorService{
		rootCtx:     opts.Context,
		camera:      opts.Camera,
		classifier:  opts.Classifier,
		store:       opts.Store,
		dispatcher:  opts.Dispatcher,
		bus:         opts.Bus,
		sampler:     opts.Sampler,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		sensitivity: opts.Sensitivity,
	}, nil
}

func validateSensitivity(s int) error {
	if s < sampler.MinSensitivity || s > sampler.MaxSensitivity {
		return errors.New(errors.KindConfig, "monitor.sensitivity",
			fmt.Sprintf("sensitivity must be within %d..%d, got %d", sampler.MinSensitivity, sampler.MaxSensitivity, s))
	}
	return nil
}

// Start acquires the camera and begins sampling. A sensitivity of 0 keeps the
// current value. The camera is released again if sampling cannot start.
func (m *MonitorService) Start(ctx context.Context, sensitivity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return ErrMonitorActive
	}
	if sensitivity == 0 {
		sensitivity = m.sensitivity
	}
	if err := validateSensitivity(sensitivity); err != nil {
		return err
	}
	if err := m.rootCtx.Err(); err != nil {
		return errors.Wrap(errors.KindDomain, "monitor.start", "service is shutting down", err)
	}

	if err := m.camera.Acquire(ctx); err != nil {
		m.logger.WarnTag("MONITOR", "camera unavailable: camera=%s err=%v", m.camera.Name(), err)
		return errors.Wrap(errors.KindCapture, "monitor.start", "camera unavailable", err)
	}

	interval := sampler.IntervalForSensitivity(sensitivity)
	if err := m.sampler.Start(interval, m.capture, m.detect); err != nil {
		m.releaseCamera()
		return err
	}

	m.active = true
	m.sensitivity = sensitivity
	m.startedAt = time.Now()
	m.runDone = make(chan struct{})
	go m.watchShutdown(m.runDone)

	m.logger.InfoTag("MONITOR", "monitoring started: camera=%s sensitivity=%d interval=%s", m.camera.Name(), sensitivity, interval)
	m.publishState("started", interval)
	return nil
}

// watchShutdown stops monitoring when the service context ends.
func (m *MonitorService) watchShutdown(done <-chan struct{}) {
	select {
	case <-m.rootCtx.Done():
		m.stop("shutdown")
	case <-done:
	}
}

// Stop ends sampling and releases the camera. An in-flight round still
// completes and records its event. Idempotent.
func (m *MonitorService) Stop() {
	m.stop("stopped")
}

func (m *MonitorService) stop(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}

	m.sampler.Stop()
	m.releaseCamera()
	m.active = false
	m.startedAt = time.Time{}
	close(m.runDone)
	m.runDone = nil

	m.logger.InfoTag("MONITOR", "monitoring stopped: reason=%s", reason)
	m.publishState(reason, 0)
}

// Close stops monitoring and waits for an in-flight round, bounded by ctx.
func (m *MonitorService) Close(ctx context.Context) error {
	m.stop("shutdown")

	done := make(chan struct{})
	go func() {
		m.sampler.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.KindDomain, "monitor.close", "in-flight round did not finish", ctx.Err())
	}
}

// SetSensitivity changes the sampling rate for the next Start. It is rejected
// while monitoring is active.
func (m *MonitorService) SetSensitivity(s int) error {
	if err := validateSensitivity(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrMonitorActive
	}
	m.sensitivity = s
	return nil
}

// Status reports the current state.
func (m *MonitorService) Status(ctx context.Context) MonitorStatus {
	m.mu.Lock()
	status := MonitorStatus{
		Active:      m.active,
		Sensitivity: m.sensitivity,
		IntervalMS:  sampler.IntervalForSensitivity(m.sensitivity).Milliseconds(),
		Camera:      m.camera.Name(),
	}
	if m.active {
		started := m.startedAt
		status.StartedAt = &started
	}
	m.mu.Unlock()

	state := m.sampler.State()
	status.InFlight = state.InFlight
	status.Sampler = m.sampler.Stats()
	if n, err := m.store.Len(ctx); err == nil {
		status.Events = n
	}
	return status
}

// ProcessFrame runs one classify, record and alert round for frame.
func (m *MonitorService) ProcessFrame(ctx context.Context, frame detection.Frame) RoundResult {
	started := time.Now()
	result := m.classifier.Classify(ctx, frame)

	round := RoundResult{Result: result}
	event, err := m.store.Record(ctx, result, frame)
	if err != nil {
		m.logger.ErrorTag("MONITOR", "record event failed: object_type=%s err=%v", result.ObjectType, err)
	}
	if event != nil {
		round.Event = event
		if m.dispatcher != nil {
			round.Alerted = m.dispatcher.Dispatch(*event)
		}
	}

	if m.metrics != nil {
		m.metrics.ObserveRound(string(result.ObjectType), time.Since(started))
	}
	return round
}

// ClassifyUpload runs ProcessFrame for an externally supplied frame under the
// sampler's in-flight guard, so it never overlaps a sampled round.
func (m *MonitorService) ClassifyUpload(ctx context.Context, frame detection.Frame) (RoundResult, error) {
	var round RoundResult
	if !m.sampler.TryRound(func() { round = m.ProcessFrame(ctx, frame) }) {
		return RoundResult{}, ErrRoundInFlight
	}
	return round, nil
}

func (m *MonitorService) capture(ctx context.Context) (detection.Frame, error) {
	return m.camera.ReadFrame(ctx)
}

func (m *MonitorService) detect(ctx context.Context, frame detection.Frame) {
	m.ProcessFrame(ctx, frame)
}

func (m *MonitorService) releaseCamera() {
	if err := m.camera.Release(); err != nil {
		m.logger.WarnTag("MONITOR", "camera release failed: %v", err)
	}
}

func (m *MonitorService) publishState(reason string, interval time.Duration) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(eventbus.TopicMonitorState, eventbus.MonitorStateData{
		Active:      m.active,
		Sensitivity: m.sensitivity,
		Interval:    interval,
		Reason:      reason,
		At:          time.Now(),
	})
}
