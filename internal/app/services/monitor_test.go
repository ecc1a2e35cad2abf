package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch-server-go/internal/domain/camera"
	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/eventbus"
	"dronewatch-server-go/internal/domain/events"
	"dronewatch-server-go/internal/domain/sampler"
	"dronewatch-server-go/internal/platform/errors"
	platformtesting "dronewatch-server-go/internal/platform/testing"
)

type manualTicker struct{ ch chan time.Time }

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

type tickers struct {
	mu        sync.Mutex
	all       []*manualTicker
	intervals []time.Duration
}

func (f *tickers) New(d time.Duration) sampler.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	f.all = append(f.all, t)
	f.intervals = append(f.intervals, d)
	return t
}

func (f *tickers) fire(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	last := f.all[len(f.all)-1]
	f.mu.Unlock()
	select {
	case last.ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("sampler did not take the tick")
	}
}

// scriptedBackend answers from replies in order. The first call waits on gate
// when it is set.
type scriptedBackend struct {
	mu      sync.Mutex
	replies []string
	gate    chan struct{}
	calls   atomic.Int32
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Complete(ctx context.Context, _ detection.Request) (string, error) {
	if b.calls.Add(1) == 1 && b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	reply := b.replies[0]
	if len(b.replies) > 1 {
		b.replies = b.replies[1:]
	}
	return reply, nil
}

type harness struct {
	svc     *MonitorService
	cam     *camera.Static
	ticks   *tickers
	sampler *sampler.Sampler
	store   events.Store
	bus     *eventbus.Bus

	mu     sync.Mutex
	alerts []eventbus.AlertData
	states []eventbus.MonitorStateData
}

func newHarness(t *testing.T, ctx context.Context, backend detection.Backend) *harness {
	t.Helper()
	logger := platformtesting.SetupTestLogger(t)
	h := &harness{
		cam:   camera.NewStatic(detection.Frame{Data: []byte{0xff, 0xd8, 0xff}, Format: "jpeg"}),
		ticks: &tickers{},
		store: events.NewMemory(events.DefaultCapacity, nil),
		bus:   eventbus.New(eventbus.Options{Logger: logger}),
	}
	h.sampler = sampler.New(sampler.Options{NewTicker: h.ticks.New})

	client, err := detection.NewClient(detection.Options{Backend: backend, Timeout: 5 * time.Second})
	require.NoError(t, err)

	require.NoError(t, h.bus.Subscribe(eventbus.TopicAlert, func(a eventbus.AlertData) {
		h.mu.Lock()
		h.alerts = append(h.alerts, a)
		h.mu.Unlock()
	}))
	require.NoError(t, h.bus.Subscribe(eventbus.TopicMonitorState, func(s eventbus.MonitorStateData) {
		h.mu.Lock()
		h.states = append(h.states, s)
		h.mu.Unlock()
	}))

	h.svc, err = NewMonitorService(MonitorOptions{
		Context:    ctx,
		Camera:     h.cam,
		Classifier: client,
		Store:      h.store,
		Bus:        h.bus,
		Sampler:    h.sampler,
		Logger:     logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = h.svc.Close(context.Background())
		h.bus.Stop()
	})
	return h
}

func (h *harness) alertCount() int {
	h.bus.Flush()
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.alerts)
}

func TestMonitorEndToEnd(t *testing.T) {
	backend := &scriptedBackend{
		gate: make(chan struct{}),
		replies: []string{
			"```json\n{\"droneDetected\": true, \"objectType\": \"drone\", \"explanation\": \"Quadcopter shape\"}\n```",
			`{"droneDetected": false, "objectType": "none", "explanation": "Empty sky"}`,
		},
	}
	h := newHarness(t, context.Background(), backend)
	ctx := context.Background()

	require.NoError(t, h.svc.Start(ctx, 5))
	assert.Equal(t, []time.Duration{6 * time.Second}, h.ticks.intervals)
	assert.True(t, h.cam.Acquired())

	// first round blocks in the backend
	h.ticks.fire(t)
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// second tick finds the round in flight
	h.ticks.fire(t)
	require.Eventually(t, func() bool { return h.sampler.Stats().DroppedTicks == 1 }, time.Second, 5*time.Millisecond)

	close(backend.gate)
	require.Eventually(t, func() bool {
		n, _ := h.store.Len(ctx)
		return n == 1 && !h.sampler.State().InFlight
	}, time.Second, 5*time.Millisecond)

	h.ticks.fire(t)
	require.Eventually(t, func() bool { return h.sampler.Stats().Rounds == 2 }, time.Second, 5*time.Millisecond)

	list, err := h.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, detection.ObjectDrone, list[0].ObjectType)
	assert.Equal(t, "Quadcopter shape", list[0].Explanation)
	assert.NotEmpty(t, list[0].FrameDataURI)
	assert.Equal(t, int32(2), backend.calls.Load())
	assert.Equal(t, 1, h.alertCount())

	status := h.svc.Status(ctx)
	assert.True(t, status.Active)
	assert.Equal(t, int64(6000), status.IntervalMS)
	assert.Equal(t, 1, status.Events)
	assert.Equal(t, uint64(3), status.Sampler.Ticks)

	h.svc.Stop()
	assert.False(t, h.cam.Acquired())
	assert.False(t, h.svc.Status(ctx).Active)
}

func TestMonitorStartValidation(t *testing.T) {
	h := newHarness(t, context.Background(), &scriptedBackend{replies: []string{`{"objectType":"none"}`}})
	ctx := context.Background()

	for _, s := range []int{-1, 11} {
		err := h.svc.Start(ctx, s)
		require.Error(t, err, "sensitivity %d", s)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	}
	assert.Equal(t, int32(0), h.cam.Acquires.Load(), "camera untouched on invalid config")

	require.NoError(t, h.svc.Start(ctx, 0), "zero keeps the configured sensitivity")
	assert.Equal(t, 5, h.svc.Status(ctx).Sensitivity)
	assert.ErrorIs(t, h.svc.Start(ctx, 3), ErrMonitorActive)
}

func TestMonitorSensitivityLockedWhileActive(t *testing.T) {
	h := newHarness(t, context.Background(), &scriptedBackend{replies: []string{`{"objectType":"none"}`}})
	ctx := context.Background()

	require.NoError(t, h.svc.SetSensitivity(9))
	assert.Equal(t, int64(2000), h.svc.Status(ctx).IntervalMS)
	assert.ErrorIs(t, h.svc.SetSensitivity(0), errors.ErrInvalidConfig)

	require.NoError(t, h.svc.Start(ctx, 0))
	assert.Equal(t, []time.Duration{2 * time.Second}, h.ticks.intervals)
	assert.ErrorIs(t, h.svc.SetSensitivity(3), ErrMonitorActive)

	h.svc.Stop()
	require.NoError(t, h.svc.SetSensitivity(3))
}

func TestMonitorCameraUnavailable(t *testing.T) {
	h := newHarness(t, context.Background(), &scriptedBackend{replies: []string{`{"objectType":"none"}`}})
	h.cam.AcquireErr = camera.ErrPermissionDenied

	err := h.svc.Start(context.Background(), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, camera.ErrPermissionDenied)
	assert.True(t, errors.IsKind(err, errors.KindCapture))
	assert.False(t, h.svc.Status(context.Background()).Active)
	assert.Empty(t, h.ticks.intervals, "sampler never started")
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, ctx, &scriptedBackend{replies: []string{`{"objectType":"none"}`}})

	require.NoError(t, h.svc.Start(context.Background(), 5))
	cancel()

	require.Eventually(t, func() bool {
		return !h.svc.Status(context.Background()).Active
	}, time.Second, 5*time.Millisecond)
	assert.False(t, h.cam.Acquired())

	err := h.svc.Start(context.Background(), 5)
	assert.True(t, errors.IsKind(err, errors.KindDomain))

	h.bus.Flush()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.states, 2)
	assert.True(t, h.states[0].Active)
	assert.Equal(t, "shutdown", h.states[1].Reason)
}

func TestMonitorStopIsIdempotentAndLetsRoundFinish(t *testing.T) {
	backend := &scriptedBackend{
		gate:    make(chan struct{}),
		replies: []string{`{"objectType":"bird","explanation":"gull"}`},
	}
	h := newHarness(t, context.Background(), backend)
	ctx := context.Background()

	require.NoError(t, h.svc.Start(ctx, 10))
	h.ticks.fire(t)
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	h.svc.Stop()
	h.svc.Stop()
	assert.Equal(t, int32(1), h.cam.Releases.Load())

	close(backend.gate)
	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, h.svc.Close(closeCtx))

	n, err := h.store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "in-flight round still records its event")
	assert.Equal(t, 0, h.alertCount(), "bird is logged without an alert")
}

func TestProcessFrame(t *testing.T) {
	h := newHarness(t, context.Background(), &scriptedBackend{replies: []string{
		`{"droneDetected": false, "objectType": "drone", "explanation": "rotor arms"}`,
		`not json at all`,
	}})
	ctx := context.Background()
	frame := detection.Frame{Data: []byte("img"), Format: "png"}

	round := h.svc.ProcessFrame(ctx, frame)
	assert.True(t, round.Result.DroneDetected, "flag follows the object type")
	require.NotNil(t, round.Event)
	assert.True(t, round.Alerted)

	round = h.svc.ProcessFrame(ctx, frame)
	assert.Equal(t, detection.ObjectError, round.Result.ObjectType)
	assert.Nil(t, round.Event)
	assert.False(t, round.Alerted)

	n, _ := h.store.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestClassifyUploadWaitsForIdleSampler(t *testing.T) {
	backend := &scriptedBackend{
		gate:    make(chan struct{}),
		replies: []string{`{"objectType": "bird", "explanation": "flapping wings"}`},
	}
	h := newHarness(t, context.Background(), backend)
	ctx := context.Background()
	frame := detection.Frame{Data: []byte("img"), Format: "png"}

	require.NoError(t, h.svc.Start(ctx, 10))
	h.ticks.fire(t)
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := h.svc.ClassifyUpload(ctx, frame)
	require.ErrorIs(t, err, ErrRoundInFlight)
	assert.Equal(t, int32(1), backend.calls.Load(), "upload must not reach the backend while busy")

	close(backend.gate)
	require.Eventually(t, func() bool { return !h.sampler.State().InFlight }, time.Second, 5*time.Millisecond)

	round, err := h.svc.ClassifyUpload(ctx, frame)
	require.NoError(t, err)
	assert.Equal(t, detection.ObjectBird, round.Result.ObjectType)
	require.NotNil(t, round.Event)
	assert.False(t, h.sampler.State().InFlight)

	n, _ := h.store.Len(ctx)
	assert.Equal(t, 2, n)
}

func TestNewMonitorServiceValidation(t *testing.T) {
	_, err := NewMonitorService(MonitorOptions{})
	assert.True(t, errors.IsKind(err, errors.KindConfig))

	_, err = NewMonitorService(MonitorOptions{
		Camera: camera.NewStatic(),
		Classifier: classifierFunc(func(context.Context, detection.Frame) detection.ClassificationResult {
			return detection.ClassificationResult{}
		}),
		Store:       events.NewMemory(1, nil),
		Sensitivity: 12,
	})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

type classifierFunc func(context.Context, detection.Frame) detection.ClassificationResult

func (f classifierFunc) Classify(ctx context.Context, frame detection.Frame) detection.ClassificationResult {
	return f(ctx, frame)
}
