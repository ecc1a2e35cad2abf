package eventbus

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"dronewatch-server-go/internal/platform/logging"
)

const (
	defaultWorkers   = 1
	defaultQueueSize = 1000
)

// Bus 事件总线: synchronous publish plus bounded worker lanes for async publish.
// Every topic is pinned to one lane, so async events of a topic are delivered
// in publish order.
type Bus struct {
	bus    evbus.Bus
	logger *logging.Logger

	lanes   []chan asyncEvent
	wg      sync.WaitGroup
	pending sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
	dropped atomic.Uint64
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// Options configures a Bus.
type Options struct {
	// Workers is the number of delivery lanes. Topics are spread over lanes;
	// ordering holds within a topic only.
	Workers int
	// QueueSize bounds each lane.
	QueueSize int
	Logger    *logging.Logger
}

// New creates a bus and starts its workers.
func New(opts Options) *Bus {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}

	b := &Bus{
		bus:    evbus.New(),
		logger: opts.Logger,
		lanes:  make([]chan asyncEvent, opts.Workers),
	}
	for i := range b.lanes {
		b.lanes[i] = make(chan asyncEvent, opts.QueueSize)
		b.wg.Add(1)
		go b.worker(b.lanes[i])
	}
	return b
}

func (b *Bus) worker(lane <-chan asyncEvent) {
	defer b.wg.Done()
	for event := range lane {
		b.deliver(event)
	}
}

func (b *Bus) lane(topic string) chan asyncEvent {
	if len(b.lanes) == 1 {
		return b.lanes[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return b.lanes[h.Sum32()%uint32(len(b.lanes))]
}

func (b *Bus) deliver(event asyncEvent) {
	defer b.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorTag("EVENTBUS", "subscriber panicked: topic=%s panic=%v", event.topic, r)
		}
	}()
	b.bus.Publish(event.topic, event.args...)
}

// Publish 同步发布事件
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// PublishAsync queues the event; it is dropped when the queue is full or the bus stopped.
func (b *Bus) PublishAsync(topic string, args ...interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return
	}

	b.pending.Add(1)
	select {
	case b.lane(topic) <- asyncEvent{topic: topic, args: args}:
	default:
		b.pending.Done()
		b.dropped.Add(1)
		b.logger.WarnTag("EVENTBUS", "queue full, event dropped: topic=%s", topic)
	}
}

// Subscribe 订阅事件. fn must accept the topic's payload types.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasCallback 检查是否有订阅者
func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Dropped counts async events lost to a full queue.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Flush waits until every queued event has been delivered.
func (b *Bus) Flush() {
	b.pending.Wait()
}

// Stop delivers what is queued and stops the workers. Idempotent.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	for _, lane := range b.lanes {
		close(lane)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
