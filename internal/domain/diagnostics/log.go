package diagnostics

import (
	"sync"

	"dronewatch-server-go/internal/domain/detection"
)

// DefaultCapacity bounds the debug log.
const DefaultCapacity = 100

// Publisher forwards entries to live subscribers.
type Publisher interface {
	PublishAsync(topic string, args ...interface{})
}

// Log keeps the most recent raw backend replies, newest first. It implements
// detection.DebugSink.
type Log struct {
	mu       sync.RWMutex
	entries  []detection.DebugEntry
	capacity int

	topic string
	bus   Publisher
}

// NewLog creates a log that optionally republishes every entry on topic.
func NewLog(capacity int, bus Publisher, topic string) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]detection.DebugEntry, 0, capacity),
		capacity: capacity,
		bus:      bus,
		topic:    topic,
	}
}

// Record prepends entry and trims to capacity.
func (l *Log) Record(entry detection.DebugEntry) {
	l.mu.Lock()
	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, detection.DebugEntry{})
	}
	copy(l.entries[1:], l.entries[:len(l.entries)-1])
	l.entries[0] = entry
	l.mu.Unlock()

	if l.bus != nil && l.topic != "" {
		l.bus.PublishAsync(l.topic, entry)
	}
}

// Entries returns a copy, newest first.
func (l *Log) Entries() []detection.DebugEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]detection.DebugEntry(nil), l.entries...)
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = l.entries[:0]
	l.mu.Unlock()
}
