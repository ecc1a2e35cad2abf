package events

import (
	"context"
	"sync"
	"time"

	"dronewatch-server-go/internal/domain/detection"
)

// memoryStore keeps events in a fixed ring; the newest sits at head-1.
type memoryStore struct {
	mu    sync.RWMutex
	ring  []detection.Event
	head  int
	count int
	now   func() time.Time
}

// NewMemory returns an in-process store holding at most capacity events.
func NewMemory(capacity int, now func() time.Time) Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &memoryStore{
		ring: make([]detection.Event, capacity),
		now:  now,
	}
}

func (s *memoryStore) Record(_ context.Context, result detection.ClassificationResult, frame detection.Frame) (*detection.Event, error) {
	event := buildEvent(result, frame, s.now)
	if event == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring[s.head] = *event
	s.head = (s.head + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
	return event, nil
}

func (s *memoryStore) List(context.Context) ([]detection.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]detection.Event, 0, s.count)
	for i := 1; i <= s.count; i++ {
		out = append(out, s.ring[(s.head-i+len(s.ring))%len(s.ring)])
	}
	return out, nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (detection.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 0; i < s.count; i++ {
		if s.ring[i].ID == id {
			return s.ring[i], nil
		}
	}
	return detection.Event{}, ErrNotFound
}

func (s *memoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, nil
}

func (s *memoryStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ring)
	s.head = 0
	s.count = 0
	return nil
}
