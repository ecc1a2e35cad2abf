package detection

import (
	"context"
	"sync"
	"sync/atomic"
)

type fakeBackend struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   atomic.Int32
	block   chan struct{}
	last    Request
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(ctx context.Context, req Request) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return "", nil
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

type collectSink struct {
	mu      sync.Mutex
	entries []DebugEntry
}

func (c *collectSink) Record(entry DebugEntry) {
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

func (c *collectSink) all() []DebugEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DebugEntry(nil), c.entries...)
}
