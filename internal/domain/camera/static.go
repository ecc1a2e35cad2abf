package camera

import (
	"context"
	"sync"
	"sync/atomic"

	"dronewatch-server-go/internal/domain/detection"
)

// Static serves a fixed sequence of frames from memory. It backs tests and
// demos that run without a physical camera.
type Static struct {
	AcquireErr error

	mu       sync.Mutex
	frames   []detection.Frame
	readErrs []error
	next     int
	acquired bool

	Acquires atomic.Int32
	Releases atomic.Int32
}

// NewStatic cycles through frames; an empty list yields ErrFrameNotReady.
func NewStatic(frames ...detection.Frame) *Static {
	return &Static{frames: frames}
}

// FailNext queues errors returned by the next ReadFrame calls, in order.
func (s *Static) FailNext(errs ...error) {
	s.mu.Lock()
	s.readErrs = append(s.readErrs, errs...)
	s.mu.Unlock()
}

func (s *Static) Name() string { return "static" }

func (s *Static) Acquire(context.Context) error {
	s.Acquires.Add(1)
	if s.AcquireErr != nil {
		return s.AcquireErr
	}
	s.mu.Lock()
	s.acquired = true
	s.mu.Unlock()
	return nil
}

func (s *Static) ReadFrame(context.Context) (detection.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acquired {
		return detection.Frame{}, ErrNotAcquired
	}
	if len(s.readErrs) > 0 {
		err := s.readErrs[0]
		s.readErrs = s.readErrs[1:]
		return detection.Frame{}, err
	}
	if len(s.frames) == 0 {
		return detection.Frame{}, ErrFrameNotReady
	}
	frame := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return frame, nil
}

func (s *Static) Release() error {
	s.Releases.Add(1)
	s.mu.Lock()
	s.acquired = false
	s.mu.Unlock()
	return nil
}

// Acquired reports whether the camera is currently held.
func (s *Static) Acquired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}
