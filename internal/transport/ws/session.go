package ws

import (
	"context"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"dronewatch-server-go/internal/platform/logging"
)

const defaultSendQueue = 64

// Session pushes queued messages to one client and watches it for disconnects.
type Session struct {
	id     string
	conn   *Connection
	logger *logging.Logger
	send   chan []byte

	ctx    context.Context
	cancel context.CancelCauseFunc

	closed atomic.Bool
}

// NewSession constructs a managed websocket session.
func NewSession(parent context.Context, conn *Connection, queue int, logger *logging.Logger) *Session {
	if queue <= 0 {
		queue = defaultSendQueue
	}
	sessionCtx, cancel := context.WithCancelCause(parent)
	return &Session{
		id:     conn.ID(),
		conn:   conn,
		logger: logger,
		send:   make(chan []byte, queue),
		ctx:    sessionCtx,
		cancel: cancel,
	}
}

// Context returns the session context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// ID exposes the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Enqueue queues payload without blocking. A full queue closes the session.
func (s *Session) Enqueue(payload []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		s.logger.WarnTag("WebSocket", "session %s queue full, closing", s.id)
		go s.Close(ErrSlowConsumer)
		return false
	}
}

// Run pumps outbound messages until the client goes away or the session is
// closed, then invokes onDone.
func (s *Session) Run(onDone func(error)) {
	readDone := make(chan error, 1)
	go s.readLoop(readDone)

	var runErr error
	defer func() {
		s.Close(runErr)
		if onDone != nil {
			onDone(runErr)
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case err := <-readDone:
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.conn.IsClosed() {
				runErr = err
			}
			return
		case payload := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				runErr = err
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed.
func (s *Session) readLoop(done chan<- error) {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			done <- err
			return
		}
	}
}

// Close attempts to gracefully terminate the session.
func (s *Session) Close(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel(reason)
	if err := s.conn.Close(); err != nil {
		s.logger.WarnTag("WebSocket", "session %s connection close failed: %v", s.id, err)
	}
}
