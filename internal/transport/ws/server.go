package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/eventbus"
	"dronewatch-server-go/internal/platform/logging"
)

// Message types pushed to dashboard clients.
const (
	TypeHello = "hello"
	TypeEvent = "event"
	TypeAlert = "alert"
	TypeDebug = "debug"
	TypeState = "state"
)

// Message is the envelope of every pushed frame.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Encode renders the message as JSON.
func (m Message) Encode() ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return sonic.Marshal(m)
}

// Subscriber is the part of the event bus the server listens on.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
	Unsubscribe(topic string, fn interface{}) error
}

// ServerConfig stores the settings of the websocket push channel.
type ServerConfig struct {
	HandshakeTimeout time.Duration
	SendQueue        int
	Greeter          Greeter
}

// Server relays pipeline notifications from the event bus to every connected
// dashboard client.
type Server struct {
	hub    *Hub
	router *Router
	bus    Subscriber
	logger *logging.Logger

	handlers map[string]interface{}
}

// NewServer builds the push server. Sessions end when ctx does.
func NewServer(ctx context.Context, cfg ServerConfig, bus Subscriber, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	hub := NewHub()
	s := &Server{
		hub: hub,
		router: NewRouter(hub, logger, RouterOptions{
			HandshakeTimeout: cfg.HandshakeTimeout,
			SendQueue:        cfg.SendQueue,
			Greeter:          cfg.Greeter,
			Context:          ctx,
		}),
		bus:    bus,
		logger: logger,
	}
	s.handlers = map[string]interface{}{
		eventbus.TopicEventRecorded: func(e detection.Event) { s.broadcast(TypeEvent, e) },
		eventbus.TopicAlert:         func(a eventbus.AlertData) { s.broadcast(TypeAlert, a) },
		eventbus.TopicDebug:         func(d detection.DebugEntry) { s.broadcast(TypeDebug, d) },
		eventbus.TopicMonitorState:  func(st eventbus.MonitorStateData) { s.broadcast(TypeState, st) },
	}
	return s
}

// Handler upgrades requests onto the push channel.
func (s *Server) Handler() http.HandlerFunc {
	return s.router.Handle
}

// Start subscribes to the bus topics.
func (s *Server) Start() error {
	for topic, fn := range s.handlers {
		if err := s.bus.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	s.logger.InfoTag("WebSocket", "push channel subscribed to %d topics", len(s.handlers))
	return nil
}

// Stop unsubscribes and closes every session.
func (s *Server) Stop() {
	for topic, fn := range s.handlers {
		_ = s.bus.Unsubscribe(topic, fn)
	}
	s.hub.CloseAll(ErrSessionShutdown)
}

// Count exposes the number of connected clients.
func (s *Server) Count() int {
	return s.hub.Count()
}

func (s *Server) broadcast(kind string, data interface{}) {
	payload, err := Message{Type: kind, Data: data}.Encode()
	if err != nil {
		s.logger.ErrorTag("WebSocket", "encode %s message failed: %v", kind, err)
		return
	}
	s.hub.Broadcast(payload)
}
