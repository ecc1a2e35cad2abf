package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dronewatch-server-go/internal/platform/logging"
	"dronewatch-server-go/internal/platform/observability"
)

// Greeter builds the first message a new client receives.
type Greeter func(ctx context.Context) (Message, bool)

// Router is responsible for upgrading HTTP connections to websocket sessions.
type Router struct {
	hub    *Hub
	logger *logging.Logger

	upgrader         *websocket.Upgrader
	handshakeTimeout time.Duration
	sendQueue        int
	greeter          Greeter
	baseCtx          context.Context
}

// RouterOptions configures the websocket router.
type RouterOptions struct {
	HandshakeTimeout time.Duration
	CheckOrigin      func(r *http.Request) bool
	SendQueue        int
	Greeter          Greeter
	// Context parents every session; cancelling it ends them.
	Context context.Context
}

// NewRouter constructs a websocket router.
func NewRouter(hub *Hub, logger *logging.Logger, opts RouterOptions) *Router {
	upgrader := &websocket.Upgrader{
		CheckOrigin: opts.CheckOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	upgrader.HandshakeTimeout = timeout
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}

	return &Router{
		hub:              hub,
		logger:           logger,
		upgrader:         upgrader,
		handshakeTimeout: timeout,
		sendQueue:        opts.SendQueue,
		greeter:          opts.Greeter,
		baseCtx:          opts.Context,
	}
}

// Handle upgrades the HTTP connection and launches a new websocket session.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	handshakeCtx, cancel := context.WithTimeoutCause(req.Context(), r.handshakeTimeout, ErrHandshakeTimeout)
	defer cancel()

	_, spanEnd := observability.StartSpan(handshakeCtx, "transport.websocket", "handle")
	socket, err := r.upgrader.Upgrade(w, req.WithContext(handshakeCtx), nil)
	spanEnd(err)
	if err != nil {
		r.logger.ErrorTag("WebSocket", "handshake failed: %v", err)
		return
	}

	clientID := req.URL.Query().Get("client-id")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	conn := NewConnection(clientID, socket)
	session := NewSession(r.baseCtx, conn, r.sendQueue, r.logger)
	r.hub.Register(session)
	r.logger.InfoTag("WebSocket", "client connected: id=%s remote=%s", clientID, req.RemoteAddr)

	if r.greeter != nil {
		if msg, ok := r.greeter(session.Context()); ok {
			if payload, err := msg.Encode(); err == nil {
				session.Enqueue(payload)
			}
		}
	}

	go session.Run(func(runErr error) {
		r.hub.Unregister(session.ID())
		if runErr != nil {
			r.logger.WarnTag("WebSocket", "session %s ended: %v", session.ID(), runErr)
			return
		}
		r.logger.InfoTag("WebSocket", "client disconnected: id=%s", session.ID())
	})
}
