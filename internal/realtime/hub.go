package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/authcore/internal/throttle"
)

// Hub owns the live connections, the shared message throttle, and the
// connect-time gate. HTTP upgrade handling stays with the caller; the hub
// takes ownership of already-upgraded sockets.
type Hub struct {
	throttle *throttle.Throttle
	gate     *throttle.Gate
	logger   *zap.Logger
	newID    func() string

	mu    sync.Mutex
	conns map[string]*Conn
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithIDGenerator overrides the connection ID generator. Used by tests.
func WithIDGenerator(gen func() string) HubOption {
	return func(h *Hub) {
		if gen != nil {
			h.newID = gen
		}
	}
}

// NewHub creates a hub. Nil throttle or gate get defaults.
func NewHub(th *throttle.Throttle, gate *throttle.Gate, logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if th == nil {
		th = throttle.New(logger)
	}
	if gate == nil {
		gate = throttle.NewGate(0, logger)
	}

	h := &Hub{
		throttle: th,
		gate:     gate,
		logger:   logger,
		newID:    uuid.NewString,
		conns:    make(map[string]*Conn),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Accept admits an upgraded websocket connection. When the gate is full the
// socket is closed and ErrTooManyConnections returned; the attempt is never
// queued.
func (h *Hub) Accept(ws *websocket.Conn) (*Conn, error) {
	if !h.gate.TryAcquire() {
		_ = ws.Close()
		return nil, ErrTooManyConnections
	}

	conn := &Conn{
		id:  h.newID(),
		ws:  ws,
		hub: h,
	}

	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()

	h.logger.Debug("connection accepted",
		zap.String("conn_id", conn.id),
	)
	return conn, nil
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close tears down every live connection.
func (h *Hub) Close() error {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}

// remove drops hub state for a closed connection and frees its throttle
// bucket and gate slot.
func (h *Hub) remove(connID string) {
	h.mu.Lock()
	_, ok := h.conns[connID]
	delete(h.conns, connID)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.throttle.Release(connID)
	h.gate.Release()
}
