package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/logger"
)

const streamWriteTimeout = 10 * time.Second

// StreamMessage is one frame pushed to subscribers
type StreamMessage struct {
	Type      string                  `json:"type"` // snapshot | portfolio
	Timestamp time.Time               `json:"timestamp"`
	Payload   *contracts.PortfolioSet `json:"payload"`
}

// Hub fans published portfolio sets out to websocket subscribers.
// It implements contracts.Publisher.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	last    *contracts.PortfolioSet

	// registered runs after a client joins and before its snapshot is sent
	registered func()
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  log,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeHTTP upgrades the connection and keeps it registered until the peer leaves
// GET /ws/portfolio
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	defer h.remove(conn)

	// 스냅샷 전송 전까지 연결 락을 잡아 Publish 프레임이 앞지르지 못하게 한다
	mu := &sync.Mutex{}
	mu.Lock()

	h.mu.Lock()
	h.clients[conn] = mu
	last := h.last
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("clients", total).Debug("Stream client connected")

	if h.registered != nil {
		h.registered()
	}

	ok := true
	if last != nil {
		if data, err := encodeMessage("snapshot", last); err == nil {
			ok = h.writeLocked(conn, data)
		}
	}
	mu.Unlock()

	if !ok {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish broadcasts set to every subscriber; slow or dead peers are dropped
func (h *Hub) Publish(set *contracts.PortfolioSet) {
	if set == nil {
		return
	}

	data, err := encodeMessage("portfolio", set)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode portfolio for stream")
		return
	}

	h.mu.Lock()
	h.last = set
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, mu := range h.clients {
		targets[conn] = mu
	}
	h.mu.Unlock()

	for conn, mu := range targets {
		if !h.write(conn, mu, data) {
			h.remove(conn)
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"run_id":  set.RunID,
		"clients": len(targets),
	}).Debug("Portfolio broadcast")
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

func (h *Hub) write(conn *websocket.Conn, mu *sync.Mutex, data []byte) bool {
	mu.Lock()
	defer mu.Unlock()
	return h.writeLocked(conn, data)
}

// writeLocked expects the connection's write lock to be held
func (h *Hub) writeLocked(conn *websocket.Conn, data []byte) bool {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.WithError(err).Debug("Stream write failed")
		return false
	}
	return true
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()

	if ok {
		conn.Close()
	}
}

func encodeMessage(kind string, set *contracts.PortfolioSet) ([]byte, error) {
	return json.Marshal(StreamMessage{
		Type:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   set,
	})
}
