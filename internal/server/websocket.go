package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gridsight/gridsight-ai/internal/metrics"
)

// defaultOrigins are the development frontend origins accepted when no
// allow list is configured.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// newUpgrader builds a WebSocket upgrader whose origin check honors the
// configured allow list. An empty list permits the development origins
// only; "*" disables the check. Requests without an Origin header
// (non-browser clients) are always accepted.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := allowedOrigins
	if len(allowed) == 0 {
		allowed = defaultOrigins
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowed {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

const (
	wsWriteTimeout      = 10 * time.Second
	wsHeartbeatInterval = 30 * time.Second
)

// WSMessage is one event pushed to WebSocket subscribers.
type WSMessage struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient is one subscriber connection. The mutex serializes writes; the
// gorilla connection does not allow concurrent writers.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// wsHub fans detection and ticket lifecycle events out to all connected
// subscribers.
type wsHub struct {
	logger  *zap.Logger
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newWSHub(logger *zap.Logger) *wsHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &wsHub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *wsHub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketConnections.Inc()
}

func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.WebSocketConnections.Dec()
	}
	h.mu.Unlock()
	c.conn.Close()
}

// broadcast pushes an event to every subscriber. Clients whose writes fail
// are dropped.
func (h *wsHub) broadcast(eventType string, payload any) {
	msg := WSMessage{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode websocket event",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return
	}

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.remove(c)
			continue
		}
		metrics.WebSocketMessagesTotal.WithLabelValues("outbound").Inc()
	}
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

// handleWS upgrades the connection and subscribes it to pipeline events.
// The server pings every 30 seconds; inbound messages are drained and
// discarded.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := newUpgrader(s.config.Server.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn}
	s.hub.add(client)

	done := make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(wsHeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := client.write(websocket.PingMessage, nil); err != nil {
					s.hub.remove(client)
					return
				}
			case <-done:
				return
			case <-s.ctx.Done():
				s.hub.remove(client)
				return
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.remove(client)
				return
			}
			metrics.WebSocketMessagesTotal.WithLabelValues("inbound").Inc()
		}
	}()
}
