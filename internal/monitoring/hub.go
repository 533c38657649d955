package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/pillarbox/internal/logger"
)

const (
	hubWriteTimeout = 10 * time.Second
	hubClientBuffer = 64
)

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts monitoring messages to websocket clients
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[string]*hubClient
	mu       sync.RWMutex
	log      zerolog.Logger
}

// NewHub creates a hub without clients
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*hubClient),
		log:     logger.Component("monitoring_hub"),
	}
}

// ServeWS upgrades the request and registers the connection as a client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, hubClientBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.log.Debug().Str("client_id", c.id).Msg("Monitoring client connected")

	go h.writeLoop(c)
	go h.readLoop(c)
	return nil
}

// Handle broadcasts the message to every client. Slow clients miss messages.
func (h *Hub) Handle(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode monitoring message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("client_id", c.id).Msg("Monitoring client too slow, dropping message")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.remove(id)
	}
}

// readLoop discards client frames and detects disconnection
func (h *Hub) readLoop(c *hubClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c.id)
			return
		}
	}
}

// writeLoop sends queued messages until the client is removed
func (h *Hub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug().Err(err).Str("client_id", c.id).Msg("Monitoring client write failed")
			h.remove(c.id)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// remove unregisters the client and stops its writer
func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.log.Debug().Str("client_id", id).Msg("Monitoring client disconnected")
	}
}
