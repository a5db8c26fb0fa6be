package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pondwatch/internal/alerts"
	"pondwatch/internal/logger"
	"pondwatch/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// HubConfig holds live feed configuration
type HubConfig struct {
	// AllowedOrigins restricts websocket upgrades; empty allows any origin
	AllowedOrigins []string

	// Snapshot, when set, is sent to each client on connect
	Snapshot func() []alerts.SensorStatus

	// SendBuffer is the per-client queue length
	SendBuffer int
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes sensor updates to websocket dashboard clients. A client that
// cannot keep up loses updates instead of slowing evaluation.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	closed   bool
	upgrader websocket.Upgrader
	snapshot func() []alerts.SensorStatus
	buffer   int
}

// NewHub creates a hub
func NewHub(cfg HubConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}

	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}

	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin] || allowed["*"]
			},
		},
		snapshot: cfg.Snapshot,
		buffer:   cfg.SendBuffer,
	}
}

// Publish sends an update to every connected client without blocking
func (h *Hub) Publish(update alerts.Update) {
	data, err := json.Marshal(update)
	if err != nil {
		log := logger.WithComponent("live")
		log.Error().Err(err).Msg("failed to encode update")
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			metrics.LiveDroppedTotal.Inc()
		}
	}
}

// ServeHTTP upgrades the request and streams updates until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("live")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.buffer)}
	if !h.register(c) {
		conn.Close()
		return
	}

	if h.snapshot != nil {
		for _, status := range h.snapshot() {
			if data, err := json.Marshal(alerts.Update{Status: status}); err == nil {
				h.sendTo(c, data)
			}
		}
	}

	go h.writePump(c)
	h.readPump(c)
}

// sendTo queues data for one client if it is still registered
func (h *Hub) sendTo(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		metrics.LiveDroppedTotal.Inc()
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.LiveClients.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.LiveClients.Set(float64(len(h.clients)))
	}
}

// readPump discards client messages and detects disconnects
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.LiveClients.Set(0)
}
