package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"textile-store/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// client is one WebSocket connection subscribed to a single table.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub tracks WebSocket subscribers and streams broker changes to them.
type Hub struct {
	broker   Broker
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub. checkOrigin may be nil to accept same-host requests only.
func NewHub(broker Broker, logger *zap.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		broker: broker,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[*client]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and streams changes on table matching event
// until the client disconnects or the hub shuts down.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, table string, event domain.ChangeEvent) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, subscriberBuffer), done: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := h.broker.Subscribe(ctx, table, event)
	if err != nil {
		cancel()
		h.logger.Error("Failed to subscribe WebSocket client", zap.String("table", table), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("WebSocket client connected", zap.String("table", table), zap.Int("total", h.ClientCount()))

	go h.relay(c, changes)
	go h.writePump(c)
	go func() {
		h.readPump(c)
		cancel()
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.close()
	}()
}

// relay encodes changes onto the client's send queue, dropping them when it is full.
func (h *Hub) relay(c *client, changes <-chan domain.Change) {
	for {
		select {
		case <-c.done:
			return
		case change, ok := <-changes:
			if !ok {
				c.close()
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				continue
			}
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// readPump discards inbound frames and keeps the read deadline fresh.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket closed unexpectedly", zap.Error(err))
			}
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
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
}
