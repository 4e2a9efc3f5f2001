package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SoleStyle/solestyle/internal/domain/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientBuffer   = 256
	broadcastQueue = 64
)

// Notification is the frame pushed to websocket clients for every bus event.
type Notification struct {
	Type  string      `json:"type"` // always "event"
	Topic event.Topic `json:"topic"`
	At    time.Time   `json:"at"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub forwards change notifications from the bus to connected websocket
// clients. Run must be called exactly once; ServeHTTP is safe to call
// concurrently with it.
type Hub struct {
	bus      *event.Bus
	logger   *slog.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	done       chan struct{}

	clients map[*wsClient]struct{} // owned by Run
	count   atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubMetrics records connected clients in the websocket_clients gauge.
func WithHubMetrics(m *Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithHubOrigins allows browser connections from the listed origins in
// addition to same-host ones.
func WithHubOrigins(origins []string) HubOption {
	return func(h *Hub) {
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(origin, r.Host, allowed)
		}
	}
}

// NewHub creates a hub bound to bus.
func NewHub(bus *event.Bus, logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		bus:        bus,
		logger:     logger,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, broadcastQueue),
		done:       make(chan struct{}),
		clients:    make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || originAllowed(origin, r.Host, nil)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// notify is the bus handler. It never blocks the publisher: when the queue
// is full the notification is dropped.
func (h *Hub) notify(_ context.Context, topic event.Topic) error {
	msg, err := json.Marshal(Notification{Type: "event", Topic: topic, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping notification", "topic", topic)
	}
	return nil
}

// Run subscribes to every topic and serves the hub until ctx is done.
// On return all clients are disconnected and the subscriptions removed.
func (h *Hub) Run(ctx context.Context) {
	subs := make([]*event.Subscription, 0, len(event.Topics()))
	for _, topic := range event.Topics() {
		subs = append(subs, h.bus.Subscribe(topic, h.notify))
	}
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
		for c := range h.clients {
			h.drop(c)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount(len(h.clients))
			h.logger.Debug("websocket client connected", "remote", c.conn.RemoteAddr().String())
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("websocket client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	delete(h.clients, c)
	close(c.send)
	h.setCount(len(h.clients))
}

func (h *Hub) setCount(n int) {
	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(n))
	}
	h.count.Store(int64(n))
}

// ServeHTTP upgrades the request and streams notifications until the
// client disconnects or the hub stops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		LoggerFromContext(r.Context()).Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client frames; it exists to process control frames and
// to notice disconnects.
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
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
