// Package ws pushes ledger events and pool stats to websocket and SSE clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/internal/metrics"
	"github.com/bioneo/stakeledger/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	idleTimeout    = 5 * time.Minute
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	cache      *store.Cache
	upgrader   websocket.Upgrader
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	ready      chan struct{}
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu         sync.RWMutex
	topics     map[string]bool
	lastActive time.Time
}

type SubscriptionRequest struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

func NewHub(cache *store.Cache, allowedOrigins []string, logger *zap.SugaredLogger, metrics *metrics.Metrics) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
	return h
}

// Ready is closed once the hub listens on the pub/sub topics.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

func (h *Hub) Run(ctx context.Context) {
	sub := h.cache.Subscribe(ctx, store.TopicEvents, store.TopicPoolStats)
	close(h.ready)
	defer close(h.done)
	go h.relay(ctx, sub)
	go h.startClientCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			h.logger.Infow("WebSocket hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				h.drop(ctx, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.IncrementConnections(ctx)
			h.logger.Debugw("Client registered", "remote", client.conn.RemoteAddr().String())

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(ctx, client)
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(ctx context.Context, client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.metrics.DecrementConnections(ctx)
}

func (h *Hub) relay(ctx context.Context, sub store.Subscription) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				h.logger.Warnw("Pub/sub subscription closed; websocket relay stopped")
				return
			}
			h.handleMessage(ctx, msg)
		}
	}
}

func (h *Hub) handleMessage(ctx context.Context, msg *store.Message) {
	topics, kind := route(msg.Channel, msg.Payload)
	if len(topics) == 0 {
		return
	}

	for _, topic := range topics {
		frame, err := json.Marshal(Message{
			Type:      kind,
			Topic:     topic,
			Data:      json.RawMessage(msg.Payload),
			Timestamp: time.Now().Unix(),
		})
		if err != nil {
			h.logger.Errorw("Failed to marshal WebSocket message", "error", err)
			return
		}
		h.broadcast(ctx, frame, topic)
	}
}

func (h *Hub) broadcast(ctx context.Context, frame []byte, topic string) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		if !client.isSubscribed(topic) {
			continue
		}
		select {
		case client.send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, client := range slow {
		h.drop(ctx, client)
	}
	h.mu.Unlock()
}

// subscribers counts the clients subscribed to topic.
func (h *Hub) subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.isSubscribed(topic) {
			n++
		}
	}
	return n
}

func (h *Hub) startClientCleanup(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupInactiveClients(ctx)
		}
	}
}

func (h *Hub) cleanupInactiveClients(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-idleTimeout)
	for client := range h.clients {
		if client.idleSince(cutoff) {
			h.drop(ctx, client)
			h.logger.Debugw("Cleaned up inactive client", "remote", client.conn.RemoteAddr().String())
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, 256),
		topics:     make(map[string]bool),
		lastActive: time.Now(),
	}
	for _, topic := range r.URL.Query()["topic"] {
		if validTopic(topic) {
			client.topics[topic] = true
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorw("WebSocket error", "error", err)
			}
			break
		}

		c.touch()
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one frame per message so clients can decode each as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(message []byte) {
	var req SubscriptionRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.hub.logger.Warnw("Invalid subscription message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch req.Type {
	case "subscribe":
		for _, topic := range req.Topics {
			if validTopic(topic) {
				c.topics[topic] = true
			}
		}
		c.hub.logger.Debugw("Client subscribed to topics", "topics", req.Topics)

	case "unsubscribe":
		for _, topic := range req.Topics {
			delete(c.topics, topic)
		}
		c.hub.logger.Debugw("Client unsubscribed from topics", "topics", req.Topics)
	}
}

func (c *Client) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

func (c *Client) idleSince(cutoff time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActive.Before(cutoff)
}
