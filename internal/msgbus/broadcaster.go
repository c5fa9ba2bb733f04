package msgbus

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// BroadcasterConfig tunes a WSBroadcaster's keepalive/write timing. Zero
// fields fall back to BroadcasterConfig.withDefaults' values.
type BroadcasterConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (c BroadcasterConfig) withDefaults() BroadcasterConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 512 * 1024
	}
	return c
}

// pingPeriod sends keepalive pings often enough that a client's PongWait
// deadline never lapses between them.
func (c BroadcasterConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

type frameKind int

const (
	frameData frameKind = iota
	framePing
)

type outboundFrame struct {
	kind frameKind
	data []byte
}

type topicMessage struct {
	topic string
	data  []byte
}

// WSBroadcaster rebroadcasts bus topics to connected WebSocket clients
// (dashboards, external observers). Unlike a blind fan-out, each client
// narrows delivery to the topic patterns it subscribed with at connect
// time, using the same glob matcher Bus.Subscribe compiles patterns with —
// a client asking for "data.quotes.*" never receives an order event. One
// shared ticker in Run drives keepalive pings for every client rather than
// each client's write goroutine running its own timer.
type WSBroadcaster struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan topicMessage
	cfg        BroadcasterConfig
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

type wsClient struct {
	hub      *WSBroadcaster
	conn     *websocket.Conn
	send     chan outboundFrame
	matchers []*topicMatcher // empty means "every topic"
}

func (c *wsClient) accepts(topic string) bool {
	if len(c.matchers) == 0 {
		return true
	}
	for _, m := range c.matchers {
		if m.match(topic) {
			return true
		}
	}
	return false
}

// NewWSBroadcaster constructs a broadcaster. cfg's zero value uses
// BroadcasterConfig's defaults. Run must be started in its own goroutine
// before clients are accepted.
func NewWSBroadcaster(cfg BroadcasterConfig, logger *slog.Logger) *WSBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSBroadcaster{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan topicMessage, 256),
		cfg:        cfg.withDefaults(),
		upgrader:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		logger:     logger.With("component", "ws-broadcaster"),
	}
}

// Run drives client registration, topic-filtered fan-out, and keepalive
// pings until stop is closed.
func (h *WSBroadcaster) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("client connected", "count", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", "count", len(h.clients))

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-ticker.C:
			h.pingAll()
		}
	}
}

func (h *WSBroadcaster) fanOut(msg topicMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.accepts(msg.topic) {
			continue
		}
		select {
		case client.send <- outboundFrame{kind: frameData, data: msg.data}:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *WSBroadcaster) pingAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- outboundFrame{kind: framePing}:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// BroadcastTopic marshals data as JSON and fans it out to every client
// whose subscribed topic patterns match topic.
func (h *WSBroadcaster) BroadcastTopic(topic string, data any) {
	payload := struct {
		Topic string `json:"topic"`
		Data  any    `json:"data"`
	}{Topic: topic, Data: data}

	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("broadcaster marshal failed", "topic", topic, "error", err)
		return
	}

	select {
	case h.broadcast <- topicMessage{topic: topic, data: raw}:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "topic", topic)
	}
}

// AttachToBus subscribes the broadcaster to every pattern in topics so
// matching Publish calls are rebroadcast to WebSocket clients.
func (h *WSBroadcaster) AttachToBus(bus *Bus, subscriberID string, topics []string) error {
	for _, topic := range topics {
		if err := bus.Subscribe(topic, subscriberID, func(t string, data any) {
			h.BroadcastTopic(t, data)
		}); err != nil {
			return err
		}
	}
	return nil
}

// ServeHTTP upgrades the connection to a WebSocket and registers a new
// client. The "topics" query parameter, if present, is a comma-separated
// list of glob patterns (e.g. "?topics=data.quotes.*,events.order.*")
// narrowing which published topics this client receives; omitted or empty
// means every topic. Mount under the kernel's dashboard mux, e.g. at "/ws".
func (h *WSBroadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	matchers, err := parseTopicFilters(r.URL.Query().Get("topics"))
	if err != nil {
		h.logger.Warn("invalid topics filter, defaulting to all topics", "error", err)
		matchers = nil
	}

	client := &wsClient{
		hub:      h,
		conn:     conn,
		send:     make(chan outboundFrame, 256),
		matchers: matchers,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func parseTopicFilters(raw string) ([]*topicMatcher, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	matchers := make([]*topicMatcher, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		m, err := compileTopicPattern(p)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

// writePump applies every frame the hub enqueues for this client — data or
// keepalive ping alike — to the connection. It has no timer of its own: the
// hub's Run loop is the single source of ping cadence across every client.
func (c *wsClient) writePump() {
	defer c.conn.Close()

	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
		switch frame.kind {
		case framePing:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		default:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame.data); err != nil {
				return
			}
		}
	}
	// hub closed send: tell the peer we're done before the deferred Close.
	c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket read error", "error", err)
			}
			break
		}
		// The broadcaster is read-only; client messages are ignored.
	}
}
