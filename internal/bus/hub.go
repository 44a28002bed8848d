// Package bus fans session notifications out to every connected
// observer over WebSocket. Delivery is best-effort to currently open
// connections; there is no buffering or replay.
package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// How often the hub sweeps for dead observers.
	sweepPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// GUI and server share localhost on the rig.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// EventSink receives inbound events parsed off observer connections.
type EventSink interface {
	HandleEvent(ctx context.Context, eventType string, payload json.RawMessage) error
}

// inboundEnvelope is the wire shape of client-to-server events.
type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Hub maintains the set of active observers and broadcasts notifications
// to them. It implements repositories.Publisher.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
	closed  bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	sink   EventSink
	logger *zap.Logger
}

// NewHub creates an observer hub delivering inbound events to sink.
func NewHub(sink EventSink, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		sink:       sink,
		logger:     logger,
	}
}

// SetSink attaches the event sink. The hub publishes into the
// orchestrator and the orchestrator publishes through the hub, so one
// side has to be wired after construction, before Run.
func (h *Hub) SetSink(sink EventSink) {
	h.sink = sink
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	ticker := time.NewTicker(sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Observer connected", zap.String("observerID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Observer disconnected", zap.String("observerID", client.id))

		case <-ticker.C:
			h.Sweep()

		case <-h.done:
			return
		}
	}
}

// Publish wraps data in a Notification envelope and sends it to every
// open observer, in calling order. Observers whose send buffer is full
// are dropped on the spot.
func (h *Hub) Publish(eventType string, data any) {
	payload, err := json.Marshal(Notification{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Error("Failed to marshal notification",
			zap.String("type", eventType),
			zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			delete(h.clients, id)
			close(client.send)
			h.logger.Warn("Dropped stalled observer", zap.String("observerID", id))
		}
	}
}

// Sweep pings every observer and removes the ones that fail the write.
func (h *Hub) Sweep() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			delete(h.clients, id)
			close(client.send)
			client.conn.Close()
			h.logger.Info("Swept dead observer", zap.String("observerID", id))
		}
	}
}

// ObserverCount returns the number of currently connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every observer. Used by the emergency stop after
// the final notification has been published.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		close(client.send)
		client.conn.Close()
	}
}

// Shutdown stops the run loop and disconnects everything.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	alreadyClosed := h.closed
	h.closed = true
	h.mu.Unlock()
	if alreadyClosed {
		return
	}
	close(h.done)
	h.CloseAll()
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	id     string
	logger *zap.Logger
}

// HandleWebSocket upgrades the request and attaches a new observer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		id:     uuid.New().String(),
		logger: logger,
	}

	// The run loop may already be gone when a late upgrade lands.
	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps inbound events from the websocket connection into the
// hub's event sink.
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
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		var envelope inboundEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			c.logger.Error("Failed to parse inbound event", zap.Error(err))
			continue
		}
		if envelope.Type == "" {
			c.logger.Error("Inbound event missing type field")
			continue
		}

		if c.hub.sink == nil {
			c.logger.Warn("No event sink attached; dropping inbound event",
				zap.String("type", envelope.Type))
			continue
		}
		if err := c.hub.sink.HandleEvent(context.Background(), envelope.Type, envelope.Data); err != nil {
			c.logger.Warn("Event handling failed",
				zap.String("type", envelope.Type),
				zap.Error(err))
		}
	}
}

// writePump pumps notifications from the hub to the websocket connection.
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

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write notification", zap.Error(err))
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
