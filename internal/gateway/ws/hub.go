package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/sovereign-tools/sovereign/internal/events"
)

// Client represents a connected WebSocket client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub manages WebSocket clients and bridges bus events to them. The feed
// is one-way: every bus event becomes a JSON frame pushed to all clients,
// and inbound frames are drained and ignored.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	bus         *events.Bus
	unsubscribe func()
}

// NewHub creates a new WebSocket hub connected to an event bus.
func NewHub(bus *events.Bus) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		bus:     bus,
	}

	h.unsubscribe = bus.Subscribe(func(e events.Event) {
		frame, err := NewEventFrame(string(e.Type), e)
		if err != nil {
			slog.Error("marshal event frame", "error", err)
			return
		}
		data, err := MarshalFrame(frame)
		if err != nil {
			slog.Error("marshal frame", "error", err)
			return
		}
		h.broadcast(data)
	})

	return h
}

// broadcast sends data to all connected clients.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

// register adds a client to the hub.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws client connected", "clients", len(h.clients))
}

// unregister removes a client from the hub.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("ws client disconnected", "clients", len(h.clients))
	}
}

// ServeWS handles a WebSocket upgrade and manages the client lifecycle.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for dev
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.register(client)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

// readPump drains the connection so pings and closes are processed.
// Inbound frames carry no meaning for a broadcast feed and are dropped.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}
	}
}

// writePump writes queued messages to the WS connection.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close shuts down the hub and all client connections.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
	}
}
