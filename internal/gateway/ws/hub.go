package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/dohr-michael/nudge/internal/events"
)

const sendBuffer = 256

// Client represents a connected WebSocket client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu    sync.RWMutex
	group string
}

func (c *Client) wants(groupID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.group == "" || c.group == groupID
}

func (c *Client) setGroup(groupID string) {
	c.mu.Lock()
	c.group = groupID
	c.mu.Unlock()
}

// Hub fans bus events out to WebSocket clients.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	unsubscribe func()
}

// NewHub creates a hub forwarding every event published on bus.
func NewHub(bus *events.Bus) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
	}

	h.unsubscribe = bus.Subscribe(func(e events.Event) {
		frame, err := NewEventFrame(string(e.Type), e.GroupID, e)
		if err != nil {
			slog.Error("ws: marshal event frame", "error", err)
			return
		}
		data, err := MarshalFrame(frame)
		if err != nil {
			slog.Error("ws: marshal frame", "error", err)
			return
		}
		h.broadcast(e.GroupID, data)
	})

	return h
}

// broadcast queues data on every client following groupID. Slow clients drop frames.
func (h *Hub) broadcast(groupID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(groupID) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slog.Debug("ws: client too slow, frame dropped")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws: client connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("ws: client disconnected", "clients", len(h.clients))
	}
}

// ServeWS upgrades the request and streams events until the client leaves.
// The optional ?group= query parameter sets the initial filter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("ws: accept", "error", err)
		return
	}

	client := &Client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		hub:   h,
		group: r.URL.Query().Get("group"),
	}

	h.register(client)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws: read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws: read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Warn("ws: unmarshal frame", "error", err)
			continue
		}
		if frame.Type != FrameTypeRequest {
			slog.Debug("ws: ignored frame", "type", frame.Type)
			continue
		}
		c.handleRequest(frame)
	}
}

func (c *Client) handleRequest(frame Frame) {
	switch Method(frame.Method) {
	case MethodSubscribe:
		var params SubscribeParams
		if len(frame.Params) > 0 {
			if err := json.Unmarshal(frame.Params, &params); err != nil {
				c.reply(frame.ID, false, nil, "invalid params")
				return
			}
		}
		c.setGroup(params.GroupID)
		c.reply(frame.ID, true, params, "")

	case MethodPing:
		c.reply(frame.ID, true, map[string]string{"status": "pong"}, "")

	default:
		c.reply(frame.ID, false, nil, "unknown method: "+frame.Method)
	}
}

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

func (c *Client) reply(id string, ok bool, payload any, errMsg string) {
	f, err := NewResponseFrame(id, ok, payload, errMsg)
	if err != nil {
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
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
