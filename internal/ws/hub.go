package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// clientQueueDepth is each client's outbound frame buffer. A UI that
// lags this far behind starts losing frames instead of stalling the
// bus bridge.
const clientQueueDepth = 256

// Client is one connected UI socket with its outbound queue.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	dropped atomic.Int64
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientQueueDepth),
	}
}

// Hub fans frames out to every connected UI client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister drops the client and closes its queue, which ends its
// writePump.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if n := c.dropped.Load(); n > 0 {
		slog.Warn("ws client disconnected with lost frames", "dropped", n)
	}
}

// Broadcast queues a frame for every client. A client with a full
// queue loses the frame; slow consumers never block the rest.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
			if c.dropped.Add(1) == 1 {
				slog.Warn("ws client queue full, dropping frames")
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedFrames returns the total frames lost to full client queues
// over the hub's lifetime.
func (h *Hub) DroppedFrames() int64 {
	return h.dropped.Load()
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
