package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"powercable/internal/bus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler manages WebSocket connections and routes UI commands onto
// the bus.
type Handler struct {
	hub *Hub
	bus *bus.Bus
	log *slog.Logger
}

func NewHandler(hub *Hub, b *bus.Bus) *Handler {
	return &Handler{hub: hub, bus: b, log: slog.With("component", "ws-handler")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h.hub, conn)
	h.hub.Register(client)
	go client.writePump()

	// Replay retained state so a fresh UI starts fully populated.
	h.sendRetained(client)

	h.readPump(client)
}

// sendRetained drains the retained messages of the UI topics into one
// client's queue.
func (h *Handler) sendRetained(c *Client) {
	sub := h.bus.Subscribe("ws-replay", 0, uiTopics()...)
	defer h.bus.Unsubscribe(sub)

	for {
		select {
		case msg := <-sub.C():
			if !msg.Retained || !json.Valid(msg.Payload) {
				continue
			}
			env, err := NewBusMessage(msg.Topic, msg.Payload)
			if err != nil {
				continue
			}
			select {
			case c.send <- env:
			default:
			}
		default:
			return
		}
	}
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", "error", err)
			}
			return
		}

		h.handleMessage(msg)
	}
}

// publishable limits UI writes to the command topics.
func publishable(topic string) bool {
	if strings.HasPrefix(topic, "config/") {
		return true
	}
	switch topic {
	case bus.TickConfigure, bus.TickConfigureSpeed, bus.TickConfigureAmount, bus.WorldmapEvent:
		return true
	}
	return false
}

func (h *Handler) handleMessage(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.log.Debug("invalid message", "error", err)
		return
	}

	switch env.Type {
	case TypeBusPublish:
		if !publishable(env.Topic) {
			h.log.Warn("rejected publish to non-command topic", "topic", env.Topic)
			return
		}
		h.bus.Publish(env.Topic, []byte(env.Payload))
	default:
		h.log.Debug("unknown message type", "type", env.Type)
	}
}
