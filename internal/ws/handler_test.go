package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powercable/internal/bus"
)

// dialHandler sets up a test server with the handler and returns a WS connection.
func dialHandler(t *testing.T, handler *Handler) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestHandler_PublishCommand(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("test", 16, bus.ConfigVehicleScale)
	handler := NewHandler(NewHub(), b)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()

	msg, err := json.Marshal(Envelope{
		Type:    TypeBusPublish,
		Topic:   bus.ConfigVehicleScale,
		Payload: json.RawMessage(`1.5`),
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

	select {
	case got := <-sub.C():
		assert.Equal(t, bus.ConfigVehicleScale, got.Topic)
		assert.Equal(t, "1.5", string(got.Payload))
	case <-time.After(time.Second):
		t.Fatal("command never reached the bus")
	}
}

func TestHandler_RejectsMarketTopic(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("test", 16, bus.BuyOfferTopic)
	handler := NewHandler(NewHub(), b)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()

	msg, err := json.Marshal(Envelope{
		Type:    TypeBusPublish,
		Topic:   bus.BuyOfferTopic,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

	select {
	case <-sub.C():
		t.Fatal("market topic should not be publishable from the UI")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandler_ReplaysRetainedOnConnect(t *testing.T) {
	b := bus.New()
	b.PublishRetained(bus.PowerLocation, []byte(`{"name":"Wexa","lat":50.5,"lon":8.5}`))

	handler := NewHandler(NewHub(), b)
	conn, cleanup := dialHandler(t, handler)
	defer cleanup()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, TypeBusMessage, env.Type)
	assert.Equal(t, bus.PowerLocation, env.Topic)
}
