package ws

import "encoding/json"

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	// Server -> Client: one bus message forwarded to the UI.
	TypeBusMessage = "bus:message"

	// Client -> Server: a UI command published onto the bus.
	TypeBusPublish = "bus:publish"
)

// NewBusMessage envelopes a bus payload for the UI. The payload must
// already be JSON.
func NewBusMessage(topic string, payload []byte) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:    TypeBusMessage,
		Topic:   topic,
		Payload: json.RawMessage(payload),
	})
}
