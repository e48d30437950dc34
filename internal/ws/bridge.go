package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"powercable/internal/bus"
)

// uiTopics lists the bus topics forwarded to the UI. All of them carry
// JSON payloads; the binary market and retail topics stay internal.
func uiTopics() []string {
	return []string{
		bus.TickTopic,
		bus.TransformerConsumption,
		bus.TransformerGeneration,
		bus.TransformerStats,
		bus.TransformerDiff,
		bus.TransformerPrice,
		bus.TransformerEarnings,
		bus.ChargerOfferAvgPrice,
		bus.ChargerOfferAvgDistance,
		bus.ChargerOfferAvgCost,
		bus.PowerLocation,
		bus.VehicleTopic + "/#",
	}
}

// Bridge forwards bus traffic to the WebSocket hub.
type Bridge struct {
	hub *Hub
	bus *bus.Bus
	log *slog.Logger
}

func NewBridge(hub *Hub, b *bus.Bus) *Bridge {
	return &Bridge{hub: hub, bus: b, log: slog.With("component", "ws-bridge")}
}

// Run pumps matching bus messages into the hub until the context is
// cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.bus.Subscribe("ws-bridge", 0, uiTopics()...)
	defer b.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			if !json.Valid(msg.Payload) {
				b.log.Debug("skipping non-JSON payload", "topic", msg.Topic)
				continue
			}
			env, err := NewBusMessage(msg.Topic, msg.Payload)
			if err != nil {
				b.log.Debug("enveloping bus message", "topic", msg.Topic, "error", err)
				continue
			}
			b.hub.Broadcast(env)
		}
	}
}
