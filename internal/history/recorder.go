package history

import (
	"context"
	"log/slog"

	"powercable/internal/bus"
	"powercable/internal/wire"
)

// chartTopics are the bus topics whose payloads are chart entries.
func chartTopics() []string {
	return []string{
		bus.TransformerConsumption,
		bus.TransformerGeneration,
		bus.TransformerStats,
		bus.TransformerDiff,
		bus.TransformerPrice,
		bus.TransformerEarnings,
		bus.ChargerOfferAvgPrice,
		bus.ChargerOfferAvgDistance,
		bus.ChargerOfferAvgCost,
	}
}

// Recorder feeds the store from the bus.
type Recorder struct {
	store *Store
	bus   *bus.Bus
	log   *slog.Logger
}

func NewRecorder(b *bus.Bus, s *Store) *Recorder {
	return &Recorder{
		store: s,
		bus:   b,
		log:   slog.With("component", "history"),
	}
}

// Run records chart entries until the context is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	sub := r.bus.Subscribe("history", 0, chartTopics()...)
	defer r.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			entry, err := wire.DecodeChartEntry(msg.Payload)
			if err != nil {
				r.log.Debug("malformed chart entry", "topic", msg.Topic, "error", err)
				continue
			}
			r.store.Add(msg.Topic, entry)
		}
	}
}
