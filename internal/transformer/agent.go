package transformer

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"powercable/internal/bus"
	"powercable/internal/geo"
	"powercable/internal/tickgen"
	"powercable/internal/wire"
)

// ownTopic labels the transformer's own chart entries so its output is
// not fed back into the aggregation.
const ownTopic = "Total"

// Agent is the grid aggregator.
type Agent struct {
	mu  sync.Mutex
	bus *bus.Bus
	log *slog.Logger

	grid          Grid
	prices        priceStats
	totalEarnings float64

	// retail offer statistics, averaged since start
	avgPrice    rollingAvg
	avgDistance rollingAvg
	avgCost     rollingAvg

	// last known vehicle positions, keyed by name, for offer distances
	vehiclePos map[string]geo.Position
}

func New(b *bus.Bus) *Agent {
	return &Agent{
		bus:        b,
		log:        slog.With("agent", "transformer"),
		prices:     newPriceStats(),
		vehiclePos: make(map[string]geo.Position),
	}
}

// Run consumes the agent's inbox until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	sub := a.bus.Subscribe("transformer", 64,
		bus.TickTopic,
		bus.TransformerConsumption,
		bus.TransformerGeneration,
		bus.AckAcceptBuyOffer,
		bus.ChargerRequest,
		bus.ChargerOffer,
	)
	defer a.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			a.dispatch(msg)
		}
	}
}

func (a *Agent) dispatch(msg bus.Message) {
	switch msg.Topic {
	case bus.TickTopic:
		payload, err := tickgen.DecodePayload(msg.Payload)
		if err != nil {
			a.log.Debug("malformed tick payload", "error", err)
			return
		}
		if payload.Phase == tickgen.PhaseProcess {
			a.processPhase(payload)
		}
	case bus.TransformerConsumption:
		entry, err := wire.DecodeChartEntry(msg.Payload)
		if err != nil {
			a.log.Debug("malformed consumption entry", "error", err)
			return
		}
		if entry.Topic == ownTopic {
			return
		}
		a.mu.Lock()
		a.grid.AddConsumption(float64(entry.Payload))
		a.mu.Unlock()
	case bus.TransformerGeneration:
		entry, err := wire.DecodeChartEntry(msg.Payload)
		if err != nil {
			a.log.Debug("malformed generation entry", "error", err)
			return
		}
		if entry.Topic == ownTopic {
			return
		}
		a.mu.Lock()
		a.grid.AddGeneration(float64(entry.Payload))
		a.mu.Unlock()
	case bus.AckAcceptBuyOffer:
		offer, err := wire.DecodeOffer(msg.Payload)
		if err != nil {
			a.log.Debug("malformed ack", "error", err)
			return
		}
		a.handleAck(offer)
	case bus.ChargerRequest:
		req, err := wire.DecodeChargeRequest(msg.Payload)
		if err != nil {
			a.log.Debug("malformed charge request", "error", err)
			return
		}
		a.mu.Lock()
		a.vehiclePos[req.VehicleName] = req.VehiclePosition
		a.mu.Unlock()
	case bus.ChargerOffer:
		offer, err := wire.DecodeChargeOffer(msg.Payload)
		if err != nil {
			a.log.Debug("malformed charge offer", "error", err)
			return
		}
		a.handleChargeOffer(offer)
	default:
		a.log.Warn("unexpected topic", "topic", msg.Topic)
	}
}

// isConsumerOffer filters the demand-side acks out of the sell price
// statistics by their profile-prefixed offer ids.
func isConsumerOffer(id string) bool {
	return strings.HasPrefix(id, "H") || strings.HasPrefix(id, "G") || strings.HasPrefix(id, "L")
}

func (a *Agent) handleAck(offer wire.Offer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalEarnings += offer.Amount * offer.Price
	if isConsumerOffer(offer.ID) {
		return
	}
	a.prices.add(offer.Price)
}

func (a *Agent) handleChargeOffer(offer wire.ChargeOffer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.avgPrice.add(offer.ChargePrice)
	a.avgCost.add(offer.ChargePrice * offer.ChargeAmount)
	if pos, ok := a.vehiclePos[offer.VehicleName]; ok {
		a.avgDistance.add(pos.DistanceTo(offer.ChargerPosition))
	}
}

// processPhase publishes the closing statistics of the previous tick,
// then resets the per-tick state.
func (a *Agent) processPhase(p tickgen.Payload) {
	a.mu.Lock()
	ts := p.Timestamp - tickgen.TickMinutes*60*1000

	type stat struct {
		topic string
		entry wire.ChartEntry
	}
	stats := []stat{
		{bus.TransformerStats, wire.ChartEntry{
			Topic: "Consumption", Payload: round(a.grid.CurrentConsumption), Timestamp: ts}},
		{bus.TransformerStats, wire.ChartEntry{
			Topic: "Generation", Payload: round(a.grid.CurrentGeneration), Timestamp: ts}},
		{bus.TransformerDiff, wire.ChartEntry{
			Topic: ownTopic, Payload: round(a.grid.Difference()), Timestamp: ts}},
		{bus.TransformerEarnings, wire.ChartEntry{
			Topic: ownTopic, Payload: round(a.totalEarnings), Timestamp: ts}},
		{bus.ChargerOfferAvgPrice, wire.ChartEntry{
			Topic: "Average Offer Price", Payload: round(a.avgPrice.value() * 100), Timestamp: ts}},
		{bus.ChargerOfferAvgDistance, wire.ChartEntry{
			Topic: "Average Offer Distance", Payload: round(a.avgDistance.value()), Timestamp: ts}},
		{bus.ChargerOfferAvgCost, wire.ChartEntry{
			Topic: "Average Offer Cost", Payload: round(a.avgCost.value()), Timestamp: ts}},
	}

	withSales := a.prices.count > 0
	if withSales {
		stats = append(stats,
			stat{bus.TransformerPrice, wire.ChartEntry{
				Topic: "Lowest Sell Price", Payload: round(a.prices.lowest * 100), Timestamp: ts}},
			stat{bus.TransformerPrice, wire.ChartEntry{
				Topic: "Average Sell Price", Payload: round(a.prices.average() * 100), Timestamp: ts}},
		)
	}

	a.prices = newPriceStats()
	a.grid.Reset()
	a.mu.Unlock()

	for _, s := range stats {
		a.bus.PublishRetained(s.topic, s.entry.Encode())
	}
}

func round(v float64) int64 {
	return int64(math.Round(v))
}
