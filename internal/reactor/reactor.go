// Package reactor implements the fusion reactor: the grid's lender of
// last resort. It buffers every buy offer at or above its price floor
// and drains the buffer during the PowerImport phase, so cheap wind
// power always gets first pick during Commerce.
package reactor

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"

	"powercable/internal/bus"
	"powercable/internal/market"
	"powercable/internal/tickgen"
	"powercable/internal/wire"
)

const (
	// Name is the reactor's fixed bus identity.
	Name = "Fusion Reactor"

	// sellPrice is the minimum offer price the reactor serves.
	sellPrice = 0.90
)

// Agent is the reactor's bus endpoint.
type Agent struct {
	mu     sync.Mutex
	trader *market.Trader
	bus    *bus.Bus
	log    *slog.Logger

	online bool
}

func New(b *bus.Bus) *Agent {
	return &Agent{
		trader: market.NewTrader(Name, b, true),
		bus:    b,
		log:    slog.With("agent", Name),
		online: true,
	}
}

// Run consumes the agent's inbox until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	sub := a.bus.Subscribe(Name, 0,
		bus.TickTopic,
		bus.BuyOfferTopic,
		bus.AckAcceptBuyOffer,
		bus.ConfigTurbine,
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
		a.handleTick(payload)
	case bus.BuyOfferTopic:
		offer, err := wire.DecodeOffer(msg.Payload)
		if err != nil {
			a.log.Debug("malformed buy offer", "error", err)
			return
		}
		a.handleBuyOffer(offer)
	case bus.AckAcceptBuyOffer:
		offer, err := wire.DecodeOffer(msg.Payload)
		if err != nil {
			a.log.Debug("malformed ack", "error", err)
			return
		}
		a.mu.Lock()
		a.trader.HandleAck(offer)
		a.mu.Unlock()
	case bus.ConfigTurbine:
		var online bool
		if err := json.Unmarshal(msg.Payload, &online); err != nil {
			a.log.Debug("malformed config", "error", err)
			return
		}
		a.mu.Lock()
		a.online = online
		a.mu.Unlock()
		a.log.Info("availability set", "online", online)
	default:
		a.log.Warn("unexpected topic", "topic", msg.Topic)
	}
}

func (a *Agent) handleTick(p tickgen.Payload) {
	switch p.Phase {
	case tickgen.PhaseProcess:
		a.processPhase(p)
	case tickgen.PhaseCommerce:
		// renewables sell first
	case tickgen.PhasePowerImport:
		a.mu.Lock()
		if a.online {
			a.trader.SellRound()
		}
		a.mu.Unlock()
	}
}

// processPhase reports the previous tick's sales and empties the book.
func (a *Agent) processPhase(p tickgen.Payload) {
	a.mu.Lock()
	entry := wire.ChartEntry{
		Topic:     Name,
		Payload:   int64(math.Round(a.trader.SoldThisTick)),
		Timestamp: p.Timestamp,
	}
	a.trader.Reset()
	a.mu.Unlock()

	a.bus.Publish(bus.TransformerGeneration, entry.Encode())
}

// handleBuyOffer buffers an offer only when it clears the price floor.
func (a *Agent) handleBuyOffer(o wire.Offer) {
	if o.Price < sellPrice {
		a.log.Debug("offer below floor", "offer", o.ID, "price", o.Price)
		return
	}
	a.mu.Lock()
	if a.online {
		a.trader.Collect(o)
	}
	a.mu.Unlock()
}
