package market

import (
	"log/slog"

	"powercable/internal/bus"
	"powercable/internal/wire"
)

// Trader is the producer half of the wholesale auction: it collects buy
// offers, commits available power against the cheapest ones, and
// reconciles the buyer acks that decide each race. The turbine and the
// fusion reactor both embed one.
type Trader struct {
	Name string
	Book *Book

	// Unlimited producers (the fusion reactor) ignore RemainingPower.
	Unlimited      bool
	RemainingPower float64

	TotalEarned   float64
	SoldThisTick  float64
	TotalProduced float64

	bus *bus.Bus
	log *slog.Logger
}

func NewTrader(name string, b *bus.Bus, unlimited bool) *Trader {
	return &Trader{
		Name:      name,
		Book:      NewBook(),
		Unlimited: unlimited,
		bus:       b,
		log:       slog.With("agent", name),
	}
}

// Collect buffers a buy offer for the next sell round.
func (t *Trader) Collect(o wire.Offer) {
	t.Book.Add(o)
}

// SellRound accepts buy offers cheapest-first while the producer's
// remaining power exceeds a package, publishing each accept on
// market/accept_buy_offer. Returns the number of accepts sent.
func (t *Trader) SellRound() int {
	sent := 0
	for {
		if !t.Unlimited && t.RemainingPower <= wire.OfferPackageSize {
			break
		}
		offer, ok := t.Book.BestNonSent()
		if !ok {
			break
		}

		offer.AcceptedBy = t.Name
		t.Book.AddSent(offer)
		t.Book.Remove(offer.ID)
		if !t.Unlimited {
			t.RemainingPower -= offer.Amount
		}
		t.bus.Publish(bus.AcceptBuyOfferTopic, offer.Encode())
		t.log.Debug("accepted buy offer",
			"offer", offer.ID, "price", offer.Price, "amount", offer.Amount)
		sent++
	}
	return sent
}

// HandleAck reconciles a buyer's ack. If another producer won the race
// the reserved power flows back into RemainingPower. Returns true when
// the ack confirms this producer's sale.
func (t *Trader) HandleAck(o wire.Offer) bool {
	if o.AckFor == "" {
		t.log.Warn("ack without ack_for", "offer", o.ID)
		return false
	}
	if !t.Book.HasSent(o.ID) {
		return false
	}
	t.Book.RemoveSent(o.ID)

	if o.AckFor != t.Name {
		if !t.Unlimited {
			t.RemainingPower += o.Amount
		}
		t.log.Debug("lost accept race", "offer", o.ID, "winner", o.AckFor)
		return false
	}

	t.TotalEarned += o.Amount * o.Price
	t.SoldThisTick += o.Amount
	t.log.Debug("sale confirmed", "offer", o.ID, "amount", o.Amount, "price", o.Price)
	return true
}

// Reset clears the book and the per-tick sales counter at the start of
// a new tick.
func (t *Trader) Reset() {
	t.Book.Clear()
	t.TotalProduced += t.SoldThisTick
	t.SoldThisTick = 0
}
