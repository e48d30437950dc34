package charger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"powercable/internal/bus"
	"powercable/internal/geo"
	"powercable/internal/market"
	"powercable/internal/tickgen"
	"powercable/internal/wire"
)

// maxPackagesPerTick caps how many wholesale packages a charger asks
// for in one Process phase.
const maxPackagesPerTick = 100

// ReservedOffer is the charger's side of one retail transaction, keyed
// by the vehicle's name.
type ReservedOffer struct {
	VehicleName string
	Quantity    float64
	Price       float64
	Accepted    bool
}

// Agent wires a Charger onto the bus.
type Agent struct {
	mu   sync.Mutex
	c    *Charger
	bus  *bus.Bus
	book *market.Book
	log  *slog.Logger

	visible          bool
	reserved         []ReservedOffer
	consumedLastTick float64
	totalEarned      float64
}

// New builds a charger with deterministically seeded position and
// dimensions.
func New(name string, seed int64, b *bus.Bus) *Agent {
	rng := rand.New(rand.NewSource(seed))
	capacity := 200 + rng.Float64()*200 // 200..400 kWh
	c := &Charger{
		Name:          name,
		Position:      geo.RandomPosition(rng),
		MaxRate:       50 + rng.Float64()*100,
		Capacity:      capacity,
		CurrentCharge: capacity * (0.3 + rng.Float64()*0.4),
		TotalPorts:    2 + rng.Intn(5),
	}
	return &Agent{
		c:       c,
		bus:     b,
		book:    market.NewBook(),
		log:     slog.With("agent", name),
		visible: true,
	}
}

// State returns a copy of the charger accounting for inspection.
func (a *Agent) State() Charger {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.c
}

// Run consumes the agent's inbox until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	sub := a.bus.Subscribe(a.c.Name, 0,
		bus.TickTopic,
		bus.AcceptBuyOfferTopic,
		bus.ChargerRequest,
		bus.ChargerAccept,
		bus.ChargerChargingGet,
		bus.ChargerChargingRelease,
		bus.ConfigVehicle,
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
	case bus.AcceptBuyOfferTopic:
		offer, err := wire.DecodeOffer(msg.Payload)
		if err != nil {
			a.log.Debug("malformed accept", "error", err)
			return
		}
		a.handleAccept(offer)
	case bus.ChargerRequest:
		req, err := wire.DecodeChargeRequest(msg.Payload)
		if err != nil {
			a.log.Debug("malformed charge request", "error", err)
			return
		}
		a.handleChargeRequest(req)
	case bus.ChargerAccept:
		acc, err := wire.DecodeChargeAccept(msg.Payload)
		if err != nil {
			a.log.Debug("malformed charge accept", "error", err)
			return
		}
		a.handleChargeAccept(acc)
	case bus.ChargerChargingGet:
		get, err := wire.DecodeGet(msg.Payload)
		if err != nil {
			a.log.Debug("malformed get", "error", err)
			return
		}
		a.handleGet(get)
	case bus.ChargerChargingRelease:
		get, err := wire.DecodeGet(msg.Payload)
		if err != nil {
			a.log.Debug("malformed release", "error", err)
			return
		}
		a.handleRelease(get)
	case bus.ConfigVehicle:
		var visible bool
		if err := json.Unmarshal(msg.Payload, &visible); err != nil {
			a.log.Debug("malformed visibility config", "error", err)
			return
		}
		a.mu.Lock()
		a.visible = visible
		a.mu.Unlock()
	default:
		a.log.Warn("unexpected topic", "topic", msg.Topic)
	}
}

// processPhase reports last tick's consumption, then rebuilds the buy
// side of the book: one offer per missing package, priced by how empty
// the store would still be.
func (a *Agent) processPhase(p tickgen.Payload) {
	a.mu.Lock()

	entry := wire.ChartEntry{
		Topic:     a.c.Name,
		Payload:   int64(math.Round(a.consumedLastTick)),
		Timestamp: p.Timestamp,
	}
	a.consumedLastTick = 0

	a.book.Clear()
	missing := a.c.Capacity - a.c.CurrentCharge
	packages := int(math.Ceil(missing / wire.OfferPackageSize))
	if packages > maxPackagesPerTick {
		packages = maxPackagesPerTick
	}

	offers := make([]wire.Offer, 0, packages)
	for i := 0; i < packages; i++ {
		price := 1 - (a.c.CurrentCharge+float64(i)*wire.OfferPackageSize)/a.c.Capacity
		offer := wire.Offer{
			ID:        fmt.Sprintf("%s-%d", a.c.Name, i),
			Price:     math.Max(0.1, price),
			Amount:    wire.OfferPackageSize,
			Latitude:  a.c.Position.Latitude,
			Longitude: a.c.Position.Longitude,
		}
		a.book.Add(offer)
		offers = append(offers, offer)
	}
	a.mu.Unlock()

	a.bus.Publish(bus.TransformerConsumption, entry.Encode())
	for _, o := range offers {
		a.bus.Publish(bus.BuyOfferTopic, o.Encode())
	}
	a.publishLocation()
}

// handleAccept acks the first producer that accepted one of our buy
// offers; the energy is booked immediately.
func (a *Agent) handleAccept(offer wire.Offer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if offer.AcceptedBy == "" {
		a.log.Warn("accept without accepted_by", "offer", offer.ID)
		return
	}
	if !a.book.Has(offer.ID) && !a.book.HasSent(offer.ID) {
		return
	}
	if a.book.HasSent(offer.ID) {
		// somebody already won this one
		return
	}

	offer.AckFor = offer.AcceptedBy
	a.book.AddSent(offer)
	a.book.Remove(offer.ID)

	stored := a.c.AddCharge(offer.Amount)
	if stored < offer.Amount {
		a.log.Debug("clamped overfill", "offer", offer.ID, "dropped", offer.Amount-stored)
	}
	a.consumedLastTick += offer.Amount

	a.bus.Publish(bus.AckAcceptBuyOffer, offer.Encode())
	a.log.Debug("bought package",
		"offer", offer.ID, "from", offer.AcceptedBy, "price", offer.Price)
}

// handleChargeRequest reserves energy and a port for the vehicle and
// answers with a charge offer. With no free port the request is
// dropped silently.
func (a *Agent) handleChargeRequest(req wire.ChargeRequest) {
	a.mu.Lock()

	// a repeated request supersedes the vehicle's earlier reservation
	if idx := a.findReserved(req.VehicleName); idx >= 0 {
		a.releaseLocked(idx, true)
	}

	if a.c.FreePorts() == 0 {
		a.log.Info("no free ports", "vehicle", req.VehicleName)
		a.mu.Unlock()
		return
	}

	energyForWay := req.VehiclePosition.DistanceTo(a.c.Position) * req.Consumption / 100
	wanted := req.ChargeAmount + energyForWay
	reserved := a.c.ReserveCharge(wanted)
	a.c.ReservePort()

	price := a.c.CurrentPrice()
	a.reserved = append(a.reserved, ReservedOffer{
		VehicleName: req.VehicleName,
		Quantity:    reserved,
		Price:       price,
	})

	offer := wire.ChargeOffer{
		ChargerName:     a.c.Name,
		VehicleName:     req.VehicleName,
		ChargePrice:     price,
		ChargeAmount:    reserved,
		ChargerPosition: a.c.Position,
	}
	a.mu.Unlock()

	a.log.Info("offering charge",
		"vehicle", req.VehicleName, "amount", reserved, "price", price)
	a.bus.Publish(bus.ChargerOffer, offer.Encode())
}

// handleChargeAccept commits or rolls back a reservation depending on
// which charger the vehicle picked.
func (a *Agent) handleChargeAccept(acc wire.ChargeAccept) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.findReserved(acc.VehicleName)
	if idx < 0 {
		return
	}
	if acc.ChargerName != a.c.Name {
		a.log.Debug("vehicle chose another charger",
			"vehicle", acc.VehicleName, "winner", acc.ChargerName)
		a.releaseLocked(idx, true)
		return
	}
	a.reserved[idx].Accepted = true
	a.log.Info("reservation committed", "vehicle", acc.VehicleName)
}

// handleGet delivers one retail portion and acks the amount actually
// taken from the store.
func (a *Agent) handleGet(get wire.Get) {
	if get.ChargerName != a.c.Name {
		return
	}

	a.mu.Lock()
	idx := a.findReserved(get.VehicleName)
	if idx < 0 {
		a.log.Warn("get from vehicle without reservation", "vehicle", get.VehicleName)
		a.mu.Unlock()
		return
	}

	delivered := a.c.TakeReservedCharge(get.Amount)
	a.reserved[idx].Quantity = math.Max(0, a.reserved[idx].Quantity-delivered)
	a.totalEarned += delivered * a.reserved[idx].Price
	a.mu.Unlock()

	ack := wire.Get{ChargerName: a.c.Name, VehicleName: get.VehicleName, Amount: delivered}
	a.bus.Publish(bus.ChargerChargingAck, ack.Encode())
}

// handleRelease frees the port. The reserved energy was consumed by
// the Gets, so it is not returned to the pool.
func (a *Agent) handleRelease(get wire.Get) {
	if get.ChargerName != a.c.Name {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.findReserved(get.VehicleName)
	if idx < 0 {
		return
	}
	a.log.Info("vehicle released", "vehicle", get.VehicleName)
	a.releaseLocked(idx, false)
}

// releaseLocked removes reservation idx. Must be called with mu held.
func (a *Agent) releaseLocked(idx int, releaseReservedCharge bool) {
	if releaseReservedCharge {
		a.c.ReleaseReservedCharge(a.reserved[idx].Quantity)
	}
	a.c.ReleasePort()
	a.reserved = append(a.reserved[:idx], a.reserved[idx+1:]...)
}

func (a *Agent) findReserved(vehicle string) int {
	for i := range a.reserved {
		if a.reserved[i].VehicleName == vehicle {
			return i
		}
	}
	return -1
}

func (a *Agent) publishLocation() {
	a.mu.Lock()
	if !a.visible {
		a.mu.Unlock()
		return
	}
	loc := wire.Location{
		Name:  a.c.Name,
		Lat:   a.c.Position.Latitude,
		Lon:   a.c.Position.Longitude,
		Icon:  ":electric_plug:",
		Label: fmt.Sprintf("%.0f%%", a.c.SoC()*100),
	}
	a.mu.Unlock()
	a.bus.PublishRetained(bus.PowerLocation, loc.Encode())
}
