package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"powercable/internal/bus"
	"powercable/internal/geo"
	"powercable/internal/market"
	"powercable/internal/tickgen"
	"powercable/internal/wire"
)

// personsPerReference scales the SLP reference of 1000 kWh/a up to the
// assumed 2000 kWh/a per person.
const personsPerReference = 2.0

// Agent replays one profile timeline as wholesale demand.
type Agent struct {
	mu   sync.Mutex
	bus  *bus.Bus
	book *market.Book
	log  *slog.Logger

	name       string
	profile    Profile
	timeline   Timeline
	position   geo.Position
	population float64
	rng        *rand.Rand

	tick               int64
	scale              float64
	visible            bool
	currentConsumption float64
}

// New seeds a consumer of the given profile. A zero timeline falls
// back to the synthetic profile shape.
func New(profile Profile, seed int64, b *bus.Bus, timeline Timeline) *Agent {
	rng := rand.New(rand.NewSource(seed))
	empty := true
	for _, v := range timeline {
		if v != 0 {
			empty = false
			break
		}
	}
	if empty {
		timeline = SyntheticTimeline(profile)
	}

	name := fmt.Sprintf("%s Consumer", profile)
	return &Agent{
		bus:        b,
		book:       market.NewBook(),
		log:        slog.With("agent", name),
		name:       name,
		profile:    profile,
		timeline:   timeline,
		position:   geo.RandomPosition(rng),
		population: 500 + rng.Float64()*1500,
		rng:        rng,
		scale:      1.0,
		visible:    true,
	}
}

// Demand is the unscaled kWh drawn in the current tick.
func (a *Agent) Demand() float64 {
	return a.timeline.At(a.tick) * personsPerReference * a.population * a.scale
}

// Run consumes the agent's inbox until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	sub := a.bus.Subscribe(a.name, 0,
		bus.TickTopic,
		bus.AcceptBuyOfferTopic,
		bus.ConfigConsumer,
		bus.ConfigConsumerScale,
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
	case bus.AcceptBuyOfferTopic:
		offer, err := wire.DecodeOffer(msg.Payload)
		if err != nil {
			a.log.Debug("malformed accept", "error", err)
			return
		}
		a.handleAccept(offer)
	case bus.ConfigConsumer:
		var visible bool
		if err := json.Unmarshal(msg.Payload, &visible); err != nil {
			a.log.Debug("malformed visibility config", "error", err)
			return
		}
		a.mu.Lock()
		a.visible = visible
		a.mu.Unlock()
	case bus.ConfigConsumerScale:
		scale, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload)), 64)
		if err != nil {
			a.log.Debug("malformed scale config", "error", err)
			return
		}
		a.mu.Lock()
		a.scale = scale
		a.mu.Unlock()
		a.log.Info("scale set", "scale", scale)
	default:
		a.log.Warn("unexpected topic", "topic", msg.Topic)
	}
}

func (a *Agent) handleTick(p tickgen.Payload) {
	switch p.Phase {
	case tickgen.PhaseProcess:
		a.processPhase()
	case tickgen.PhaseCommerce:
		a.commercePhase(p)
	case tickgen.PhasePowerImport:
		// nothing to do, the reactor covers whatever is still open
	}
}

// processPhase publishes one maximum-price buy offer per package of
// the tick's demand.
func (a *Agent) processPhase() {
	a.mu.Lock()
	a.tick++
	a.book.Clear()
	// the profile value wobbles by up to 5% each tick
	demand := a.Demand() * (1 + (a.rng.Float64()-0.5)*0.1)
	a.currentConsumption = demand

	packages := int(math.Ceil(demand / wire.OfferPackageSize))
	offers := make([]wire.Offer, 0, packages)
	for i := 0; i < packages; i++ {
		offer := wire.Offer{
			ID:        fmt.Sprintf("%s-%d", a.profile, i),
			Price:     1.0,
			Amount:    wire.OfferPackageSize,
			Latitude:  a.position.Latitude,
			Longitude: a.position.Longitude,
		}
		a.book.Add(offer)
		offers = append(offers, offer)
	}
	visible := a.visible
	a.mu.Unlock()

	if !visible {
		return
	}
	for _, o := range offers {
		a.bus.Publish(bus.BuyOfferTopic, o.Encode())
	}
	a.publishLocation()
}

// commercePhase reports the running consumption to the transformer.
func (a *Agent) commercePhase(p tickgen.Payload) {
	a.mu.Lock()
	entry := wire.ChartEntry{
		Topic:     string(a.profile),
		Payload:   int64(math.Round(a.currentConsumption)),
		Timestamp: p.Timestamp,
	}
	visible := a.visible
	a.mu.Unlock()

	if !visible {
		return
	}
	a.bus.Publish(bus.TransformerConsumption, entry.Encode())
}

// handleAccept acks the first producer per offer; later accepts for
// the same package lose the race.
func (a *Agent) handleAccept(offer wire.Offer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if offer.AcceptedBy == "" {
		a.log.Warn("accept without accepted_by", "offer", offer.ID)
		return
	}
	if !a.book.Has(offer.ID) || a.book.HasSent(offer.ID) {
		return
	}

	offer.AckFor = offer.AcceptedBy
	a.book.AddSent(offer)
	a.book.Remove(offer.ID)
	a.bus.Publish(bus.AckAcceptBuyOffer, offer.Encode())
	a.log.Debug("demand covered",
		"offer", offer.ID, "by", offer.AcceptedBy, "price", offer.Price)
}

func (a *Agent) publishLocation() {
	a.mu.Lock()
	loc := wire.Location{
		Name:  a.name,
		Lat:   a.position.Latitude,
		Lon:   a.position.Longitude,
		Icon:  ":house:",
		Label: fmt.Sprintf("%.0f kWh", a.currentConsumption),
	}
	a.mu.Unlock()
	a.bus.PublishRetained(bus.PowerLocation, loc.Encode())
}
