package turbine

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

const (
	// cachedEntries is the length of the precomputed cyclic curve,
	// roughly two simulated years of quarter-hour ticks.
	cachedEntries = 70000

	// standardPressure stands in for a station pressure series; the
	// archives carry wind and temperature only.
	standardPressure = 101325.0

	tickHours = 15.0 / 60.0
)

// Agent is one wind turbine on the bus: a producer that sells its
// precomputed per-tick output on the wholesale market.
type Agent struct {
	mu     sync.Mutex
	trader *market.Trader
	bus    *bus.Bus
	log    *slog.Logger

	name     string
	position geo.Position
	rotor    Rotor
	curve    []float64
	tick     int
	scale    float64
	visible  bool
}

// New seeds the turbine and renders its power curve. A curve found in
// the cache skips the interpolation; a freshly computed one is dumped
// back for the next start.
func New(name string, seed int64, b *bus.Bus, cache *CurveCache) (*Agent, error) {
	rng := rand.New(rand.NewSource(seed))
	a := &Agent{
		trader:   market.NewTrader(name, b, false),
		bus:      b,
		log:      slog.With("agent", name),
		name:     name,
		position: geo.RandomPosition(rng),
		rotor:    Rotor{Diameter: 80 + rng.Float64()*40},
		scale:    1.0,
		visible:  true,
	}

	if cache != nil {
		curve, ok, err := cache.Load(name)
		if err != nil {
			return nil, err
		}
		if ok {
			a.log.Info("loaded cached power curve", "ticks", len(curve))
			a.curve = curve
			return a, nil
		}
	}

	curve, err := a.renderCurve(seed)
	if err != nil {
		return nil, err
	}
	a.curve = curve
	if cache != nil {
		if err := cache.Save(name, curve); err != nil {
			a.log.Warn("dumping power curve failed", "error", err)
		}
	}
	return a, nil
}

// renderCurve interpolates station weather at the turbine's position
// and runs the rotor physics for every tick of the cycle.
func (a *Agent) renderCurve(seed int64) ([]float64, error) {
	wind, err := NewApproximator(NewSyntheticWind(seed), a.position, cachedEntries)
	if err != nil {
		return nil, err
	}
	temperature, err := NewApproximator(NewSyntheticTemperature(seed), a.position, cachedEntries)
	if err != nil {
		return nil, err
	}

	curve := make([]float64, cachedEntries)
	for t := range curve {
		watts := a.rotor.PowerWatts(wind.At(t), temperature.At(t), standardPressure)
		curve[t] = EnergyKWh(watts, tickHours)
	}
	a.log.Info("rendered power curve", "ticks", len(curve), "rotor_m", a.rotor.Diameter)
	return curve, nil
}

// Curve exposes the rendered per-tick curve, kWh per entry.
func (a *Agent) Curve() []float64 {
	return a.curve
}

// PowerOutput is the scaled curve value for the current tick.
func (a *Agent) PowerOutput() float64 {
	return a.curve[a.tick%len(a.curve)] * a.scale
}

// Run consumes the agent's inbox until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	sub := a.bus.Subscribe(a.name, 0,
		bus.TickTopic,
		bus.BuyOfferTopic,
		bus.AckAcceptBuyOffer,
		bus.ConfigTurbine,
		bus.ConfigTurbineScale,
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
		a.mu.Lock()
		if a.visible {
			a.trader.Collect(offer)
		}
		a.mu.Unlock()
	case bus.AckAcceptBuyOffer:
		offer, err := wire.DecodeOffer(msg.Payload)
		if err != nil {
			a.log.Debug("malformed ack", "error", err)
			return
		}
		a.mu.Lock()
		if a.trader.HandleAck(offer) {
			// power may remain for further outstanding offers
			a.trader.SellRound()
		}
		a.mu.Unlock()
	case bus.ConfigTurbine:
		var visible bool
		if err := json.Unmarshal(msg.Payload, &visible); err != nil {
			a.log.Debug("malformed visibility config", "error", err)
			return
		}
		a.mu.Lock()
		a.visible = visible
		a.mu.Unlock()
		a.log.Info("visibility set", "visible", visible)
	case bus.ConfigTurbineScale:
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
		a.processPhase(p)
	case tickgen.PhaseCommerce:
		a.mu.Lock()
		if a.visible {
			a.trader.SellRound()
		}
		a.mu.Unlock()
	case tickgen.PhasePowerImport:
		// the reactor's phase, turbines sit it out
	}
}

// processPhase settles the last tick and loads the next curve value as
// sellable power.
func (a *Agent) processPhase(p tickgen.Payload) {
	a.mu.Lock()
	a.trader.Reset()
	a.tick++
	a.trader.RemainingPower = a.PowerOutput()

	entry := wire.ChartEntry{
		Topic:     a.name,
		Payload:   int64(math.Round(a.trader.RemainingPower)),
		Timestamp: p.Timestamp,
	}
	visible := a.visible
	a.mu.Unlock()

	if !visible {
		return
	}
	a.bus.Publish(bus.TransformerGeneration, entry.Encode())
	a.publishLocation()
}

func (a *Agent) publishLocation() {
	a.mu.Lock()
	loc := wire.Location{
		Name:  a.name,
		Lat:   a.position.Latitude,
		Lon:   a.position.Longitude,
		Icon:  ":cyclone:",
		Label: fmt.Sprintf("%.0f kWh", a.trader.RemainingPower),
	}
	a.mu.Unlock()
	a.bus.PublishRetained(bus.PowerLocation, loc.Encode())
}
