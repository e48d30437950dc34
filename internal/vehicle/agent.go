package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"powercable/internal/bus"
	"powercable/internal/geo"
	"powercable/internal/tickgen"
	"powercable/internal/wire"
)

// model is one entry of the vehicle catalogue.
type model struct {
	name        string
	capacity    float64 // kWh
	consumption float64 // kWh per 100 km
	maxCharge   float64 // kW
}

var models = []model{
	{"ID.3", 58.0, 15.3, 120},
	{"Model 3", 60.0, 14.9, 170},
	{"Zoe", 52.0, 17.7, 46},
	{"e-Up", 32.3, 14.5, 37},
	{"Taycan", 83.7, 20.2, 225},
	{"Kona", 64.0, 14.7, 77},
}

// Agent runs one vehicle on the bus: it drives, hunts for chargers
// under its deadline, and executes the vehicle half of the retail
// charging protocol.
type Agent struct {
	mu  sync.Mutex
	v   *Vehicle
	bus *bus.Bus
	rng *rand.Rand
	log *slog.Logger

	visible bool
	offers  []wire.ChargeOffer
	target  *wire.ChargeOffer // nil until an offer has been accepted
}

// New seeds a vehicle deterministically: position, model and initial
// state of charge all come from the agent's own generator.
func New(name string, seed int64, b *bus.Bus) *Agent {
	rng := rand.New(rand.NewSource(seed))
	m := models[rng.Intn(len(models))]
	pos := geo.RandomPosition(rng)
	dest := geo.RandomPosition(rng)
	soc := 0.3 + rng.Float64()*0.6

	v := &Vehicle{
		Name:        name,
		Model:       m.name,
		Status:      StatusRandom,
		Algorithm:   AlgorithmBest,
		Location:    pos,
		NextStop:    dest,
		Destination: dest,
		Consumption: m.consumption,
		Scale:       1.0,
		Battery:     NewBattery(m.capacity, soc, m.maxCharge),
	}
	v.RenewDeadline()

	return &Agent{
		v:       v,
		bus:     b,
		rng:     rng,
		log:     slog.With("agent", name),
		visible: true,
	}
}

// Snapshot returns a copy of the vehicle state for inspection.
func (a *Agent) Snapshot() Vehicle {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := *a.v
	bat := *a.v.Battery
	v.Battery = &bat
	return v
}

// Run consumes the agent's inbox until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	sub := a.bus.Subscribe(a.v.Name, 0,
		bus.TickTopic,
		bus.ChargerOffer,
		bus.ChargerChargingAck,
		bus.WorldmapEvent,
		bus.ConfigVehicle,
		bus.ConfigVehicleScale,
		bus.ConfigVehicleAlgorithm,
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
	case bus.ChargerOffer:
		offer, err := wire.DecodeChargeOffer(msg.Payload)
		if err != nil {
			a.log.Debug("malformed charge offer", "error", err)
			return
		}
		a.handleOffer(offer)
	case bus.ChargerChargingAck:
		get, err := wire.DecodeGet(msg.Payload)
		if err != nil {
			a.log.Debug("malformed charging ack", "error", err)
			return
		}
		a.handleChargingAck(get)
	case bus.WorldmapEvent:
		loc, err := wire.DecodeLocation(msg.Payload)
		if err != nil {
			a.log.Debug("malformed worldmap event", "error", err)
			return
		}
		if loc.Icon == ":car:" {
			a.publishState()
		}
	case bus.ConfigVehicle:
		var visible bool
		if err := json.Unmarshal(msg.Payload, &visible); err != nil {
			a.log.Debug("malformed visibility config", "error", err)
			return
		}
		a.mu.Lock()
		a.visible = visible
		a.mu.Unlock()
	case bus.ConfigVehicleScale:
		scale, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload)), 64)
		if err != nil {
			a.log.Debug("malformed scale config", "error", err)
			return
		}
		a.mu.Lock()
		a.v.Scale = scale
		a.mu.Unlock()
	case bus.ConfigVehicleAlgorithm:
		var name string
		if err := json.Unmarshal(msg.Payload, &name); err != nil {
			name = strings.TrimSpace(string(msg.Payload))
		}
		alg, err := ParseAlgorithm(name)
		if err != nil {
			a.log.Debug("unknown algorithm", "name", name)
			return
		}
		a.mu.Lock()
		a.v.Algorithm = alg
		a.mu.Unlock()
		a.log.Info("algorithm changed", "algorithm", alg)
	default:
		a.log.Warn("unexpected topic", "topic", msg.Topic)
	}
}

func (a *Agent) handleTick(p tickgen.Payload) {
	switch p.Phase {
	case tickgen.PhaseProcess:
		a.processPhase()
	case tickgen.PhaseCommerce:
		a.commercePhase()
	case tickgen.PhasePowerImport:
		// vehicles sit the import phase out
	}
}

// processPhase runs the behaviour state machine, then one motion step,
// then the periodic publications.
func (a *Agent) processPhase() {
	a.mu.Lock()
	v := a.v
	v.Deadline.TicksRemaining--

	requested := false
	request := func() {
		if requested {
			return
		}
		requested = true
		v.Status = StatusSearchingForCharger
		a.publishChargeRequest()
	}

	if a.target == nil {
		if v.Battery.SoC() <= findChargerAtLeast {
			request()
		}
		switch {
		case v.Deadline.TicksRemaining <= 0:
			if v.Battery.SoC() < v.Deadline.TargetSoC {
				a.log.Warn("deadline missed",
					"soc", v.Battery.SoC(), "target", v.Deadline.TargetSoC)
			}
			v.RenewDeadline()
		case v.Deadline.TicksRemaining <= 60:
			if v.Battery.SoC() >= v.Deadline.TargetSoC {
				v.Status = StatusParked
			} else {
				request()
			}
		case v.Location == v.Destination:
			if a.rng.Intn(11) == 0 {
				v.Destination = geo.RandomPosition(a.rng)
				v.NextStop = v.Destination
				v.Status = StatusRandom
			} else {
				v.Status = StatusParked
			}
		}
	} else if v.Deadline.TicksRemaining <= 0 {
		// the charger went silent; give up and roam again
		a.log.Warn("abandoning charger on deadline", "charger", a.target.ChargerName)
		a.target = nil
		v.Status = StatusRandom
		v.Destination = geo.RandomPosition(a.rng)
		v.NextStop = v.Destination
		v.RenewDeadline()
	} else if v.Location.IsNear(v.NextStop) {
		switch v.Status {
		case StatusSearchingForCharger:
			a.log.Info("arrived at charger", "charger", a.target.ChargerName)
			v.Status = StatusCharging
		case StatusCharging:
			a.publishGet(v.Battery.MaxAddableCharge())
		}
	}

	v.Drive()
	a.mu.Unlock()

	a.publishLocation()
	a.publishState()
}

// commercePhase accepts the best collected offer, if any. A vehicle
// already committed to a charger ignores the round.
func (a *Agent) commercePhase() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.target != nil || len(a.offers) == 0 {
		return
	}

	offer, ok := a.v.PickOffer(a.offers, a.rng)
	a.offers = a.offers[:0]
	if !ok {
		a.log.Debug("no reachable offer this tick")
		return
	}

	energyForWay := a.v.Location.DistanceTo(offer.ChargerPosition) * a.v.EffectiveConsumption() / 100
	accept := wire.ChargeAccept{
		ChargerName: offer.ChargerName,
		VehicleName: a.v.Name,
		RealAmount:  offer.ChargeAmount + energyForWay,
	}

	a.target = &offer
	a.v.Status = StatusSearchingForCharger
	a.v.NextStop = offer.ChargerPosition

	a.log.Info("accepting charge offer",
		"charger", offer.ChargerName, "amount", offer.ChargeAmount, "price", offer.ChargePrice)
	a.bus.Publish(bus.ChargerAccept, accept.Encode())
}

func (a *Agent) handleOffer(offer wire.ChargeOffer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if offer.VehicleName != a.v.Name {
		return
	}
	if a.target != nil {
		// already committed, further offers are ignored until release
		return
	}
	a.offers = append(a.offers, offer)
	a.log.Debug("collected charge offer",
		"charger", offer.ChargerName, "amount", offer.ChargeAmount, "price", offer.ChargePrice)
}

func (a *Agent) handleChargingAck(get wire.Get) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if get.VehicleName != a.v.Name {
		return
	}
	if a.target == nil || get.ChargerName != a.target.ChargerName {
		a.log.Debug("ack from unexpected charger", "charger", get.ChargerName)
		return
	}

	// a zero-amount ack is valid and advances nothing
	if get.Amount > 0 {
		a.v.Battery.AddCharge(get.Amount)
	}

	if a.v.Battery.SoC() >= 0.95 {
		release := wire.Get{ChargerName: get.ChargerName, VehicleName: a.v.Name}
		a.bus.Publish(bus.ChargerChargingRelease, release.Encode())
		a.log.Info("charged up, releasing", "charger", get.ChargerName, "soc", a.v.Battery.SoC())

		a.target = nil
		a.v.Status = StatusRandom
		a.v.Destination = geo.RandomPosition(a.rng)
		a.v.NextStop = a.v.Destination
	}
}

func (a *Agent) publishChargeRequest() {
	req := wire.ChargeRequest{
		VehicleName:     a.v.Name,
		ChargeAmount:    a.v.Battery.FreeCapacity(),
		Consumption:     a.v.EffectiveConsumption(),
		VehiclePosition: a.v.Location,
	}
	a.log.Info("requesting charge", "amount", req.ChargeAmount)
	a.bus.Publish(bus.ChargerRequest, req.Encode())
}

func (a *Agent) publishGet(amount float64) {
	get := wire.Get{
		ChargerName: a.target.ChargerName,
		VehicleName: a.v.Name,
		Amount:      amount,
	}
	a.bus.Publish(bus.ChargerChargingGet, get.Encode())
}

func (a *Agent) publishLocation() {
	a.mu.Lock()
	if !a.visible {
		a.mu.Unlock()
		return
	}
	loc := wire.Location{
		Name:  a.v.Name,
		Lat:   a.v.Location.Latitude,
		Lon:   a.v.Location.Longitude,
		Icon:  ":car:",
		Label: fmt.Sprintf("%.1f%%", a.v.Battery.SoC()*100),
	}
	a.mu.Unlock()
	a.bus.PublishRetained(bus.PowerLocation, loc.Encode())
}

func (a *Agent) publishState() {
	a.mu.Lock()
	b, err := json.Marshal(a.v)
	name := a.v.Name
	a.mu.Unlock()
	if err != nil {
		a.log.Debug("marshal vehicle state", "error", err)
		return
	}
	a.bus.PublishRetained(bus.VehicleTopic+"/"+name, b)
}
