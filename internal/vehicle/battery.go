package vehicle

import "math"

const (
	chargeEfficiency    = 0.90
	dischargeEfficiency = 0.94

	// minDelivery is the smallest usable energy RemoveCharge reports
	// while any charge remains (1 Wh).
	minDelivery = 0.001
)

// Battery is the non-linear EV battery model. Levels are kWh.
type Battery struct {
	MaxCapacity float64
	Level       float64
	MaxCharge   float64 // max charge rate per tick, kW
}

func NewBattery(capacity, soc, maxCharge float64) *Battery {
	return &Battery{
		MaxCapacity: capacity,
		Level:       capacity * soc,
		MaxCharge:   maxCharge,
	}
}

// SoC is the state of charge in [0, 1].
func (b *Battery) SoC() float64 {
	if b.MaxCapacity <= 0 {
		return 0
	}
	return b.Level / b.MaxCapacity
}

// FreeCapacity is the energy the battery can still take.
func (b *Battery) FreeCapacity() float64 {
	return b.MaxCapacity - b.Level
}

// chargeScaling models the charge curve: trickle below 10% SoC, full
// current to 80%, then a taper toward full.
func (b *Battery) chargeScaling() float64 {
	soc := b.SoC()
	switch {
	case soc < 0.1:
		return 0.1
	case soc < 0.8:
		return 1.0
	default:
		return math.Pow((1-soc)/0.2, 1.5)
	}
}

// MaxAddableCharge is the most the battery would accept in one tick,
// before efficiency losses.
func (b *Battery) MaxAddableCharge() float64 {
	return math.Min(b.MaxCharge*b.chargeScaling(), b.FreeCapacity())
}

// AddCharge feeds the battery the requested energy, clamped to the
// charge rate and scaled by the charge curve. Returns the energy drawn
// from the source.
func (b *Battery) AddCharge(request float64) float64 {
	if request <= 0 {
		return 0
	}
	drawn := math.Min(request, b.MaxCharge) * b.chargeScaling()
	b.Level = math.Min(b.Level+drawn*chargeEfficiency, b.MaxCapacity)
	return drawn
}

// RemoveCharge withdraws energy for driving. The battery delivers the
// demand scaled by the discharge efficiency, or whatever is left. A
// non-empty battery never reports less than 1 Wh delivered.
func (b *Battery) RemoveCharge(request float64) float64 {
	if request <= 0 {
		return 0
	}
	demand := request * dischargeEfficiency
	var delivered float64
	if b.Level >= demand {
		b.Level -= demand
		delivered = demand
	} else {
		delivered = b.Level * dischargeEfficiency
		b.Level = 0
	}
	if delivered < minDelivery && delivered > 0 {
		delivered = minDelivery
	}
	return delivered
}
