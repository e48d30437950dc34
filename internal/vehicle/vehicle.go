package vehicle

import (
	"fmt"

	"powercable/internal/geo"
)

// Status is the vehicle's behaviour state.
type Status string

const (
	StatusRandom              Status = "Random"
	StatusParked              Status = "Parked"
	StatusSearchingForCharger Status = "SearchingForCharger"
	StatusCharging            Status = "Charging"
	StatusBroken              Status = "Broken"
)

// Algorithm selects how a vehicle ranks charge offers.
type Algorithm string

const (
	AlgorithmBest     Algorithm = "Best"
	AlgorithmRandom   Algorithm = "Random"
	AlgorithmClosest  Algorithm = "Closest"
	AlgorithmCheapest Algorithm = "Cheapest"
)

// ParseAlgorithm maps a config payload to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmBest, AlgorithmRandom, AlgorithmClosest, AlgorithmCheapest:
		return Algorithm(s), nil
	}
	return "", fmt.Errorf("vehicle: unknown algorithm %q", s)
}

// Deadline is the per-vehicle countdown to a target state of charge.
// It auto-renews when it lapses.
type Deadline struct {
	TicksRemaining int64   `json:"ticks_remaining"`
	TargetSoC      float64 `json:"target_soc"`
}

const (
	// deadlineRenewTicks is a full simulated day.
	deadlineRenewTicks = 288
	deadlineRenewSoC   = 0.8

	// findChargerAtLeast is the SoC at which a vehicle starts looking
	// for a charger regardless of its deadline.
	findChargerAtLeast = 0.30

	// phaseHours is the driving time integrated per Process tick.
	phaseHours = 5.0 / 60.0
)

// Vehicle is the mobile agent's mutable state.
type Vehicle struct {
	Name        string       `json:"name"`
	Model       string       `json:"model"`
	Status      Status       `json:"status"`
	Algorithm   Algorithm    `json:"algorithm"`
	Location    geo.Position `json:"location"`
	NextStop    geo.Position `json:"next_stop"`
	Destination geo.Position `json:"destination"`
	Consumption float64      `json:"consumption"` // kWh per 100 km
	Scale       float64      `json:"scale"`
	Speed       float64      `json:"speed"` // km/h
	Battery     *Battery     `json:"battery"`
	Deadline    Deadline     `json:"deadline"`
}

// EffectiveConsumption folds the user scale and the speed penalty into
// the base consumption.
func (v *Vehicle) EffectiveConsumption() float64 {
	speedFactor := 1 + 0.0005*v.Speed + 3e-5*v.Speed*v.Speed
	return v.Consumption * v.Scale * speedFactor
}

// updateSpeed applies the SoC-dependent speed policy.
func (v *Vehicle) updateSpeed() {
	switch v.Status {
	case StatusParked, StatusCharging, StatusBroken:
		v.Speed = 0
		return
	}
	soc := v.Battery.SoC()
	switch {
	case soc < 0.2:
		v.Speed = 30
	case soc < 0.5:
		v.Speed = 60
	default:
		v.Speed = 90
	}
}

// Drive integrates one tick of motion toward NextStop. The distance
// actually covered shrinks when the battery underdelivers.
func (v *Vehicle) Drive() {
	v.updateSpeed()
	if v.Speed == 0 {
		return
	}

	wantedDistance := v.Speed * phaseHours
	wantedEnergy := v.EffectiveConsumption() / 100 * wantedDistance
	usedEnergy := v.Battery.RemoveCharge(wantedEnergy)
	if usedEnergy <= 0 {
		return
	}
	chargeFactor := wantedEnergy / usedEnergy

	totalDistance := v.Location.DistanceTo(v.NextStop) * chargeFactor
	if totalDistance <= 0 {
		return
	}
	if totalDistance <= wantedDistance {
		v.Location = v.NextStop
		return
	}
	v.Location = v.Location.StepToward(v.NextStop, wantedDistance/totalDistance)
}

// RangeKm estimates how far the vehicle can still drive.
func (v *Vehicle) RangeKm() float64 {
	consumption := v.EffectiveConsumption()
	if consumption <= 0 {
		return 0
	}
	return v.Battery.Level / consumption * 100
}

// RenewDeadline resets the countdown to a day and the default target.
func (v *Vehicle) RenewDeadline() {
	v.Deadline = Deadline{TicksRemaining: deadlineRenewTicks, TargetSoC: deadlineRenewSoC}
}
