// Package charger implements the charging-station agent: a bulk buyer
// on the wholesale market and the selling side of the retail protocol.
package charger

import (
	"math"

	"powercable/internal/geo"
)

// Charger is the station's accounting state. The invariants
// 0 <= reserved <= current <= capacity and 0 <= reservedPorts <= ports
// hold after every method.
type Charger struct {
	Name           string
	Position       geo.Position
	MaxRate        float64 // kW per tick
	Capacity       float64 // kWh
	CurrentCharge  float64
	ReservedCharge float64
	TotalPorts     int
	ReservedPorts  int
}

// SoC is the fill level in [0, 1].
func (c *Charger) SoC() float64 {
	if c.Capacity <= 0 {
		return 0
	}
	return c.CurrentCharge / c.Capacity
}

// AvailableCharge is the energy not earmarked for any vehicle.
func (c *Charger) AvailableCharge() float64 {
	return c.CurrentCharge - c.ReservedCharge
}

// FreePorts is the number of unoccupied charging ports.
func (c *Charger) FreePorts() int {
	return c.TotalPorts - c.ReservedPorts
}

// CurrentPrice is the retail price: cheaper the fuller the station.
func (c *Charger) CurrentPrice() float64 {
	return 1.1 - c.SoC()
}

// AddCharge stores bought energy, clamped at capacity. Returns the
// amount actually stored.
func (c *Charger) AddCharge(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	stored := math.Min(amount, c.Capacity-c.CurrentCharge)
	c.CurrentCharge += stored
	return stored
}

// ReserveCharge earmarks up to amount kWh for a vehicle and returns
// how much was actually reserved.
func (c *Charger) ReserveCharge(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	reserved := math.Min(amount, c.AvailableCharge())
	c.ReservedCharge += reserved
	return reserved
}

// ReleaseReservedCharge returns earmarked energy to the pool.
func (c *Charger) ReleaseReservedCharge(amount float64) {
	c.ReservedCharge = math.Max(0, c.ReservedCharge-amount)
}

// ReservePort occupies one port. Returns false when none is free.
func (c *Charger) ReservePort() bool {
	if c.FreePorts() <= 0 {
		return false
	}
	c.ReservedPorts++
	return true
}

// ReleasePort frees one port.
func (c *Charger) ReleasePort() {
	if c.ReservedPorts > 0 {
		c.ReservedPorts--
	}
}

// TakeReservedCharge delivers up to request kWh, consuming the reserved
// pool first and topping up from the available pool. Returns the energy
// actually deducted from the store.
func (c *Charger) TakeReservedCharge(request float64) float64 {
	if request <= 0 {
		return 0
	}
	fromReserved := math.Min(request, c.ReservedCharge)
	fromAvailable := math.Min(request-fromReserved, c.AvailableCharge())

	taken := fromReserved + fromAvailable
	c.ReservedCharge -= fromReserved
	c.CurrentCharge -= taken
	return taken
}
