package charger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharger_Derived(t *testing.T) {
	c := &Charger{Capacity: 200, CurrentCharge: 80, ReservedCharge: 30, TotalPorts: 4, ReservedPorts: 1}

	assert.InDelta(t, 0.4, c.SoC(), 1e-9)
	assert.InDelta(t, 50, c.AvailableCharge(), 1e-9)
	assert.Equal(t, 3, c.FreePorts())
	assert.InDelta(t, 0.7, c.CurrentPrice(), 1e-9)
}

func TestAddCharge_ClampsAtCapacity(t *testing.T) {
	c := &Charger{Capacity: 100, CurrentCharge: 90}

	assert.InDelta(t, 10, c.AddCharge(25), 1e-9)
	assert.InDelta(t, 100, c.CurrentCharge, 1e-9)
	assert.Zero(t, c.AddCharge(25))
	assert.Zero(t, c.AddCharge(-1))
}

func TestReserveCharge_LimitedByAvailable(t *testing.T) {
	c := &Charger{Capacity: 100, CurrentCharge: 50, ReservedCharge: 30}

	assert.InDelta(t, 20, c.ReserveCharge(40), 1e-9)
	assert.InDelta(t, 50, c.ReservedCharge, 1e-9)
	assert.Zero(t, c.AvailableCharge())
	assert.Zero(t, c.ReserveCharge(10))
}

func TestReleaseReservedCharge_NeverNegative(t *testing.T) {
	c := &Charger{Capacity: 100, CurrentCharge: 50, ReservedCharge: 10}

	c.ReleaseReservedCharge(25)
	assert.Zero(t, c.ReservedCharge)
}

func TestPorts(t *testing.T) {
	c := &Charger{TotalPorts: 2}

	assert.True(t, c.ReservePort())
	assert.True(t, c.ReservePort())
	assert.False(t, c.ReservePort())
	assert.Zero(t, c.FreePorts())

	c.ReleasePort()
	assert.Equal(t, 1, c.FreePorts())
	c.ReleasePort()
	c.ReleasePort()
	assert.Equal(t, 2, c.FreePorts())
}

func TestTakeReservedCharge_SpillsIntoAvailable(t *testing.T) {
	c := &Charger{Capacity: 100, CurrentCharge: 40, ReservedCharge: 10}

	taken := c.TakeReservedCharge(25)
	assert.InDelta(t, 25, taken, 1e-9)
	assert.Zero(t, c.ReservedCharge)
	assert.InDelta(t, 15, c.CurrentCharge, 1e-9)
}

func TestTakeReservedCharge_ReservedFirst(t *testing.T) {
	c := &Charger{Capacity: 100, CurrentCharge: 60, ReservedCharge: 30}

	taken := c.TakeReservedCharge(20)
	assert.InDelta(t, 20, taken, 1e-9)
	assert.InDelta(t, 10, c.ReservedCharge, 1e-9)
	assert.InDelta(t, 40, c.CurrentCharge, 1e-9)
}

func TestTakeReservedCharge_CappedByStore(t *testing.T) {
	c := &Charger{Capacity: 100, CurrentCharge: 12, ReservedCharge: 12}

	taken := c.TakeReservedCharge(50)
	assert.InDelta(t, 12, taken, 1e-9)
	assert.Zero(t, c.CurrentCharge)
	assert.Zero(t, c.ReservedCharge)
}
