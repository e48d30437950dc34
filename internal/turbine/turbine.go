// Package turbine implements the wind-turbine producer: a precomputed
// power curve derived from approximated station weather, sold on the
// wholesale market package by package.
package turbine

import "math"

// gasConstant is the specific gas constant of dry air in J/(kg·K).
const gasConstant = 287.1

// cpPoint is one row of the E-101 coefficient table.
type cpPoint struct {
	windSpeed float64 // m/s
	cp        float64
}

// cpTable is the manufacturer power-coefficient curve of the E-101.
// Above 25 m/s the blades feather out and the coefficient falls to
// zero at cut-off.
var cpTable = []cpPoint{
	{1.0, 0.000},
	{2.0, 0.076},
	{3.0, 0.279},
	{4.0, 0.376},
	{5.0, 0.421},
	{6.0, 0.452},
	{7.0, 0.469},
	{8.0, 0.478},
	{9.0, 0.478},
	{10.0, 0.477},
	{11.0, 0.439},
	{12.0, 0.358},
	{13.0, 0.283},
	{14.0, 0.227},
	{15.0, 0.184},
	{16.0, 0.152},
	{17.0, 0.127},
	{18.0, 0.107},
	{19.0, 0.091},
	{20.0, 0.078},
	{21.0, 0.067},
	{22.0, 0.058},
	{23.0, 0.051},
	{24.0, 0.045},
	{25.0, 0.040},
	{34.0, 0.0},
}

// PowerCoefficient interpolates the E-101 table linearly at the given
// wind speed, clamping outside the table range.
func PowerCoefficient(wind float64) float64 {
	if wind <= cpTable[0].windSpeed {
		return cpTable[0].cp
	}
	if wind >= cpTable[len(cpTable)-1].windSpeed {
		return cpTable[len(cpTable)-1].cp
	}
	for i := 0; i < len(cpTable)-1; i++ {
		a, b := cpTable[i], cpTable[i+1]
		if wind >= a.windSpeed && wind <= b.windSpeed {
			t := (wind - a.windSpeed) / (b.windSpeed - a.windSpeed)
			return a.cp + t*(b.cp-a.cp)
		}
	}
	return 0
}

// AirDensity derives kg/m³ from pressure in Pa and temperature in K.
func AirDensity(pressure, temperature float64) float64 {
	if temperature <= 0 {
		return 0
	}
	return pressure / (gasConstant * temperature)
}

// Rotor is the physical turbine.
type Rotor struct {
	Diameter float64 // m
}

// Area is the swept rotor disc in m².
func (r Rotor) Area() float64 {
	return math.Pi * math.Pow(r.Diameter/2, 2)
}

// PowerWatts is the instantaneous output for the given weather,
// 0.5·ρ·A·Cp(v)·v³.
func (r Rotor) PowerWatts(wind, temperature, pressure float64) float64 {
	density := AirDensity(pressure, temperature)
	return 0.5 * density * r.Area() * PowerCoefficient(wind) * math.Pow(wind, 3)
}

// EnergyKWh converts an instantaneous wattage into the energy of one
// simulation tick.
func EnergyKWh(watts, tickHours float64) float64 {
	return watts * tickHours / 1000
}
