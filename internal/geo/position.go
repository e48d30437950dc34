package geo

import (
	"math"
	"math/rand"
)

// EarthRadiusKm is the sphere radius used for haversine distances.
const EarthRadiusKm = 6371.0

// nearThresholdKm is the distance below which two positions count as "near".
const nearThresholdKm = 6.0

// Bounding quadrilateral of Germany used for random placement.
var (
	NorthLimit = Position{Latitude: 54.236555997661384, Longitude: 9.828710882743488}  // Kiel
	EastLimit  = Position{Latitude: 51.57629017432522, Longitude: 12.427933450893512}  // Leipzig
	SouthLimit = Position{Latitude: 49.11158947259421, Longitude: 10.206213793834436}  // Stuttgart
	WestLimit  = Position{Latitude: 51.00929968161735, Longitude: 6.282484743251983}   // Essen
)

// Position is a geographical point in degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceTo returns the great-circle distance to other in kilometers.
func (p Position) DistanceTo(other Position) float64 {
	lat1 := p.Latitude * math.Pi / 180
	lon1 := p.Longitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	lon2 := other.Longitude * math.Pi / 180

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// IsNear reports whether other is within the near threshold.
func (p Position) IsNear(other Position) bool {
	return p.DistanceTo(other) < nearThresholdKm
}

// StepToward returns the point a fraction ratio along the straight line
// from p to target. ratio >= 1 lands on target.
func (p Position) StepToward(target Position, ratio float64) Position {
	if ratio >= 1 {
		return target
	}
	if ratio <= 0 {
		return p
	}
	return Position{
		Latitude:  p.Latitude + (target.Latitude-p.Latitude)*ratio,
		Longitude: p.Longitude + (target.Longitude-p.Longitude)*ratio,
	}
}

// RandomPosition samples a position uniformly within the German bounds.
func RandomPosition(rng *rand.Rand) Position {
	lat := SouthLimit.Latitude + rng.Float64()*(NorthLimit.Latitude-SouthLimit.Latitude)
	lon := WestLimit.Longitude + rng.Float64()*(EastLimit.Longitude-WestLimit.Longitude)
	return Position{Latitude: lat, Longitude: lon}
}
