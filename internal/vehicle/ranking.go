package vehicle

import (
	"math/rand"
	"sort"

	"powercable/internal/wire"
)

// PickOffer selects one charge offer according to the vehicle's
// algorithm. Offers beyond the vehicle's current range are discarded
// first; false means nothing reachable was offered.
func (v *Vehicle) PickOffer(offers []wire.ChargeOffer, rng *rand.Rand) (wire.ChargeOffer, bool) {
	reachable := offers[:0:0]
	rangeKm := v.RangeKm()
	for _, o := range offers {
		if v.Location.DistanceTo(o.ChargerPosition) <= rangeKm {
			reachable = append(reachable, o)
		}
	}
	if len(reachable) == 0 {
		return wire.ChargeOffer{}, false
	}

	switch v.Algorithm {
	case AlgorithmCheapest:
		best := reachable[0]
		for _, o := range reachable[1:] {
			if o.ChargePrice < best.ChargePrice {
				best = o
			}
		}
		return best, true

	case AlgorithmClosest:
		best := reachable[0]
		bestDist := v.Location.DistanceTo(best.ChargerPosition)
		for _, o := range reachable[1:] {
			if d := v.Location.DistanceTo(o.ChargerPosition); d < bestDist {
				best, bestDist = o, d
			}
		}
		return best, true

	case AlgorithmRandom:
		return reachable[rng.Intn(len(reachable))], true

	default: // Best
		return v.pickBest(reachable), true
	}
}

// pickBest orders offers by total cost and takes the first that covers
// the vehicle's need including the energy for the trip there. When no
// offer is big enough the cheapest wins.
func (v *Vehicle) pickBest(offers []wire.ChargeOffer) wire.ChargeOffer {
	sort.Slice(offers, func(i, j int) bool {
		ci := offers[i].ChargePrice * offers[i].ChargeAmount
		cj := offers[j].ChargePrice * offers[j].ChargeAmount
		if ci != cj {
			return ci < cj
		}
		return offers[i].ChargerName < offers[j].ChargerName
	})

	for _, o := range offers {
		energyForWay := v.Location.DistanceTo(o.ChargerPosition) * v.EffectiveConsumption() / 100
		needed := v.Battery.FreeCapacity() + energyForWay
		if o.ChargeAmount >= needed {
			return o
		}
	}
	return offers[0]
}
