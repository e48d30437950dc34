// Package transformer aggregates grid flows: per-tick consumption and
// generation, the wholesale price spread, and retail offer statistics.
package transformer

// Grid is the per-tick aggregation state.
type Grid struct {
	TotalConsumption   float64
	TotalGeneration    float64
	CurrentConsumption float64
	CurrentGeneration  float64
}

func (g *Grid) AddConsumption(kwh float64) {
	g.CurrentConsumption += kwh
	g.TotalConsumption += kwh
}

func (g *Grid) AddGeneration(kwh float64) {
	g.CurrentGeneration += kwh
	g.TotalGeneration += kwh
}

// Difference is generation minus consumption for the running tick.
func (g *Grid) Difference() float64 {
	return g.CurrentGeneration - g.CurrentConsumption
}

// Reset clears the per-tick counters, keeping the running totals.
func (g *Grid) Reset() {
	g.CurrentConsumption = 0
	g.CurrentGeneration = 0
}

// priceStats tracks the wholesale sales of one tick.
type priceStats struct {
	lowest float64
	total  float64
	count  float64
}

func newPriceStats() priceStats {
	return priceStats{lowest: 1.0}
}

func (p *priceStats) add(price float64) {
	p.total += price
	p.count++
	if price < p.lowest {
		p.lowest = price
	}
}

func (p *priceStats) average() float64 {
	if p.count == 0 {
		return 0
	}
	return p.total / p.count
}

// rollingAvg is a cumulative mean for the retail offer statistics.
type rollingAvg struct {
	sum   float64
	count float64
}

func (r *rollingAvg) add(v float64) {
	r.sum += v
	r.count++
}

func (r *rollingAvg) value() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sum / r.count
}
