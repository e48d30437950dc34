// Command curve-render prerenders the turbine power curves into the
// SQLite cache, so a simulation run starts without the interpolation
// delay. Rendering uses the same seeds as the simulation itself, which
// makes the dumped curves byte-for-byte the ones the run would build.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"powercable/internal/bus"
	"powercable/internal/supervisor"
	"powercable/internal/turbine"
)

func main() {
	turbines := flag.Int("turbines", 3, "number of turbine slots to render")
	cachePath := flag.String("curve-cache", "powercable.db", "SQLite power curve cache")
	flag.Parse()

	cache, err := turbine.OpenCurveCache(*cachePath)
	if err != nil {
		log.Fatalf("Opening curve cache: %v", err)
	}
	defer cache.Close()

	b := bus.New()

	fmt.Println()
	fmt.Println("Power Curve Prerender")
	fmt.Printf("  Cache: %s   Slots: %d\n", *cachePath, *turbines)
	fmt.Println()
	fmt.Printf("   %-16s │ %6s │ %8s │ %8s │ %8s │ %s\n",
		"Turbine", "Ticks", "Min kWh", "Mean kWh", "Max kWh", "Source")
	fmt.Printf("  ─────────────────┼────────┼──────────┼──────────┼──────────┼─────────\n")

	for i := 0; i < *turbines; i++ {
		seed := supervisor.Seed(i, supervisor.TypeTurbine)
		name := "Turbine " + supervisor.UniqueName(seed)

		curve, ok, err := cache.Load(name)
		if err != nil {
			log.Fatalf("Loading curve for %s: %v", name, err)
		}
		source := "cache"
		if !ok {
			a, err := turbine.New(name, seed, b, cache)
			if err != nil {
				log.Fatalf("Rendering curve for %s: %v", name, err)
			}
			curve = a.Curve()
			source = "rendered"
		}

		min, mean, max := curveStats(curve)
		fmt.Printf("   %-16s │ %6d │ %8.1f │ %8.1f │ %8.1f │ %s\n",
			name, len(curve), min, mean, max, source)
	}
	fmt.Println()
}

func curveStats(curve []float64) (min, mean, max float64) {
	if len(curve) == 0 {
		return 0, 0, 0
	}
	min = math.Inf(1)
	sum := 0.0
	for _, v := range curve {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, sum / float64(len(curve)), max
}
