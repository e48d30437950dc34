package turbine

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"powercable/internal/geo"
)

// Station is one meteorological measuring point.
type Station struct {
	ID       int
	Name     string
	Position geo.Position
}

// Source yields the station list for one metric and each station's
// per-tick time series. Implementations may hit the network once at
// startup; the result feeds the precomputed curve only.
type Source interface {
	Stations() ([]Station, error)
	Series(station Station, ticks int) ([]float64, error)
}

// weighted pairs a station with its inverse-distance share.
type weighted struct {
	station Station
	ratio   float64
}

// nearestStations picks the count closest stations to pos and assigns
// inverse-distance weights normalised to 1.
func nearestStations(pos geo.Position, stations []Station, count int) []weighted {
	sorted := make([]Station, len(stations))
	copy(sorted, stations)
	sort.Slice(sorted, func(i, j int) bool {
		return pos.DistanceTo(sorted[i].Position) < pos.DistanceTo(sorted[j].Position)
	})
	if count > len(sorted) {
		count = len(sorted)
	}
	sorted = sorted[:count]

	sum := 0.0
	inv := make([]float64, len(sorted))
	for i, s := range sorted {
		d := pos.DistanceTo(s.Position)
		if d < 0.001 {
			d = 0.001
		}
		inv[i] = 1 / d
		sum += inv[i]
	}

	out := make([]weighted, len(sorted))
	for i, s := range sorted {
		out[i] = weighted{station: s, ratio: inv[i] / sum}
	}
	return out
}

// Approximator interpolates one metric at a fixed position from the 3
// nearest stations of its source.
type Approximator struct {
	nearest []weighted
	series  [][]float64
}

// NewApproximator resolves the station list once and pulls the full
// series of the nearest stations.
func NewApproximator(src Source, pos geo.Position, ticks int) (*Approximator, error) {
	stations, err := src.Stations()
	if err != nil {
		return nil, fmt.Errorf("turbine: station list: %w", err)
	}
	if len(stations) == 0 {
		return nil, fmt.Errorf("turbine: source has no stations")
	}

	nearest := nearestStations(pos, stations, 3)
	series := make([][]float64, len(nearest))
	for i, w := range nearest {
		s, err := src.Series(w.station, ticks)
		if err != nil {
			return nil, fmt.Errorf("turbine: series for station %d: %w", w.station.ID, err)
		}
		series[i] = s
	}
	return &Approximator{nearest: nearest, series: series}, nil
}

// At returns the inverse-distance-weighted value for one tick.
func (a *Approximator) At(tick int) float64 {
	v := 0.0
	for i, w := range a.nearest {
		s := a.series[i]
		v += w.ratio * s[tick%len(s)]
	}
	return v
}

// SyntheticSource generates deterministic weather series in place of
// the station archives: a daily and a yearly sinusoid plus station
// noise, parameterised per metric.
type SyntheticSource struct {
	metric string
	seed   int64

	base      float64
	dailyAmp  float64
	yearlyAmp float64
	noiseAmp  float64
	min       float64
}

// NewSyntheticWind models wind speed in m/s.
func NewSyntheticWind(seed int64) *SyntheticSource {
	return &SyntheticSource{
		metric: "wind", seed: seed,
		base: 6.5, dailyAmp: 2.5, yearlyAmp: 2.0, noiseAmp: 1.5, min: 0,
	}
}

// NewSyntheticTemperature models air temperature in K.
func NewSyntheticTemperature(seed int64) *SyntheticSource {
	return &SyntheticSource{
		metric: "temperature", seed: seed,
		base: 283.15, dailyAmp: 4.0, yearlyAmp: 9.0, noiseAmp: 0.8, min: 230,
	}
}

const (
	syntheticStationCount = 12
	ticksPerDay           = 96
	ticksPerYear          = 96 * 365
)

// Stations lays a deterministic grid of stations over the region.
func (s *SyntheticSource) Stations() ([]Station, error) {
	rng := rand.New(rand.NewSource(s.seed))
	stations := make([]Station, syntheticStationCount)
	for i := range stations {
		stations[i] = Station{
			ID:       i + 1,
			Name:     fmt.Sprintf("%s-station-%d", s.metric, i+1),
			Position: geo.RandomPosition(rng),
		}
	}
	return stations, nil
}

// Series renders the station's deterministic time series.
func (s *SyntheticSource) Series(station Station, ticks int) ([]float64, error) {
	rng := rand.New(rand.NewSource(s.seed + int64(station.ID)*7919))
	phase := rng.Float64() * 2 * math.Pi
	local := 0.9 + rng.Float64()*0.2

	out := make([]float64, ticks)
	for t := range out {
		daily := s.dailyAmp * math.Sin(2*math.Pi*float64(t)/ticksPerDay+phase)
		yearly := s.yearlyAmp * math.Sin(2*math.Pi*float64(t)/ticksPerYear)
		noise := (rng.Float64()*2 - 1) * s.noiseAmp
		v := s.base*local + daily + yearly + noise
		if v < s.min {
			v = s.min
		}
		out[t] = v
	}
	return out, nil
}
