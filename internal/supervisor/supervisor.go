// Package supervisor spawns the grid population and keeps it alive:
// every agent gets a deterministic seed derived from its slot, and a
// crashed agent is respawned from that same seed.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"powercable/internal/bus"
	"powercable/internal/charger"
	"powercable/internal/consumer"
	"powercable/internal/reactor"
	"powercable/internal/transformer"
	"powercable/internal/turbine"
	"powercable/internal/vehicle"
)

// AgentType seeds are prime so slot indices of different populations
// never collide.
type AgentType int64

const (
	TypeVehicle  AgentType = 3
	TypeTurbine  AgentType = 5
	TypeCharger  AgentType = 7
	TypeConsumer AgentType = 11
)

// seedBase offsets every derived seed.
const seedBase = 0x07_25

// Seed derives the deterministic seed for slot i of one population.
func Seed(i int, t AgentType) int64 {
	return int64(i+1)*int64(t) + seedBase
}

const (
	vowels     = "aeiou"
	consonants = "bcdfghjklmnpqrstvwxyz"
)

// UniqueName renders a pronounceable agent name from a seed.
func UniqueName(seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	vowel := func() byte { return vowels[rng.Intn(len(vowels))] }
	consonant := func() byte { return consonants[rng.Intn(len(consonants))] }

	var word []byte
	for i := 0; i < 3; i++ {
		switch rng.Intn(4) {
		case 0:
			word = append(word, vowel())
		case 1:
			word = append(word, vowel(), consonant())
		case 2:
			word = append(word, consonant(), vowel())
		case 3:
			word = append(word, consonant(), vowel(), consonant())
		}
	}
	if len(word) == 0 {
		return ""
	}
	if word[0] >= 'a' && word[0] <= 'z' {
		word[0] -= 'a' - 'A'
	}
	return string(word)
}

// Config sizes the grid population.
type Config struct {
	Chargers int
	Turbines int
	Vehicles int

	// CurveCache is shared by all turbines; nil disables the dump.
	CurveCache *turbine.CurveCache

	// Timelines overrides the synthetic profile shapes per class.
	Timelines map[consumer.Profile]consumer.Timeline

	// RestartDelay throttles watchdog respawns.
	RestartDelay time.Duration
}

// runner is the common shape of every agent.
type runner interface {
	Run(ctx context.Context) error
}

// Supervisor owns the agent goroutines.
type Supervisor struct {
	bus *bus.Bus
	cfg Config
	log *slog.Logger
}

func New(b *bus.Bus, cfg Config) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	return &Supervisor{bus: b, cfg: cfg, log: slog.With("component", "supervisor")}
}

// Run spawns the population and blocks until the context is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	s.watch(ctx, g, "transformer", func() (runner, error) {
		return transformer.New(s.bus), nil
	})
	s.watch(ctx, g, reactor.Name, func() (runner, error) {
		return reactor.New(s.bus), nil
	})

	for i := 0; i < s.cfg.Chargers; i++ {
		seed := Seed(i, TypeCharger)
		name := "Charger " + UniqueName(seed)
		s.watch(ctx, g, name, func() (runner, error) {
			return charger.New(name, seed, s.bus), nil
		})
	}
	for i := 0; i < s.cfg.Turbines; i++ {
		seed := Seed(i, TypeTurbine)
		name := "Turbine " + UniqueName(seed)
		s.watch(ctx, g, name, func() (runner, error) {
			return turbine.New(name, seed, s.bus, s.cfg.CurveCache)
		})
	}
	for i := 0; i < s.cfg.Vehicles; i++ {
		seed := Seed(i, TypeVehicle)
		name := UniqueName(seed)
		s.watch(ctx, g, name, func() (runner, error) {
			return vehicle.New(name, seed, s.bus), nil
		})
	}
	for i, profile := range []consumer.Profile{
		consumer.ProfileHousehold,
		consumer.ProfileCommercial,
		consumer.ProfileAgriculture,
	} {
		seed := Seed(i, TypeConsumer)
		profile := profile
		s.watch(ctx, g, string(profile), func() (runner, error) {
			return consumer.New(profile, seed, s.bus, s.cfg.Timelines[profile]), nil
		})
	}

	s.log.Info("population spawned",
		"chargers", s.cfg.Chargers, "turbines", s.cfg.Turbines, "vehicles", s.cfg.Vehicles)
	return g.Wait()
}

// watch runs one agent slot: build, run, and on a crash rebuild from
// the same factory so the deterministic personality is restored.
func (s *Supervisor) watch(ctx context.Context, g *errgroup.Group, name string, build func() (runner, error)) {
	g.Go(func() error {
		for {
			r, err := build()
			if err != nil {
				return fmt.Errorf("supervisor: building %s: %w", name, err)
			}

			err = s.runGuarded(ctx, r)
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("agent stopped, restarting", "agent", name, "error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.RestartDelay):
			}
		}
	})
}

// runGuarded converts an agent panic into an error so the watchdog can
// respawn instead of taking the process down.
func (s *Supervisor) runGuarded(ctx context.Context, r runner) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("supervisor: agent panic: %v", rec)
		}
	}()
	return r.Run(ctx)
}
