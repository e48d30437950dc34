// Package tickgen drives the simulation clock: a single writer that
// advances through the Process, Commerce and PowerImport phases and
// publishes every step on tickgen/tick.
package tickgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"powercable/internal/bus"
)

// Phase is one third of a tick. The wire encoding is the phase name.
type Phase string

const (
	PhaseProcess     Phase = "Process"
	PhaseCommerce    Phase = "Commerce"
	PhasePowerImport Phase = "PowerImport"
)

// TickMinutes is the simulated length of one full tick.
const TickMinutes = 15

// Config is the runtime-adjustable part of the clock.
type Config struct {
	// Speed is the real-time wait between phase advances in seconds
	// (seconds per half phase).
	Speed float64 `json:"speed"`
	// StartDate anchors tick 0, RFC 3339.
	StartDate string `json:"start_date"`
	// AmountToRun stops the clock after this many ticks when positive.
	AmountToRun int64 `json:"amount_to_run,omitempty"`
}

// Payload is the JSON message published on tickgen/tick.
type Payload struct {
	Tick          uint64 `json:"tick"`
	Phase         Phase  `json:"phase"`
	Timestamp     int64  `json:"timestamp"` // ms since epoch
	Configuration Config `json:"configuration"`
}

func DecodePayload(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	switch p.Phase {
	case PhaseProcess, PhaseCommerce, PhasePowerImport:
	default:
		return p, fmt.Errorf("tickgen: unknown phase %q", p.Phase)
	}
	return p, nil
}

// Generator owns the clock state. All mutation happens under one lock;
// nothing downstream can block it because bus publishes never block.
type Generator struct {
	mu    sync.Mutex
	bus   *bus.Bus
	tick  uint64
	phase Phase
	cfg   Config
	start time.Time
	log   *slog.Logger
}

func New(b *bus.Bus, cfg Config) (*Generator, error) {
	if cfg.Speed <= 0 {
		cfg.Speed = 10
	}
	if cfg.StartDate == "" {
		cfg.StartDate = time.Now().UTC().Format(time.RFC3339)
	}
	start, err := time.Parse(time.RFC3339, cfg.StartDate)
	if err != nil {
		return nil, fmt.Errorf("tickgen: parsing start date: %w", err)
	}
	return &Generator{
		bus:   b,
		phase: PhaseProcess,
		cfg:   cfg,
		start: start,
		log:   slog.With("agent", "tickgen"),
	}, nil
}

// Snapshot returns the current payload without advancing.
func (g *Generator) Snapshot() Payload {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payloadLocked()
}

func (g *Generator) payloadLocked() Payload {
	ts := g.start.Add(time.Duration(g.tick) * TickMinutes * time.Minute)
	return Payload{
		Tick:          g.tick,
		Phase:         g.phase,
		Timestamp:     ts.UnixMilli(),
		Configuration: g.cfg,
	}
}

// Advance moves one half-period forward and returns the new payload.
// The tick increments when leaving PowerImport.
func (g *Generator) Advance() Payload {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.phase {
	case PhaseProcess:
		g.phase = PhaseCommerce
	case PhaseCommerce:
		g.phase = PhasePowerImport
	case PhasePowerImport:
		g.phase = PhaseProcess
		g.tick++
	}
	return g.payloadLocked()
}

// SetSpeed updates the wait between phase advances.
func (g *Generator) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	g.mu.Lock()
	g.cfg.Speed = speed
	g.mu.Unlock()
}

// SetConfig replaces the full clock configuration.
func (g *Generator) SetConfig(cfg Config) error {
	if cfg.Speed <= 0 {
		cfg.Speed = 10
	}
	if cfg.StartDate == "" {
		cfg.StartDate = time.Now().UTC().Format(time.RFC3339)
	}
	start, err := time.Parse(time.RFC3339, cfg.StartDate)
	if err != nil {
		return fmt.Errorf("tickgen: parsing start date: %w", err)
	}
	g.mu.Lock()
	g.cfg = cfg
	g.start = start
	g.mu.Unlock()
	return nil
}

func (g *Generator) publish(p Payload) {
	b, err := json.Marshal(p)
	if err != nil {
		g.log.Warn("marshal tick payload", "error", err)
		return
	}
	g.bus.PublishRetained(bus.TickTopic, b)
}

// Run publishes the initial tick, then advances every half-period until
// the context is cancelled or the configured tick budget runs out. One
// timer spans all iterations; configure traffic must not push out the
// pending phase advance, so the timer is reset only when the speed
// actually changed.
func (g *Generator) Run(ctx context.Context) error {
	sub := g.bus.Subscribe("tickgen", 0, bus.TickConfigure, bus.TickConfigureSpeed, bus.TickConfigureAmount)
	defer g.bus.Unsubscribe(sub)

	g.publish(g.Snapshot())
	if tick, done := g.budgetReached(); done {
		g.log.Info("tick budget reached", "ticks", tick)
		return nil
	}

	wait := g.wait()
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			g.handleConfigure(msg)
			if tick, done := g.budgetReached(); done {
				g.log.Info("tick budget reached", "ticks", tick)
				return nil
			}
			if w := g.wait(); w != wait {
				wait = w
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(wait)
			}
		case <-timer.C:
			g.publish(g.Advance())
			if tick, done := g.budgetReached(); done {
				g.log.Info("tick budget reached", "ticks", tick)
				return nil
			}
			wait = g.wait()
			timer.Reset(wait)
		}
	}
}

func (g *Generator) wait() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Duration(g.cfg.Speed * float64(time.Second))
}

func (g *Generator) budgetReached() (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tick, g.cfg.AmountToRun > 0 && g.tick >= uint64(g.cfg.AmountToRun)
}

func (g *Generator) handleConfigure(msg bus.Message) {
	switch msg.Topic {
	case bus.TickConfigureSpeed:
		speed, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload)), 64)
		if err != nil {
			g.log.Debug("invalid speed payload", "error", err)
			return
		}
		g.SetSpeed(speed)
		g.log.Info("speed updated", "speed", speed)
	case bus.TickConfigure:
		var cfg Config
		if err := json.Unmarshal(msg.Payload, &cfg); err != nil {
			g.log.Debug("invalid configure payload", "error", err)
			return
		}
		if err := g.SetConfig(cfg); err != nil {
			g.log.Debug("rejected configure payload", "error", err)
			return
		}
		g.log.Info("configuration updated", "speed", cfg.Speed, "start_date", cfg.StartDate)
	case bus.TickConfigureAmount:
		n, err := strconv.ParseInt(strings.TrimSpace(string(msg.Payload)), 10, 64)
		if err != nil {
			g.log.Debug("invalid amount_to_run payload", "error", err)
			return
		}
		g.mu.Lock()
		g.cfg.AmountToRun = n
		g.mu.Unlock()
		g.log.Info("tick budget updated", "amount", n)
	default:
		g.log.Warn("unexpected topic", "topic", msg.Topic)
	}
}
