package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"powercable/internal/bus"
)

func TestSeed_DeterministicAndDisjoint(t *testing.T) {
	assert.Equal(t, int64(1)*3+0x0725, Seed(0, TypeVehicle))
	assert.Equal(t, int64(3)*11+0x0725, Seed(2, TypeConsumer))
	assert.Equal(t, Seed(4, TypeTurbine), Seed(4, TypeTurbine))

	// the first few slots of each population never share a seed
	seen := make(map[int64]bool)
	for _, typ := range []AgentType{TypeVehicle, TypeTurbine, TypeCharger, TypeConsumer} {
		for i := 0; i < 3; i++ {
			s := Seed(i, typ)
			assert.False(t, seen[s], "seed collision at %d", s)
			seen[s] = true
		}
	}
}

func TestUniqueName(t *testing.T) {
	n1 := UniqueName(42)
	n2 := UniqueName(42)
	assert.Equal(t, n1, n2)
	require.NotEmpty(t, n1)

	assert.GreaterOrEqual(t, len(n1), 3)
	assert.LessOrEqual(t, len(n1), 9)
	assert.GreaterOrEqual(t, n1[0], byte('A'))
	assert.LessOrEqual(t, n1[0], byte('Z'))
	for _, c := range n1[1:] {
		assert.GreaterOrEqual(t, c, 'a')
		assert.LessOrEqual(t, c, 'z')
	}

	assert.NotEqual(t, UniqueName(1), UniqueName(2))
}

// flakyAgent crashes a fixed number of times before settling down.
type flakyAgent struct {
	builds  *atomic.Int64
	crashes int64
}

func (f *flakyAgent) Run(ctx context.Context) error {
	if f.builds.Load() <= f.crashes {
		return errors.New("boom")
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWatch_RebuildsCrashedAgent(t *testing.T) {
	s := New(bus.New(), Config{RestartDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	var builds atomic.Int64
	s.watch(gctx, g, "flaky", func() (runner, error) {
		builds.Add(1)
		return &flakyAgent{builds: &builds, crashes: 2}, nil
	})

	require.Eventually(t, func() bool { return builds.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, g.Wait())
}

func TestWatch_PanicIsContained(t *testing.T) {
	s := New(bus.New(), Config{RestartDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	var builds atomic.Int64
	s.watch(gctx, g, "panicky", func() (runner, error) {
		builds.Add(1)
		return &panicAgent{builds: &builds}, nil
	})

	require.Eventually(t, func() bool { return builds.Load() >= 2 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, g.Wait())
}

type panicAgent struct {
	builds *atomic.Int64
}

func (p *panicAgent) Run(ctx context.Context) error {
	if p.builds.Load() == 1 {
		panic("agent exploded")
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestNew_DefaultsRestartDelay(t *testing.T) {
	s := New(bus.New(), Config{})
	assert.Equal(t, time.Second, s.cfg.RestartDelay)
}
