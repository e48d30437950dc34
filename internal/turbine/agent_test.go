package turbine

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powercable/internal/bus"
	"powercable/internal/market"
	"powercable/internal/tickgen"
	"powercable/internal/wire"
)

func curveAgent(b *bus.Bus, curve []float64) *Agent {
	return &Agent{
		trader:  market.NewTrader("Turbine Ruka", b, false),
		bus:     b,
		log:     slog.With("agent", "Turbine Ruka"),
		name:    "Turbine Ruka",
		curve:   curve,
		scale:   1.0,
		visible: true,
	}
}

func TestProcessPhase_LoadsCurveValue(t *testing.T) {
	b := bus.New()
	gen := b.Subscribe("observer", 16, bus.TransformerGeneration)

	a := curveAgent(b, []float64{100, 200, 50})
	a.processPhase(tickgen.Payload{Timestamp: 5000})

	assert.InDelta(t, 200, a.trader.RemainingPower, 1e-9)

	select {
	case msg := <-gen.C():
		entry, err := wire.DecodeChartEntry(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, "Turbine Ruka", entry.Topic)
		assert.Equal(t, int64(200), entry.Payload)
		assert.Equal(t, int64(5000), entry.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no generation entry published")
	}
}

func TestProcessPhase_CurveWrapsAndScales(t *testing.T) {
	a := curveAgent(bus.New(), []float64{100, 200})
	a.scale = 0.5

	a.processPhase(tickgen.Payload{})
	assert.InDelta(t, 100, a.trader.RemainingPower, 1e-9) // curve[1] * 0.5
	a.processPhase(tickgen.Payload{})
	assert.InDelta(t, 50, a.trader.RemainingPower, 1e-9) // curve[0] * 0.5
}

func TestProcessPhase_InvisibleStaysQuiet(t *testing.T) {
	b := bus.New()
	gen := b.Subscribe("observer", 16, bus.TransformerGeneration)

	a := curveAgent(b, []float64{100, 200})
	a.visible = false
	a.processPhase(tickgen.Payload{})

	select {
	case <-gen.C():
		t.Fatal("invisible turbine published generation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCommercePhase_SellsCollectedOffers(t *testing.T) {
	b := bus.New()
	accepts := b.Subscribe("observer", 16, bus.AcceptBuyOfferTopic)

	a := curveAgent(b, []float64{0, 60})
	a.processPhase(tickgen.Payload{})
	a.dispatch(bus.Message{Topic: bus.BuyOfferTopic,
		Payload: wire.Offer{ID: "Charger Wexa-0", Price: 0.6, Amount: 25}.Encode()})
	a.handleTick(tickgen.Payload{Phase: tickgen.PhaseCommerce})

	select {
	case msg := <-accepts.C():
		offer, err := wire.DecodeOffer(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, "Turbine Ruka", offer.AcceptedBy)
	case <-time.After(time.Second):
		t.Fatal("no accept published")
	}
}

func TestNew_CurveComesBackFromCache(t *testing.T) {
	b := bus.New()
	cache, err := OpenCurveCache(filepath.Join(t.TempDir(), "curves.db"))
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Save("Turbine Ruka", []float64{1, 2, 3}))

	a, err := New("Turbine Ruka", 77, b, cache)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, a.curve)
}

func TestNew_SameSeedSameCurve(t *testing.T) {
	b := bus.New()

	a1, err := New("Turbine Ruka", 77, b, nil)
	require.NoError(t, err)
	a2, err := New("Turbine Ruka", 77, b, nil)
	require.NoError(t, err)

	require.Len(t, a1.curve, cachedEntries)
	assert.Equal(t, a1.curve[:100], a2.curve[:100])
	assert.Equal(t, a1.position, a2.position)
}
