package transformer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powercable/internal/bus"
	"powercable/internal/geo"
	"powercable/internal/tickgen"
	"powercable/internal/wire"
)

func feed(a *Agent, topic string, payload []byte) {
	a.dispatch(bus.Message{Topic: topic, Payload: payload})
}

// collectRetained drains everything the agent published synchronously.
func collectRetained(t *testing.T, sub *bus.Subscription) map[string]wire.ChartEntry {
	t.Helper()
	out := make(map[string]wire.ChartEntry)
	for {
		select {
		case msg := <-sub.C():
			entry, err := wire.DecodeChartEntry(msg.Payload)
			require.NoError(t, err)
			out[msg.Topic+"/"+entry.Topic] = entry
		default:
			return out
		}
	}
}

func TestProcessPhase_PublishesGridStats(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("observer", 64,
		bus.TransformerStats, bus.TransformerDiff, bus.TransformerEarnings)

	a := New(b)
	feed(a, bus.TransformerConsumption, wire.ChartEntry{Topic: "Charger Wexa", Payload: 50}.Encode())
	feed(a, bus.TransformerConsumption, wire.ChartEntry{Topic: "H0", Payload: 30}.Encode())
	feed(a, bus.TransformerGeneration, wire.ChartEntry{Topic: "Turbine Ruka", Payload: 100}.Encode())

	ts := int64(tickgen.TickMinutes * 60 * 1000 * 2)
	a.processPhase(tickgen.Payload{Timestamp: ts})

	stats := collectRetained(t, sub)
	wantTS := ts - tickgen.TickMinutes*60*1000

	require.Contains(t, stats, bus.TransformerStats+"/Consumption")
	assert.Equal(t, int64(80), stats[bus.TransformerStats+"/Consumption"].Payload)
	assert.Equal(t, wantTS, stats[bus.TransformerStats+"/Consumption"].Timestamp)
	assert.Equal(t, int64(100), stats[bus.TransformerStats+"/Generation"].Payload)
	assert.Equal(t, int64(20), stats[bus.TransformerDiff+"/Total"].Payload)

	// per-tick counters reset, totals survive
	assert.Zero(t, a.grid.CurrentConsumption)
	assert.InDelta(t, 80, a.grid.TotalConsumption, 1e-9)
}

func TestOwnEntriesAreNotFedBack(t *testing.T) {
	a := New(bus.New())
	feed(a, bus.TransformerConsumption, wire.ChartEntry{Topic: "Total", Payload: 500}.Encode())
	feed(a, bus.TransformerGeneration, wire.ChartEntry{Topic: "Total", Payload: 500}.Encode())

	assert.Zero(t, a.grid.CurrentConsumption)
	assert.Zero(t, a.grid.CurrentGeneration)
}

func TestHandleAck_ConsumerOffersExcludedFromPrices(t *testing.T) {
	a := New(bus.New())

	feed(a, bus.AckAcceptBuyOffer,
		wire.Offer{ID: "Charger Wexa-0", Price: 0.6, Amount: 25, AckFor: "Turbine Ruka"}.Encode())
	feed(a, bus.AckAcceptBuyOffer,
		wire.Offer{ID: "H0-0", Price: 1.0, Amount: 25, AckFor: "Fusion Reactor"}.Encode())

	// both count toward earnings, only the charger sale prices
	assert.InDelta(t, 25*0.6+25*1.0, a.totalEarnings, 1e-9)
	assert.InDelta(t, 1, a.prices.count, 1e-9)
	assert.InDelta(t, 0.6, a.prices.lowest, 1e-9)
}

func TestProcessPhase_PricesOnlyPublishedWithSales(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("observer", 64, bus.TransformerPrice)

	a := New(b)
	a.processPhase(tickgen.Payload{Timestamp: 1000})
	select {
	case <-sub.C():
		t.Fatal("price stats published without sales")
	case <-time.After(50 * time.Millisecond):
	}

	feed(a, bus.AckAcceptBuyOffer,
		wire.Offer{ID: "Charger Wexa-0", Price: 0.4, Amount: 25, AckFor: "Turbine Ruka"}.Encode())
	feed(a, bus.AckAcceptBuyOffer,
		wire.Offer{ID: "Charger Wexa-1", Price: 0.8, Amount: 25, AckFor: "Turbine Ruka"}.Encode())
	a.processPhase(tickgen.Payload{Timestamp: 2000})

	stats := collectRetained(t, sub)
	assert.Equal(t, int64(40), stats[bus.TransformerPrice+"/Lowest Sell Price"].Payload)
	assert.Equal(t, int64(60), stats[bus.TransformerPrice+"/Average Sell Price"].Payload)
}

func TestChargeOffers_FeedRetailAverages(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("observer", 64,
		bus.ChargerOfferAvgPrice, bus.ChargerOfferAvgDistance, bus.ChargerOfferAvgCost)

	a := New(b)
	vehiclePos := geo.Position{Latitude: 50, Longitude: 10}
	chargerPos := geo.Position{Latitude: 51, Longitude: 10}

	feed(a, bus.ChargerRequest,
		wire.ChargeRequest{VehicleName: "Zuko", VehiclePosition: vehiclePos}.Encode())
	feed(a, bus.ChargerOffer, wire.ChargeOffer{
		ChargerName: "Charger Wexa", VehicleName: "Zuko",
		ChargePrice: 0.5, ChargeAmount: 40, ChargerPosition: chargerPos,
	}.Encode())

	a.processPhase(tickgen.Payload{Timestamp: 1000})

	stats := collectRetained(t, sub)
	assert.Equal(t, int64(50), stats[bus.ChargerOfferAvgPrice+"/Average Offer Price"].Payload)
	assert.Equal(t, int64(20), stats[bus.ChargerOfferAvgCost+"/Average Offer Cost"].Payload)
	// one degree of latitude is roughly 111 km
	assert.InDelta(t, 111, stats[bus.ChargerOfferAvgDistance+"/Average Offer Distance"].Payload, 1)
}

func TestChargeOffer_UnknownVehicleSkipsDistance(t *testing.T) {
	a := New(bus.New())
	feed(a, bus.ChargerOffer, wire.ChargeOffer{
		ChargerName: "Charger Wexa", VehicleName: "Mira",
		ChargePrice: 0.5, ChargeAmount: 40,
	}.Encode())

	assert.InDelta(t, 1, a.avgPrice.count, 1e-9)
	assert.Zero(t, a.avgDistance.count)
}
