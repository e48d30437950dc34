package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powercable/internal/geo"
)

func TestOffer_RoundTrip(t *testing.T) {
	in := Offer{
		ID:        "Charger Tovi-3",
		Price:     0.45,
		Amount:    OfferPackageSize,
		Latitude:  51.2,
		Longitude: 9.8,
	}

	out, err := DecodeOffer(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Empty(t, out.AcceptedBy)
	assert.Empty(t, out.AckFor)
}

func TestOffer_RoundTripWithAckChain(t *testing.T) {
	in := Offer{
		ID:         "H0-0",
		Price:      1.0,
		Amount:     OfferPackageSize,
		Latitude:   50.1,
		Longitude:  8.6,
		AcceptedBy: "Turbine Ruka",
		AckFor:     "Turbine Ruka",
	}

	out, err := DecodeOffer(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeOffer_ShortPayload(t *testing.T) {
	full := Offer{ID: "x-1", Price: 0.5, Amount: 25}.Encode()

	_, err := DecodeOffer(full[:len(full)-3])
	assert.ErrorIs(t, err, ErrShortPayload)

	_, err = DecodeOffer(nil)
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestDecodeOffer_TrailingData(t *testing.T) {
	payload := Offer{ID: "x-1", Price: 0.5, Amount: 25}.Encode()
	payload = append(payload, 0xFF)

	_, err := DecodeOffer(payload)
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestChargeRequest_RoundTrip(t *testing.T) {
	in := ChargeRequest{
		VehicleName:     "Zuko",
		ChargeAmount:    40.5,
		Consumption:     16.2,
		VehiclePosition: geo.Position{Latitude: 52.0, Longitude: 10.0},
	}

	out, err := DecodeChargeRequest(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestChargeOffer_RoundTrip(t *testing.T) {
	in := ChargeOffer{
		ChargerName:     "Charger Wexa",
		VehicleName:     "Zuko",
		ChargePrice:     0.65,
		ChargeAmount:    45.0,
		ChargerPosition: geo.Position{Latitude: 51.5, Longitude: 9.5},
	}

	out, err := DecodeChargeOffer(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestGet_AckAndReleaseShareShape(t *testing.T) {
	ack := Get{ChargerName: "Charger Wexa", VehicleName: "Zuko", Amount: 12.5}
	out, err := DecodeGet(ack.Encode())
	require.NoError(t, err)
	assert.Equal(t, ack, out)

	release := Get{ChargerName: "Charger Wexa", VehicleName: "Zuko"}
	out, err = DecodeGet(release.Encode())
	require.NoError(t, err)
	assert.Zero(t, out.Amount)
}

func TestOffer_Position(t *testing.T) {
	o := Offer{Latitude: 49.9, Longitude: 7.7}
	assert.Equal(t, geo.Position{Latitude: 49.9, Longitude: 7.7}, o.Position())
}
