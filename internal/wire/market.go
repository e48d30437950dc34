package wire

import "powercable/internal/geo"

// OfferPackageSize is the unit of wholesale trade in kWh.
const OfferPackageSize = 25.0

// Offer is a wholesale energy package. Buyers publish it on
// market/buy_offer; a producer sets AcceptedBy and republishes on
// market/accept_buy_offer; the buyer sets AckFor and answers on
// market/ack_accept_buy_offer. ID is globally unique, formed as
// "<agent-name>-<sequence>".
type Offer struct {
	ID         string
	Price      float64
	Amount     float64
	Latitude   float64
	Longitude  float64
	AcceptedBy string
	AckFor     string
}

// Position returns the offer's location.
func (o Offer) Position() geo.Position {
	return geo.Position{Latitude: o.Latitude, Longitude: o.Longitude}
}

func (o Offer) Encode() []byte {
	var e encoder
	e.writeString(o.ID)
	e.writeFloat(o.Price)
	e.writeFloat(o.Amount)
	e.writeFloat(o.Latitude)
	e.writeFloat(o.Longitude)
	e.writeOptString(o.AcceptedBy, o.AcceptedBy != "")
	e.writeOptString(o.AckFor, o.AckFor != "")
	return e.buf
}

func DecodeOffer(b []byte) (Offer, error) {
	var o Offer
	d := decoder{buf: b}
	o.ID = d.readString()
	o.Price = d.readFloat()
	o.Amount = d.readFloat()
	o.Latitude = d.readFloat()
	o.Longitude = d.readFloat()
	o.AcceptedBy, _ = d.readOptString()
	o.AckFor, _ = d.readOptString()
	return o, d.finish()
}

// ChargeRequest is broadcast by a vehicle looking for a charger. It
// carries the vehicle's effective consumption so chargers can price in
// the energy needed for the trip.
type ChargeRequest struct {
	VehicleName     string
	ChargeAmount    float64
	Consumption     float64 // kWh per 100 km
	VehiclePosition geo.Position
}

func (r ChargeRequest) Encode() []byte {
	var e encoder
	e.writeString(r.VehicleName)
	e.writeFloat(r.ChargeAmount)
	e.writeFloat(r.Consumption)
	e.writeFloat(r.VehiclePosition.Latitude)
	e.writeFloat(r.VehiclePosition.Longitude)
	return e.buf
}

func DecodeChargeRequest(b []byte) (ChargeRequest, error) {
	var r ChargeRequest
	d := decoder{buf: b}
	r.VehicleName = d.readString()
	r.ChargeAmount = d.readFloat()
	r.Consumption = d.readFloat()
	r.VehiclePosition.Latitude = d.readFloat()
	r.VehiclePosition.Longitude = d.readFloat()
	return r, d.finish()
}

// ChargeOffer answers a ChargeRequest: the charger has reserved
// ChargeAmount kWh for the named vehicle at ChargePrice.
type ChargeOffer struct {
	ChargerName     string
	VehicleName     string
	ChargePrice     float64
	ChargeAmount    float64
	ChargerPosition geo.Position
}

func (o ChargeOffer) Encode() []byte {
	var e encoder
	e.writeString(o.ChargerName)
	e.writeString(o.VehicleName)
	e.writeFloat(o.ChargePrice)
	e.writeFloat(o.ChargeAmount)
	e.writeFloat(o.ChargerPosition.Latitude)
	e.writeFloat(o.ChargerPosition.Longitude)
	return e.buf
}

func DecodeChargeOffer(b []byte) (ChargeOffer, error) {
	var o ChargeOffer
	d := decoder{buf: b}
	o.ChargerName = d.readString()
	o.VehicleName = d.readString()
	o.ChargePrice = d.readFloat()
	o.ChargeAmount = d.readFloat()
	o.ChargerPosition.Latitude = d.readFloat()
	o.ChargerPosition.Longitude = d.readFloat()
	return o, d.finish()
}

// ChargeAccept commits a vehicle to exactly one charger's offer.
// RealAmount includes the energy needed to drive to the charger.
type ChargeAccept struct {
	ChargerName string
	VehicleName string
	RealAmount  float64
}

func (a ChargeAccept) Encode() []byte {
	var e encoder
	e.writeString(a.ChargerName)
	e.writeString(a.VehicleName)
	e.writeFloat(a.RealAmount)
	return e.buf
}

func DecodeChargeAccept(b []byte) (ChargeAccept, error) {
	var a ChargeAccept
	d := decoder{buf: b}
	a.ChargerName = d.readString()
	a.VehicleName = d.readString()
	a.RealAmount = d.readFloat()
	return a, d.finish()
}

// Get is one retail delivery step. Vehicle to charger it is a request
// for Amount kWh of the reservation; charger to vehicle it is the ack
// carrying the amount actually delivered. Release reuses the same
// payload.
type Get struct {
	ChargerName string
	VehicleName string
	Amount      float64
}

func (g Get) Encode() []byte {
	var e encoder
	e.writeString(g.ChargerName)
	e.writeString(g.VehicleName)
	e.writeFloat(g.Amount)
	return e.buf
}

func DecodeGet(b []byte) (Get, error) {
	var g Get
	d := decoder{buf: b}
	g.ChargerName = d.readString()
	g.VehicleName = d.readString()
	g.Amount = d.readFloat()
	return g, d.finish()
}
