package bus

// Topic names shared by all agents.
const (
	TickTopic           = "tickgen/tick"
	TickConfigure       = "tickgen/configure"
	TickConfigureSpeed  = "tickgen/configure_speed"
	TickConfigureAmount = "tickgen/configure_amount_to_run"

	BuyOfferTopic       = "market/buy_offer"
	AcceptBuyOfferTopic = "market/accept_buy_offer"
	AckAcceptBuyOffer   = "market/ack_accept_buy_offer"

	ChargerRequest          = "charger/request"
	ChargerOffer            = "charger/offer"
	ChargerAccept           = "charger/accept"
	ChargerChargingGet      = "charger/charging/get"
	ChargerChargingAck      = "charger/charging/ack"
	ChargerChargingRelease  = "charger/charging/release"
	ChargerOfferAvgPrice    = "charger/offer/avg/price"
	ChargerOfferAvgDistance = "charger/offer/avg/distance"
	ChargerOfferAvgCost     = "charger/offer/avg/cost"

	TransformerConsumption = "power/transformer/consumption"
	TransformerGeneration  = "power/transformer/generation"
	TransformerStats       = "power/transformer/stats"
	TransformerDiff        = "power/transformer/diff"
	TransformerPrice       = "power/transformer/stats/price"
	TransformerEarnings    = "power/transformer/stats/earnings"

	PowerLocation = "power/location"
	WorldmapEvent = "worldmap/event"
	VehicleTopic  = "vehicle" // vehicle/<name> carries full vehicle state

	ConfigTurbine          = "config/turbine" // also the fusion reactor
	ConfigConsumer         = "config/consumer"
	ConfigVehicle          = "config/vehicle" // also chargers
	ConfigTurbineScale     = "config/turbine/scale"
	ConfigConsumerScale    = "config/consumer/scale"
	ConfigVehicleScale     = "config/vehicle/scale"
	ConfigVehicleAlgorithm = "config/vehicle/algorithm"
)
