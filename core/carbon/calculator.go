package carbon

// Pure emission and cost arithmetic. No state, no I/O.

// Published conversion constants used for human-readable equivalents.
const (
	// gramsPerCarMile assumes 404 gCO2 per mile for an average passenger car.
	gramsPerCarMile = 404.0
	// gramsPerPhoneCharge assumes 8.4 gCO2 per full smartphone charge.
	gramsPerPhoneCharge = 8.4
	// gramsPerTreeYear assumes 21.8 kgCO2 absorbed per tree per year.
	gramsPerTreeYear = 21800.0
	// gramsPerLEDHour assumes 9 gCO2 per hour of a 10W LED bulb.
	gramsPerLEDHour = 9.0
	// gramsPerFlightKm assumes 255 gCO2 per passenger-km on short haul.
	gramsPerFlightKm = 255.0

	milesToKm = 1.60934
)

// ElectricityPricesUSD maps region to an estimated price per kWh.
var ElectricityPricesUSD = map[string]float64{
	"IN-SO": 0.08,
	"US-CA": 0.20,
	"DE":    0.30,
	"FR":    0.18,
	"GB":    0.25,
	"CN":    0.08,
	"JP":    0.26,
}

// DefaultPriceUSD is the global average electricity price per kWh.
const DefaultPriceUSD = 0.15

// EmissionsG converts energy and grid intensity into grams of CO2eq.
func EmissionsG(energyKWh, intensityGPerKWh float64) float64 {
	if energyKWh <= 0 || intensityGPerKWh <= 0 {
		return 0
	}
	return energyKWh * intensityGPerKWh
}

// CostUSD estimates the electricity cost of the consumed energy for a region.
func CostUSD(energyKWh float64, region string) float64 {
	if energyKWh <= 0 {
		return 0
	}
	price, ok := ElectricityPricesUSD[region]
	if !ok {
		price = DefaultPriceUSD
	}
	return energyKWh * price
}

// Equivalents expresses an emission amount in everyday terms.
type Equivalents struct {
	CarMiles     float64 `json:"car_miles"`
	CarKm        float64 `json:"car_km"`
	PhoneCharges float64 `json:"phone_charges"`
	TreeDays     float64 `json:"tree_days"`
	LEDBulbHours float64 `json:"led_bulb_hours"`
	FlightKm     float64 `json:"flight_km"`
}

// EquivalentsOf converts grams of CO2eq into human equivalents using the
// published constants above.
func EquivalentsOf(emissionsG float64) Equivalents {
	if emissionsG <= 0 {
		return Equivalents{}
	}
	miles := emissionsG / gramsPerCarMile
	return Equivalents{
		CarMiles:     miles,
		CarKm:        miles * milesToKm,
		PhoneCharges: emissionsG / gramsPerPhoneCharge,
		TreeDays:     emissionsG / (gramsPerTreeYear / 365.0),
		LEDBulbHours: emissionsG / gramsPerLEDHour,
		FlightKm:     emissionsG / gramsPerFlightKm,
	}
}
