package domain

// TaxClassification is the GST/HSN classification of a vehicle.
// It is derived from (fuelType, engineCc) on demand and never stored
// as an entity, so it can be re-derived at any point for auditing.
type TaxClassification struct {
	HSNCode     string  `json:"hsnCode"`
	GSTRate     float64 `json:"gstRate"`  // percent
	CessRate    float64 `json:"cessRate"` // percent, compensation cess on top of GST
	Description string  `json:"description"`
}

// Fuel type identifiers as normalized by the tax classifier.
const (
	FuelPetrol   = "PETROL"
	FuelDiesel   = "DIESEL"
	FuelElectric = "ELECTRIC"
	FuelEV       = "EV"
	FuelCNG      = "CNG"
)
