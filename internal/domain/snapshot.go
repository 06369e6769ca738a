package domain

import (
	"time"
)

// CatalogItem is the slice of a catalog record (model + variant + SKU)
// the pricing core needs. The catalog itself lives with the caller.
type CatalogItem struct {
	ProductID  string  `json:"productId"`
	ModelName  string  `json:"modelName"`
	EngineCc   float64 `json:"engineCc"`
	FuelType   string  `json:"fuelType"`
	ExShowroom float64 `json:"exShowroom"`
}

// AccessoryLine is one accessory bundle entry priced into a snapshot.
type AccessoryLine struct {
	SKU    string  `json:"sku"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// PriceSnapshot is the immutable record of one on-road price computation.
// Created once per quote/booking event and never mutated afterwards; the
// rule versions it carries make the computation replayable.
type PriceSnapshot struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenantId"`
	ProductID string `json:"productId"`
	LeadID    string `json:"leadId,omitempty"`
	StateCode string `json:"stateCode"`
	RTOCode   string `json:"rtoCode,omitempty"`

	ExShowroom      float64         `json:"exShowroom"`
	RTOCharges      float64         `json:"rtoCharges"`
	RTOBreakdown    []RegistrationLine `json:"rtoBreakdown,omitempty"`
	InsuranceBase   float64         `json:"insuranceBase"`
	InsuranceAddons []InsuranceLine `json:"insuranceAddons,omitempty"`
	AccessoryBundle []AccessoryLine `json:"accessoryBundle,omitempty"`
	TotalOnRoad     float64         `json:"totalOnRoad"`

	// Tax classification of the item at computation time, for audit.
	HSNCode  string  `json:"hsnCode,omitempty"`
	GSTRate  float64 `json:"gstRate,omitempty"`
	CessRate float64 `json:"cessRate,omitempty"`

	RegistrationType RegistrationType `json:"registrationType"`
	RuleVersion      int              `json:"ruleVersion"`
	InsuranceVersion int              `json:"insuranceVersion,omitempty"`

	CalculatedAt time.Time `json:"calculatedAt"`
}
