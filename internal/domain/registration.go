package domain

// RegistrationType selects which RTO registration scheme a quote is for.
type RegistrationType string

const (
	RegTypeStateIndividual RegistrationType = "STATE_INDIVIDUAL"
	RegTypeBHSeries        RegistrationType = "BH_SERIES"
	RegTypeCompany         RegistrationType = "COMPANY"
)

// ComponentType discriminates rule component variants.
type ComponentType string

const (
	ComponentPercentage ComponentType = "PERCENTAGE"
	ComponentFixed      ComponentType = "FIXED"
	ComponentSlab       ComponentType = "SLAB"
)

// Treatment controls whether a component scales with the registration
// tenure multiplier.
type Treatment string

const (
	TreatmentProRata Treatment = "PRO_RATA"
	TreatmentNone    Treatment = "NONE"
)

// RegistrationRule defines how registration charges are computed for a
// state. Rules are authored by an admin, versioned, and looked up by
// state code at calculation time; a referenced version is never mutated
// so historical snapshots can be recalculated consistently.
type RegistrationRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	StateCode   string `json:"stateCode"`
	VehicleType string `json:"vehicleType"`

	Components []RegistrationComponent `json:"components"`

	// Tenure configuration for pro-rata scaling
	StateTenure       int     `json:"stateTenure"`       // years, typically 15
	BHTenure          int     `json:"bhTenure"`          // years, typically 2
	CompanyMultiplier float64 `json:"companyMultiplier"` // road-tax multiplier for company registration

	Version int  `json:"version"`
	Enabled bool `json:"enabled"`
}

// RegistrationComponent is one charge line in a registration rule.
// Type selects the variant:
//   - PERCENTAGE: Percentage of the tax base (or of the component named by
//     TargetComponentID, for cess-on-tax compounding), with an optional
//     per-fuel override matrix.
//   - FIXED: flat Amount, optionally fuel-matrixed.
type RegistrationComponent struct {
	ID    string        `json:"id"`
	Label string        `json:"label"`
	Type  ComponentType `json:"type"`

	// PERCENTAGE variant
	Percentage float64 `json:"percentage,omitempty"`

	// FIXED variant
	Amount float64 `json:"amount,omitempty"`

	// FuelMatrix overrides Percentage (or Amount) per fuel type.
	FuelMatrix map[string]float64 `json:"fuelMatrix,omitempty"`

	// TargetComponentID makes a PERCENTAGE component compute a percentage
	// of another component's already-computed amount. Components with a
	// target are evaluated after their target.
	TargetComponentID string `json:"targetComponentId,omitempty"`

	// Treatment defaults to NONE when empty.
	Treatment Treatment `json:"treatment,omitempty"`
}

// RegistrationContext carries the per-quote inputs to the registration
// charge engine.
type RegistrationContext struct {
	// InvoiceBase is preferred as the tax base when > 0, e.g. a
	// post-discount invoice value. Falls back to ExShowroom.
	InvoiceBase float64          `json:"invoiceBase,omitempty"`
	ExShowroom  float64          `json:"exShowroom"`
	EngineCc    float64          `json:"engineCc"`
	FuelType    string           `json:"fuelType"`
	RegType     RegistrationType `json:"regType"`
}

// RegistrationLine is one line of the charge breakdown.
type RegistrationLine struct {
	ComponentID string  `json:"componentId,omitempty"`
	Label       string  `json:"label"`
	Amount      float64 `json:"amount"`
	Meta        string  `json:"meta,omitempty"`
}

// RegistrationResult is the output of the registration charge engine.
type RegistrationResult struct {
	TotalAmount float64            `json:"totalAmount"`
	Breakdown   []RegistrationLine `json:"breakdown"`
	RuleID      string             `json:"ruleId"`
	RuleVersion int                `json:"ruleVersion"`
}
