package domain

// Basis identifies the value a percentage component is computed on.
const (
	BasisIDV        = "IDV"
	BasisExShowroom = "EX_SHOWROOM"
	BasisEngineCc   = "ENGINE_CC" // slab key
)

// InsuranceRule defines how an insurer's premium is computed for a state.
// Versioned and immutable once referenced, like RegistrationRule.
type InsuranceRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	StateCode   string `json:"stateCode"`
	InsurerName string `json:"insurerName"`

	IDVPercentage float64 `json:"idvPercentage"` // percent of ex-showroom, typically 95
	GSTPercentage float64 `json:"gstPercentage"` // percent on net premium, typically 18

	ODComponents []InsuranceComponent `json:"odComponents"`
	TPComponents []InsuranceComponent `json:"tpComponents"`
	Addons       []InsuranceComponent `json:"addons"`

	Version int  `json:"version"`
	Enabled bool `json:"enabled"`
}

// InsuranceComponent is one premium component. Type selects the variant:
//   - PERCENTAGE: Percentage of Basis (IDV or EX_SHOWROOM).
//   - FIXED: flat Amount.
//   - SLAB: Ranges keyed by engine cc; each range carries a flat amount
//     or a percentage of Basis.
type InsuranceComponent struct {
	ID    string        `json:"id"`
	Label string        `json:"label"`
	Type  ComponentType `json:"type"`

	Percentage float64 `json:"percentage,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	Basis      string  `json:"basis,omitempty"`

	Ranges []SlabRange `json:"ranges,omitempty"`
}

// SlabRange is one row of a slab table. Min is inclusive, Max exclusive;
// a nil Max means the range is open-ended.
type SlabRange struct {
	Min        float64  `json:"min"`
	Max        *float64 `json:"max"`
	Amount     float64  `json:"amount,omitempty"`
	Percentage float64  `json:"percentage,omitempty"`
}

// InsuranceContext carries per-quote inputs to the insurance engine.
type InsuranceContext struct {
	ExShowroom float64 `json:"exShowroom"`
	EngineCc   float64 `json:"engineCc"`
	FuelType   string  `json:"fuelType"`

	// SelectedAddons filters rule addons by component ID when non-nil;
	// nil includes all rule addons.
	SelectedAddons []string `json:"selectedAddons,omitempty"`
}

// InsuranceLine is one line of the premium breakdown.
type InsuranceLine struct {
	ComponentID string  `json:"componentId,omitempty"`
	Label       string  `json:"label"`
	Amount      float64 `json:"amount"`
	Meta        string  `json:"meta,omitempty"`
}

// InsuranceResult is the output of the insurance premium engine.
// NetPremium excludes GST; GSTAmount and GrossPremium are reported for
// callers that need the gross figure.
type InsuranceResult struct {
	IDV          float64         `json:"idv"`
	NetPremium   float64         `json:"netPremium"`
	GSTAmount    float64         `json:"gstAmount"`
	GrossPremium float64         `json:"grossPremium"`
	ODBreakdown  []InsuranceLine `json:"odBreakdown"`
	TPBreakdown  []InsuranceLine `json:"tpBreakdown"`
	AddonLines   []InsuranceLine `json:"addonBreakdown"`
	RuleID       string          `json:"ruleId"`
	RuleVersion  int             `json:"ruleVersion"`
}
