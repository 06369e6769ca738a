package domain

// OfferConfig defines a dealer-authored discount rule. The expression is
// CEL over quote variables; it must return a double (discount amount in
// rupees) or a bool (true applies the configured Amount).
type OfferConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate
	Expression string `json:"expression"`

	// Amount is the flat discount applied when Expression returns true.
	Amount float64 `json:"amount"`

	// MaxDiscount caps this offer's contribution; 0 means uncapped.
	MaxDiscount float64 `json:"maxDiscount"`

	// Stackable offers combine with others; non-stackable offers compete
	// and only the best one applies.
	Stackable bool `json:"stackable"`

	// Whether the offer is active
	Enabled bool `json:"enabled"`
}

// OfferResult is the output of evaluating one offer against a quote.
type OfferResult struct {
	OfferID   string  `json:"offerId"`
	TenantID  string  `json:"tenantId"`
	QuoteID   string  `json:"quoteId"`
	Discount  float64 `json:"discount"`
	Stackable bool    `json:"stackable"`
	Reason    string  `json:"reason,omitempty"`
	Err       string  `json:"error,omitempty"`
	ProcessMs int64   `json:"processMs"`
}
