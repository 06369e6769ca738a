package offers

import (
	"math"
	"time"

	"github.com/dealerstack/onroad/internal/domain"
)

// Selector combines individual offer results into a final discount.
type Selector struct {
	// MaxTotalDiscountPct caps the combined discount as a percentage of
	// the on-road price. Zero disables the cap.
	MaxTotalDiscountPct float64
}

// NewSelector creates a selector with default settings.
func NewSelector() *Selector {
	return &Selector{
		MaxTotalDiscountPct: 15, // combined discounts never exceed 15% of on-road
	}
}

// Selection is the aggregated outcome of offer evaluation for one quote.
type Selection struct {
	TotalDiscount float64              `json:"totalDiscount"`
	Applied       []domain.OfferResult `json:"applied"`
	Skipped       []domain.OfferResult `json:"skipped,omitempty"`
	EvaluatedAt   time.Time            `json:"evaluatedAt"`
}

// Select picks the applying offers: every stackable offer with a
// positive discount is summed, and the single best non-stackable offer
// competes against the rest. Offers that errored or produced no
// discount are reported as skipped. The combined total is capped by
// MaxTotalDiscountPct of the on-road price.
func (s *Selector) Select(onRoad float64, results []domain.OfferResult) *Selection {
	selection := &Selection{EvaluatedAt: time.Now().UTC()}

	var stackableTotal float64
	var stackable []domain.OfferResult
	var bestExclusive *domain.OfferResult

	for i := range results {
		r := results[i]
		if r.Err != "" || r.Discount <= 0 {
			selection.Skipped = append(selection.Skipped, r)
			continue
		}
		if r.Stackable {
			stackable = append(stackable, r)
			stackableTotal += r.Discount
			continue
		}
		if bestExclusive == nil || r.Discount > bestExclusive.Discount {
			if bestExclusive != nil {
				selection.Skipped = append(selection.Skipped, *bestExclusive)
			}
			best := r
			bestExclusive = &best
		} else {
			selection.Skipped = append(selection.Skipped, r)
		}
	}

	// The exclusive offer replaces the stackable set when it alone beats
	// their combined total; otherwise the stackables win.
	if bestExclusive != nil && bestExclusive.Discount > stackableTotal {
		selection.Applied = []domain.OfferResult{*bestExclusive}
		selection.TotalDiscount = bestExclusive.Discount
		selection.Skipped = append(selection.Skipped, stackable...)
	} else {
		selection.Applied = stackable
		selection.TotalDiscount = stackableTotal
		if bestExclusive != nil {
			selection.Skipped = append(selection.Skipped, *bestExclusive)
		}
	}

	if s.MaxTotalDiscountPct > 0 && onRoad > 0 {
		limit := math.Round(onRoad * s.MaxTotalDiscountPct / 100)
		if selection.TotalDiscount > limit {
			selection.TotalDiscount = limit
		}
	}

	return selection
}
