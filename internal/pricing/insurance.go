package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/dealerstack/onroad/internal/domain"
)

// Defaults applied when an insurance rule leaves the fields zero.
const (
	defaultIDVPercentage = 95
	defaultGSTPercentage = 18
)

// CalculateInsurance computes the first-year premium for a rule and
// quote context.
//
// IDV is a percentage of ex-showroom. OD and TP components are each
// rounded to the nearest rupee before summing; slab components resolve
// against engine displacement with half-open [min, max) ranges. Addons
// are filtered by ctx.SelectedAddons (nil selects every addon, an empty
// slice selects none). NetPremium excludes GST; GSTAmount and
// GrossPremium are reported alongside it.
func CalculateInsurance(rule *domain.InsuranceRule, ctx *domain.InsuranceContext) (*domain.InsuranceResult, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: rule is required", ErrInvalidRule)
	}

	idvPct := rule.IDVPercentage
	if idvPct <= 0 {
		idvPct = defaultIDVPercentage
	}
	gstPct := rule.GSTPercentage
	if gstPct <= 0 {
		gstPct = defaultGSTPercentage
	}

	idv := math.Round(ctx.ExShowroom * idvPct / 100)

	result := &domain.InsuranceResult{
		IDV:         idv,
		RuleID:      rule.ID,
		RuleVersion: rule.Version,
	}

	var net float64
	for i := range rule.ODComponents {
		line, err := insuranceLine(&rule.ODComponents[i], ctx, idv)
		if err != nil {
			return nil, err
		}
		result.ODBreakdown = append(result.ODBreakdown, line)
		net += line.Amount
	}
	for i := range rule.TPComponents {
		line, err := insuranceLine(&rule.TPComponents[i], ctx, idv)
		if err != nil {
			return nil, err
		}
		result.TPBreakdown = append(result.TPBreakdown, line)
		net += line.Amount
	}

	selected := addonFilter(ctx.SelectedAddons)
	for i := range rule.Addons {
		addon := &rule.Addons[i]
		if selected != nil && !selected[addon.ID] {
			continue
		}
		line, err := insuranceLine(addon, ctx, idv)
		if err != nil {
			return nil, err
		}
		result.AddonLines = append(result.AddonLines, line)
		net += line.Amount
	}

	result.NetPremium = net
	result.GSTAmount = math.Round(net * gstPct / 100)
	result.GrossPremium = result.NetPremium + result.GSTAmount
	return result, nil
}

// ValidateInsuranceRule is the admin-side structural check, mirroring
// ValidateRegistrationRule for registration rules.
func ValidateInsuranceRule(rule *domain.InsuranceRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule is required", ErrInvalidRule)
	}
	if rule.StateCode == "" {
		return fmt.Errorf("%w: stateCode is required", ErrInvalidRule)
	}

	ids := make(map[string]bool)
	groups := [][]domain.InsuranceComponent{rule.ODComponents, rule.TPComponents, rule.Addons}
	for _, group := range groups {
		for i := range group {
			c := &group[i]
			if c.ID != "" {
				if ids[c.ID] {
					return fmt.Errorf("%w: duplicate component id %q", ErrInvalidRule, c.ID)
				}
				ids[c.ID] = true
			}
			switch c.Type {
			case domain.ComponentPercentage:
				if c.Percentage < 0 {
					return fmt.Errorf("%w: component %q has negative percentage", ErrInvalidRule, c.ID)
				}
			case domain.ComponentFixed:
				if c.Amount < 0 {
					return fmt.Errorf("%w: component %q has negative amount", ErrInvalidRule, c.ID)
				}
			case domain.ComponentSlab:
				if len(c.Ranges) == 0 {
					return fmt.Errorf("%w: slab component %q has no ranges", ErrInvalidRule, c.ID)
				}
				for _, r := range c.Ranges {
					if r.Max != nil && *r.Max <= r.Min {
						return fmt.Errorf("%w: slab component %q has empty range [%v, %v)",
							ErrInvalidRule, c.ID, r.Min, *r.Max)
					}
				}
			default:
				return fmt.Errorf("%w: component %q has unsupported type %q", ErrInvalidRule, c.ID, c.Type)
			}
		}
	}

	// A dry-run calculation surfaces bad basis values.
	_, err := CalculateInsurance(rule, &domain.InsuranceContext{ExShowroom: 100000, EngineCc: 150})
	return err
}

// addonFilter turns the selection slice into a set. A nil slice means
// "all addons" and maps to a nil set.
func addonFilter(selected []string) map[string]bool {
	if selected == nil {
		return nil
	}
	set := make(map[string]bool, len(selected))
	for _, id := range selected {
		set[id] = true
	}
	return set
}

func insuranceLine(c *domain.InsuranceComponent, ctx *domain.InsuranceContext, idv float64) (domain.InsuranceLine, error) {
	amount, err := insuranceAmount(c, ctx, idv)
	if err != nil {
		return domain.InsuranceLine{}, err
	}
	return domain.InsuranceLine{
		ComponentID: c.ID,
		Label:       c.Label,
		Amount:      amount,
	}, nil
}

func insuranceAmount(c *domain.InsuranceComponent, ctx *domain.InsuranceContext, idv float64) (float64, error) {
	switch c.Type {
	case domain.ComponentPercentage:
		basis, err := insuranceBasis(c, ctx, idv)
		if err != nil {
			return 0, err
		}
		return math.Round(basis * c.Percentage / 100), nil

	case domain.ComponentFixed:
		return math.Round(c.Amount), nil

	case domain.ComponentSlab:
		r := matchSlab(c.Ranges, slabValue(c, ctx))
		if r == nil {
			// No slab covers the value; the component contributes nothing.
			return 0, nil
		}
		if r.Percentage > 0 {
			basis, err := insuranceBasis(c, ctx, idv)
			if err != nil {
				return 0, err
			}
			return math.Round(basis * r.Percentage / 100), nil
		}
		return math.Round(r.Amount), nil

	default:
		return 0, fmt.Errorf("%w: insurance component %q has unsupported type %q",
			ErrInvalidRule, c.ID, c.Type)
	}
}

func insuranceBasis(c *domain.InsuranceComponent, ctx *domain.InsuranceContext, idv float64) (float64, error) {
	switch c.Basis {
	case domain.BasisIDV, "":
		return idv, nil
	case domain.BasisExShowroom:
		return ctx.ExShowroom, nil
	case domain.BasisEngineCc:
		return ctx.EngineCc, nil
	default:
		return 0, fmt.Errorf("%w: insurance component %q has unsupported basis %q",
			ErrInvalidRule, c.ID, c.Basis)
	}
}

// slabValue picks what the slab ranges are keyed on. Engine displacement
// is the default because TP tables are cc-based.
func slabValue(c *domain.InsuranceComponent, ctx *domain.InsuranceContext) float64 {
	if c.Basis == domain.BasisExShowroom {
		return ctx.ExShowroom
	}
	return ctx.EngineCc
}

// matchSlab finds the half-open [min, max) range covering v. A nil Max
// leaves the range open-ended.
func matchSlab(ranges []domain.SlabRange, v float64) *domain.SlabRange {
	for i := range ranges {
		r := &ranges[i]
		if v < r.Min {
			continue
		}
		if r.Max != nil && v >= *r.Max {
			continue
		}
		return r
	}
	return nil
}

// basicInsurer is an entry in the built-in insurer table used by the
// simplified quote path.
type basicInsurer struct {
	Name         string
	ODPercentage float64 // of IDV
}

var basicInsurers = map[string]basicInsurer{
	"hdfc_ergo": {Name: "HDFC Ergo", ODPercentage: 3.5},
	"icici":     {Name: "ICICI Lombard", ODPercentage: 3.2},
}

// basicTPSlabs is the statutory third-party premium table keyed on
// engine displacement.
var basicTPSlabs = []struct {
	maxCc  float64 // exclusive; 0 means open-ended
	amount float64
}{
	{75, 482},
	{150, 714},
	{350, 1366},
	{0, 2804},
}

func basicTPPremium(engineCc float64) float64 {
	for _, slab := range basicTPSlabs {
		if slab.maxCc == 0 || engineCc < slab.maxCc {
			return slab.amount
		}
	}
	return 0
}

// CalculateBasicInsurance is the legacy quick-quote path: a built-in
// insurer table (OD as a percentage of 95% IDV) plus the statutory TP
// slab. An unknown insurer ID yields a zero OD premium rather than an
// error, matching how the simplified path has always behaved.
func CalculateBasicInsurance(insurerID string, exShowroom, engineCc float64) *domain.InsuranceResult {
	idv := math.Round(exShowroom * defaultIDVPercentage / 100)

	var od float64
	label := insurerID
	if insurer, ok := basicInsurers[strings.ToLower(strings.TrimSpace(insurerID))]; ok {
		od = math.Round(idv * insurer.ODPercentage / 100)
		label = insurer.Name
	}
	tp := basicTPPremium(engineCc)

	net := od + tp
	gst := math.Round(net * defaultGSTPercentage / 100)

	return &domain.InsuranceResult{
		IDV:        idv,
		NetPremium: net,
		GSTAmount:  gst,
		ODBreakdown: []domain.InsuranceLine{
			{ComponentID: "od_basic", Label: label + " Own Damage", Amount: od},
		},
		TPBreakdown: []domain.InsuranceLine{
			{ComponentID: "tp_statutory", Label: "Third Party Premium", Amount: tp},
		},
		GrossPremium: net + gst,
	}
}
