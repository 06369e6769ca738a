package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dealerstack/onroad/internal/domain"
)

var (
	// ErrInvalidRule marks a structurally broken rule (a configuration
	// error that should have been caught at authoring time).
	ErrInvalidRule = errors.New("invalid registration rule")
)

// Legacy road-tax rates (percent) used when a rule carries no components.
const (
	legacyRateIndividual = 10
	legacyRateBHSeries   = 8
	legacyRateCompany    = 20
)

// Legacy fixed charges appended after road tax, in breakdown order.
var legacyFixedCharges = []domain.RegistrationLine{
	{Label: "Registration Fees", Amount: 300},
	{Label: "HSRP Charges", Amount: 800},
	{Label: "Smart Card Fee", Amount: 200},
	{Label: "Postal Charges", Amount: 50},
}

// Default tenure configuration when a rule leaves the fields zero.
const (
	defaultStateTenure       = 15
	defaultBHTenure          = 2
	defaultCompanyMultiplier = 2
)

// CalculateRegistrationCharges computes the RTO charge breakdown for a
// rule and quote context.
//
// The tagged-variant component model is canonical: when the rule carries
// components they are evaluated in dependency order (a component whose
// percentage targets another component is computed after its target),
// with fuel-matrix rate resolution and pro-rata tenure scaling. Rules
// without components fall back to the legacy fixed-rate path: a 3-way
// road-tax rate switch on registration type plus standard fixed fees.
//
// The tax base is InvoiceBase when positive, else ExShowroom. Only a
// structurally invalid rule (dangling or cyclic target reference)
// returns an error.
func CalculateRegistrationCharges(rule *domain.RegistrationRule, ctx *domain.RegistrationContext) (*domain.RegistrationResult, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: rule is required", ErrInvalidRule)
	}

	base := ctx.InvoiceBase
	if base <= 0 {
		base = ctx.ExShowroom
	}

	if len(rule.Components) == 0 {
		return legacyRegistrationCharges(rule, ctx, base), nil
	}

	eval := &componentEvaluator{
		rule:       rule,
		base:       base,
		fuel:       strings.ToUpper(strings.TrimSpace(ctx.FuelType)),
		multiplier: tenureMultiplier(rule, ctx.RegType),
		byID:       make(map[string]*domain.RegistrationComponent, len(rule.Components)),
		amounts:    make(map[string]float64, len(rule.Components)),
		state:      make(map[string]int, len(rule.Components)),
	}
	for i := range rule.Components {
		c := &rule.Components[i]
		if c.ID != "" {
			eval.byID[c.ID] = c
		}
	}

	breakdown := make([]domain.RegistrationLine, 0, len(rule.Components))
	var total float64
	for i := range rule.Components {
		c := &rule.Components[i]
		amount, err := eval.amountOf(c)
		if err != nil {
			return nil, err
		}
		breakdown = append(breakdown, domain.RegistrationLine{
			ComponentID: c.ID,
			Label:       c.Label,
			Amount:      amount,
			Meta:        componentMeta(c, ctx.RegType),
		})
		total += amount
	}

	return &domain.RegistrationResult{
		TotalAmount: total,
		Breakdown:   breakdown,
		RuleID:      rule.ID,
		RuleVersion: rule.Version,
	}, nil
}

// legacyRegistrationCharges is the simplified fixed-rate path.
func legacyRegistrationCharges(rule *domain.RegistrationRule, ctx *domain.RegistrationContext, base float64) *domain.RegistrationResult {
	rate := float64(legacyRateIndividual)
	switch ctx.RegType {
	case domain.RegTypeBHSeries:
		rate = legacyRateBHSeries
	case domain.RegTypeCompany:
		rate = legacyRateCompany
	}

	roadTax := math.Round(base * rate / 100)
	breakdown := make([]domain.RegistrationLine, 0, 1+len(legacyFixedCharges))
	breakdown = append(breakdown, domain.RegistrationLine{
		Label:  "Road Tax",
		Amount: roadTax,
		Meta:   fmt.Sprintf("%.1f%% of %.0f", rate, base),
	})
	breakdown = append(breakdown, legacyFixedCharges...)

	total := 0.0
	for _, line := range breakdown {
		total += line.Amount
	}

	return &domain.RegistrationResult{
		TotalAmount: total,
		Breakdown:   breakdown,
		RuleID:      rule.ID,
		RuleVersion: rule.Version,
	}
}

// tenureMultiplier resolves the pro-rata scaling for a registration type.
// BH-series pays tax for its shorter tenure out of the full state tenure;
// company registration applies the rule's multiplier.
func tenureMultiplier(rule *domain.RegistrationRule, regType domain.RegistrationType) float64 {
	stateTenure := rule.StateTenure
	if stateTenure <= 0 {
		stateTenure = defaultStateTenure
	}
	bhTenure := rule.BHTenure
	if bhTenure <= 0 {
		bhTenure = defaultBHTenure
	}
	companyMultiplier := rule.CompanyMultiplier
	if companyMultiplier <= 0 {
		companyMultiplier = defaultCompanyMultiplier
	}

	switch regType {
	case domain.RegTypeBHSeries:
		return float64(bhTenure) / float64(stateTenure)
	case domain.RegTypeCompany:
		return companyMultiplier
	default:
		return 1
	}
}

// componentEvaluator resolves component amounts with memoization and
// cycle detection, so target references are evaluated after their
// targets regardless of rule ordering.
type componentEvaluator struct {
	rule       *domain.RegistrationRule
	base       float64
	fuel       string
	multiplier float64

	byID    map[string]*domain.RegistrationComponent
	amounts map[string]float64
	state   map[string]int // 0 unvisited, 1 visiting, 2 done
}

func (e *componentEvaluator) amountOf(c *domain.RegistrationComponent) (float64, error) {
	if c.ID != "" {
		switch e.state[c.ID] {
		case 1:
			return 0, fmt.Errorf("%w: component %q participates in a target cycle", ErrInvalidRule, c.ID)
		case 2:
			return e.amounts[c.ID], nil
		}
		e.state[c.ID] = 1
	}

	amount, err := e.compute(c)
	if err != nil {
		return 0, err
	}

	if c.ID != "" {
		e.state[c.ID] = 2
		e.amounts[c.ID] = amount
	}
	return amount, nil
}

func (e *componentEvaluator) compute(c *domain.RegistrationComponent) (float64, error) {
	switch c.Type {
	case domain.ComponentPercentage:
		pct := c.Percentage
		if rate, ok := c.FuelMatrix[e.fuel]; ok {
			pct = rate
		}

		basis := e.base
		if c.TargetComponentID != "" {
			target, ok := e.byID[c.TargetComponentID]
			if !ok {
				return 0, fmt.Errorf("%w: component %q targets unknown component %q",
					ErrInvalidRule, c.ID, c.TargetComponentID)
			}
			targetAmount, err := e.amountOf(target)
			if err != nil {
				return 0, err
			}
			basis = targetAmount
		}

		amount := basis * pct / 100
		if c.Treatment == domain.TreatmentProRata {
			amount *= e.multiplier
		}
		return math.Round(amount), nil

	case domain.ComponentFixed:
		amount := c.Amount
		if fixed, ok := c.FuelMatrix[e.fuel]; ok {
			amount = fixed
		}
		if c.Treatment == domain.TreatmentProRata {
			amount = math.Round(amount * e.multiplier)
		}
		return amount, nil

	default:
		return 0, fmt.Errorf("%w: component %q has unsupported type %q", ErrInvalidRule, c.ID, c.Type)
	}
}

func componentMeta(c *domain.RegistrationComponent, regType domain.RegistrationType) string {
	if c.Type == domain.ComponentPercentage && c.TargetComponentID != "" {
		return fmt.Sprintf("%.2f%% of %s", c.Percentage, c.TargetComponentID)
	}
	if c.Treatment == domain.TreatmentProRata {
		return fmt.Sprintf("pro-rata (%s)", regType)
	}
	return ""
}

// registrationVariantTypes are the registration types quoted side by
// side when a caller asks for a comparison.
var registrationVariantTypes = []domain.RegistrationType{
	domain.RegTypeStateIndividual,
	domain.RegTypeBHSeries,
	domain.RegTypeCompany,
}

// CalculateRegistrationVariants prices the same rule and context under
// each registration type, so a buyer can compare state, BH-series, and
// company registration before choosing one.
func CalculateRegistrationVariants(rule *domain.RegistrationRule, ctx *domain.RegistrationContext) (map[domain.RegistrationType]*domain.RegistrationResult, error) {
	variants := make(map[domain.RegistrationType]*domain.RegistrationResult, len(registrationVariantTypes))
	for _, regType := range registrationVariantTypes {
		variantCtx := *ctx
		variantCtx.RegType = regType
		result, err := CalculateRegistrationCharges(rule, &variantCtx)
		if err != nil {
			return nil, err
		}
		variants[regType] = result
	}
	return variants, nil
}

// ValidateRegistrationRule is the admin-side structural check: it fails
// loudly on problems that the calculator would otherwise hit mid-quote
// (unknown component types, dangling target references, target cycles,
// negative rates).
func ValidateRegistrationRule(rule *domain.RegistrationRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule is required", ErrInvalidRule)
	}
	if rule.StateCode == "" {
		return fmt.Errorf("%w: stateCode is required", ErrInvalidRule)
	}

	ids := make(map[string]bool, len(rule.Components))
	for i := range rule.Components {
		c := &rule.Components[i]
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
		default:
			return fmt.Errorf("%w: component %q has unsupported type %q", ErrInvalidRule, c.ID, c.Type)
		}
	}

	for i := range rule.Components {
		c := &rule.Components[i]
		if c.TargetComponentID != "" && !ids[c.TargetComponentID] {
			return fmt.Errorf("%w: component %q targets unknown component %q",
				ErrInvalidRule, c.ID, c.TargetComponentID)
		}
	}

	// A dry-run calculation surfaces cycles.
	_, err := CalculateRegistrationCharges(rule, &domain.RegistrationContext{ExShowroom: 100000, FuelType: domain.FuelPetrol})
	return err
}
