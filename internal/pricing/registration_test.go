package pricing

import (
	"errors"
	"testing"

	"github.com/dealerstack/onroad/internal/domain"
)

func legacyRule() *domain.RegistrationRule {
	return &domain.RegistrationRule{
		ID:        "rule-ka-legacy",
		TenantID:  "tenant-a",
		StateCode: "KA",
		Version:   1,
		Enabled:   true,
	}
}

func componentRule() *domain.RegistrationRule {
	return &domain.RegistrationRule{
		ID:          "rule-ka-2024",
		TenantID:    "tenant-a",
		StateCode:   "KA",
		StateTenure: 15,
		BHTenure:    2,
		Version:     3,
		Enabled:     true,
		Components: []domain.RegistrationComponent{
			{
				ID:         "road_tax",
				Label:      "Road Tax",
				Type:       domain.ComponentPercentage,
				Percentage: 10,
				FuelMatrix: map[string]float64{domain.FuelElectric: 4},
				Treatment:  domain.TreatmentProRata,
			},
			{
				ID:                "cess",
				Label:             "Infrastructure Cess",
				Type:              domain.ComponentPercentage,
				Percentage:        11,
				TargetComponentID: "road_tax",
			},
			{ID: "reg_fee", Label: "Registration Fees", Type: domain.ComponentFixed, Amount: 300},
			{ID: "hsrp", Label: "HSRP Charges", Type: domain.ComponentFixed, Amount: 800},
		},
	}
}

func TestLegacyRegistrationCharges(t *testing.T) {
	tests := []struct {
		name        string
		regType     domain.RegistrationType
		wantRoadTax float64
	}{
		{"individual 10 percent", domain.RegTypeStateIndividual, 10000},
		{"bh series 8 percent", domain.RegTypeBHSeries, 8000},
		{"company 20 percent", domain.RegTypeCompany, 20000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CalculateRegistrationCharges(legacyRule(), &domain.RegistrationContext{
				ExShowroom: 100000,
				FuelType:   domain.FuelPetrol,
				RegType:    tt.regType,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Breakdown[0].Amount != tt.wantRoadTax {
				t.Errorf("road tax = %v, want %v", result.Breakdown[0].Amount, tt.wantRoadTax)
			}
			// Fixed fees: 300 + 800 + 200 + 50.
			wantTotal := tt.wantRoadTax + 1350
			if result.TotalAmount != wantTotal {
				t.Errorf("TotalAmount = %v, want %v", result.TotalAmount, wantTotal)
			}
		})
	}
}

func TestRegistrationInvoiceBasePreferred(t *testing.T) {
	ctx := &domain.RegistrationContext{
		InvoiceBase: 90000,
		ExShowroom:  100000,
		FuelType:    domain.FuelPetrol,
		RegType:     domain.RegTypeStateIndividual,
	}
	result, err := CalculateRegistrationCharges(legacyRule(), ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Breakdown[0].Amount != 9000 {
		t.Errorf("road tax = %v, want 9000 (10%% of invoice base)", result.Breakdown[0].Amount)
	}

	// Zero invoice base falls back to ex-showroom.
	ctx.InvoiceBase = 0
	result, err = CalculateRegistrationCharges(legacyRule(), ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Breakdown[0].Amount != 10000 {
		t.Errorf("road tax = %v, want 10000 (10%% of ex-showroom)", result.Breakdown[0].Amount)
	}
}

func TestComponentRegistrationCharges(t *testing.T) {
	result, err := CalculateRegistrationCharges(componentRule(), &domain.RegistrationContext{
		ExShowroom: 100000,
		FuelType:   domain.FuelPetrol,
		RegType:    domain.RegTypeStateIndividual,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID := make(map[string]float64)
	for _, line := range result.Breakdown {
		byID[line.ComponentID] = line.Amount
	}

	if byID["road_tax"] != 10000 {
		t.Errorf("road_tax = %v, want 10000", byID["road_tax"])
	}
	// Cess compounds on the road tax amount, not the base.
	if byID["cess"] != 1100 {
		t.Errorf("cess = %v, want 1100 (11%% of road tax)", byID["cess"])
	}
	if result.TotalAmount != 10000+1100+300+800 {
		t.Errorf("TotalAmount = %v, want 12200", result.TotalAmount)
	}
	if result.RuleVersion != 3 {
		t.Errorf("RuleVersion = %d, want 3", result.RuleVersion)
	}
}

func TestComponentFuelMatrixOverride(t *testing.T) {
	result, err := CalculateRegistrationCharges(componentRule(), &domain.RegistrationContext{
		ExShowroom: 100000,
		FuelType:   "electric",
		RegType:    domain.RegTypeStateIndividual,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Breakdown[0].Amount != 4000 {
		t.Errorf("road_tax = %v, want 4000 (4%% electric rate)", result.Breakdown[0].Amount)
	}
}

func TestComponentProRataBHSeries(t *testing.T) {
	result, err := CalculateRegistrationCharges(componentRule(), &domain.RegistrationContext{
		ExShowroom: 150000,
		FuelType:   domain.FuelPetrol,
		RegType:    domain.RegTypeBHSeries,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10% of 150000 scaled by 2/15 years.
	if result.Breakdown[0].Amount != 2000 {
		t.Errorf("road_tax = %v, want 2000", result.Breakdown[0].Amount)
	}
	// The cess has no PRO_RATA treatment but compounds on the scaled tax.
	if result.Breakdown[1].Amount != 220 {
		t.Errorf("cess = %v, want 220", result.Breakdown[1].Amount)
	}
}

func TestComponentTargetBeforeDefinition(t *testing.T) {
	rule := componentRule()
	// Move the cess ahead of its target; evaluation order must not matter.
	rule.Components[0], rule.Components[1] = rule.Components[1], rule.Components[0]

	result, err := CalculateRegistrationCharges(rule, &domain.RegistrationContext{
		ExShowroom: 100000,
		FuelType:   domain.FuelPetrol,
		RegType:    domain.RegTypeStateIndividual,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalAmount != 12200 {
		t.Errorf("TotalAmount = %v, want 12200 regardless of component order", result.TotalAmount)
	}
}

func TestRegistrationVariants(t *testing.T) {
	variants, err := CalculateRegistrationVariants(componentRule(), &domain.RegistrationContext{
		ExShowroom: 150000,
		FuelType:   domain.FuelPetrol,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(variants))
	}
	for _, regType := range []domain.RegistrationType{
		domain.RegTypeStateIndividual,
		domain.RegTypeBHSeries,
		domain.RegTypeCompany,
	} {
		if variants[regType] == nil {
			t.Fatalf("missing variant for %s", regType)
		}
	}

	state := variants[domain.RegTypeStateIndividual].Breakdown[0].Amount
	bh := variants[domain.RegTypeBHSeries].Breakdown[0].Amount
	company := variants[domain.RegTypeCompany].Breakdown[0].Amount

	if state != 15000 {
		t.Errorf("state road tax = %v, want 15000", state)
	}
	// BH pays 2 of 15 years; company pays double.
	if bh != 2000 {
		t.Errorf("bh road tax = %v, want 2000", bh)
	}
	if company != 30000 {
		t.Errorf("company road tax = %v, want 30000", company)
	}
}

func TestDanglingTargetIsError(t *testing.T) {
	rule := componentRule()
	rule.Components[1].TargetComponentID = "missing"

	_, err := CalculateRegistrationCharges(rule, &domain.RegistrationContext{
		ExShowroom: 100000,
		FuelType:   domain.FuelPetrol,
	})
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for dangling target, got: %v", err)
	}
}

func TestTargetCycleIsError(t *testing.T) {
	rule := &domain.RegistrationRule{
		ID:        "rule-cycle",
		StateCode: "KA",
		Components: []domain.RegistrationComponent{
			{ID: "a", Type: domain.ComponentPercentage, Percentage: 10, TargetComponentID: "b"},
			{ID: "b", Type: domain.ComponentPercentage, Percentage: 10, TargetComponentID: "a"},
		},
	}
	_, err := CalculateRegistrationCharges(rule, &domain.RegistrationContext{ExShowroom: 100000})
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for target cycle, got: %v", err)
	}
}

func TestValidateRegistrationRule(t *testing.T) {
	if err := ValidateRegistrationRule(componentRule()); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*domain.RegistrationRule)
	}{
		{"missing state code", func(r *domain.RegistrationRule) { r.StateCode = "" }},
		{"duplicate component id", func(r *domain.RegistrationRule) { r.Components[1].ID = "road_tax" }},
		{"dangling target", func(r *domain.RegistrationRule) { r.Components[1].TargetComponentID = "nope" }},
		{"negative percentage", func(r *domain.RegistrationRule) { r.Components[0].Percentage = -5 }},
		{"unknown type", func(r *domain.RegistrationRule) { r.Components[2].Type = "GRADIENT" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := componentRule()
			tt.mutate(rule)
			if err := ValidateRegistrationRule(rule); !errors.Is(err, ErrInvalidRule) {
				t.Errorf("expected ErrInvalidRule, got: %v", err)
			}
		})
	}
}
