package pricing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dealerstack/onroad/internal/domain"
)

// AssemblyInput carries everything BuildSnapshot needs. RegistrationRule
// is required; InsuranceRule is optional and falls back to the built-in
// insurer table keyed by InsurerID (which may itself be empty for an
// uninsured quote).
type AssemblyInput struct {
	TenantID string
	Item     domain.CatalogItem

	LeadID    string
	StateCode string
	RTOCode   string
	RegType   domain.RegistrationType

	// InvoiceBase overrides the registration tax base when > 0.
	InvoiceBase float64

	RegistrationRule *domain.RegistrationRule
	InsuranceRule    *domain.InsuranceRule
	InsurerID        string
	SelectedAddons   []string

	Accessories []domain.AccessoryLine
}

// Assembler builds immutable price snapshots from the individual
// pricing engines. Clock and NewID are injectable so two builds over
// the same input can be compared field for field in tests; the zero
// value uses wall-clock time and random UUIDs.
type Assembler struct {
	Clock func() time.Time
	NewID func() string
}

func (a *Assembler) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now().UTC()
}

func (a *Assembler) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}

// BuildSnapshot runs tax classification, registration charges, and
// insurance for one catalog item and folds the results into a
// PriceSnapshot. The on-road total is ex-showroom plus RTO charges plus
// the gross insurance premium plus the accessory bundle. The snapshot
// records the rule versions used so the computation can be replayed.
func (a *Assembler) BuildSnapshot(in *AssemblyInput) (*domain.PriceSnapshot, error) {
	if in.RegistrationRule == nil {
		return nil, fmt.Errorf("%w: registration rule is required", ErrInvalidRule)
	}
	if in.Item.ExShowroom <= 0 {
		return nil, fmt.Errorf("%w: item %q has no ex-showroom price", ErrInvalidRule, in.Item.ProductID)
	}

	classification := ClassifyVehicleTax(in.Item.FuelType, in.Item.EngineCc)

	regResult, err := CalculateRegistrationCharges(in.RegistrationRule, &domain.RegistrationContext{
		InvoiceBase: in.InvoiceBase,
		ExShowroom:  in.Item.ExShowroom,
		EngineCc:    in.Item.EngineCc,
		FuelType:    in.Item.FuelType,
		RegType:     in.RegType,
	})
	if err != nil {
		return nil, fmt.Errorf("registration charges: %w", err)
	}

	var insurance *domain.InsuranceResult
	if in.InsuranceRule != nil {
		insurance, err = CalculateInsurance(in.InsuranceRule, &domain.InsuranceContext{
			ExShowroom:     in.Item.ExShowroom,
			EngineCc:       in.Item.EngineCc,
			FuelType:       in.Item.FuelType,
			SelectedAddons: in.SelectedAddons,
		})
		if err != nil {
			return nil, fmt.Errorf("insurance premium: %w", err)
		}
	} else if in.InsurerID != "" {
		insurance = CalculateBasicInsurance(in.InsurerID, in.Item.ExShowroom, in.Item.EngineCc)
	}

	var accessoryTotal float64
	for _, acc := range in.Accessories {
		accessoryTotal += acc.Amount
	}

	snapshot := &domain.PriceSnapshot{
		ID:        a.newID(),
		TenantID:  in.TenantID,
		ProductID: in.Item.ProductID,
		LeadID:    in.LeadID,
		StateCode: in.StateCode,
		RTOCode:   in.RTOCode,

		ExShowroom:      in.Item.ExShowroom,
		RTOCharges:      regResult.TotalAmount,
		RTOBreakdown:    regResult.Breakdown,
		AccessoryBundle: in.Accessories,

		HSNCode:  classification.HSNCode,
		GSTRate:  classification.GSTRate,
		CessRate: classification.CessRate,

		RegistrationType: in.RegType,
		RuleVersion:      regResult.RuleVersion,

		CalculatedAt: a.now(),
	}

	total := in.Item.ExShowroom + regResult.TotalAmount + accessoryTotal
	if insurance != nil {
		snapshot.InsuranceBase = insurance.GrossPremium
		snapshot.InsuranceAddons = insurance.AddonLines
		snapshot.InsuranceVersion = insurance.RuleVersion
		total += insurance.GrossPremium
	}
	snapshot.TotalOnRoad = total

	return snapshot, nil
}
