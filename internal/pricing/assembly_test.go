package pricing

import (
	"testing"
	"time"

	"github.com/dealerstack/onroad/internal/domain"
)

func fixedAssembler() *Assembler {
	return &Assembler{
		Clock: func() time.Time { return time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) },
		NewID: func() string { return "snap-0001" },
	}
}

func assemblyInput() *AssemblyInput {
	return &AssemblyInput{
		TenantID: "tenant-a",
		Item: domain.CatalogItem{
			ProductID:  "sku-pulsar-150",
			ModelName:  "Pulsar 150",
			EngineCc:   149.5,
			FuelType:   domain.FuelPetrol,
			ExShowroom: 100000,
		},
		LeadID:           "lead-42",
		StateCode:        "KA",
		RTOCode:          "KA-01",
		RegType:          domain.RegTypeStateIndividual,
		RegistrationRule: legacyRule(),
		InsurerID:        "hdfc_ergo",
		Accessories: []domain.AccessoryLine{
			{SKU: "acc-guard", Label: "Crash Guard", Amount: 1200},
			{SKU: "acc-cover", Label: "Seat Cover", Amount: 450},
		},
	}
}

func TestBuildSnapshot(t *testing.T) {
	snapshot, err := fixedAssembler().BuildSnapshot(assemblyInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.ID != "snap-0001" {
		t.Errorf("ID = %s, want snap-0001", snapshot.ID)
	}
	if snapshot.RTOCharges != 11350 {
		t.Errorf("RTOCharges = %v, want 11350 (10%% road tax + fixed fees)", snapshot.RTOCharges)
	}
	if snapshot.HSNCode != "87112029" || snapshot.GSTRate != 28 {
		t.Errorf("classification = %s/%v, want 87112029/28", snapshot.HSNCode, snapshot.GSTRate)
	}
	if snapshot.InsuranceBase <= 0 {
		t.Errorf("InsuranceBase = %v, want positive gross premium", snapshot.InsuranceBase)
	}

	wantTotal := 100000.0 + snapshot.RTOCharges + snapshot.InsuranceBase + 1650
	if snapshot.TotalOnRoad != wantTotal {
		t.Errorf("TotalOnRoad = %v, want %v", snapshot.TotalOnRoad, wantTotal)
	}
}

func TestBuildSnapshotIdempotent(t *testing.T) {
	a := fixedAssembler()

	first, err := a.BuildSnapshot(assemblyInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := a.BuildSnapshot(assemblyInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.TotalOnRoad != second.TotalOnRoad {
		t.Errorf("TotalOnRoad differs between identical builds: %v vs %v", first.TotalOnRoad, second.TotalOnRoad)
	}
	if first.RTOCharges != second.RTOCharges || first.InsuranceBase != second.InsuranceBase {
		t.Errorf("component amounts differ between identical builds")
	}
}

func TestBuildSnapshotRichRules(t *testing.T) {
	in := assemblyInput()
	in.RegistrationRule = componentRule()
	in.InsuranceRule = insuranceRule()
	in.InsurerID = ""
	in.SelectedAddons = []string{"rsa"}

	snapshot, err := fixedAssembler().BuildSnapshot(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.RuleVersion != 3 {
		t.Errorf("RuleVersion = %d, want 3", snapshot.RuleVersion)
	}
	if snapshot.InsuranceVersion != 2 {
		t.Errorf("InsuranceVersion = %d, want 2", snapshot.InsuranceVersion)
	}
	if len(snapshot.InsuranceAddons) != 1 || snapshot.InsuranceAddons[0].ComponentID != "rsa" {
		t.Errorf("InsuranceAddons = %+v, want only rsa", snapshot.InsuranceAddons)
	}
}

func TestBuildSnapshotWithoutInsurance(t *testing.T) {
	in := assemblyInput()
	in.InsurerID = ""
	in.Accessories = nil

	snapshot, err := fixedAssembler().BuildSnapshot(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.InsuranceBase != 0 {
		t.Errorf("InsuranceBase = %v, want 0", snapshot.InsuranceBase)
	}
	if snapshot.TotalOnRoad != 100000+snapshot.RTOCharges {
		t.Errorf("TotalOnRoad = %v, want ex-showroom + RTO only", snapshot.TotalOnRoad)
	}
}

func TestBuildSnapshotValidation(t *testing.T) {
	in := assemblyInput()
	in.RegistrationRule = nil
	if _, err := fixedAssembler().BuildSnapshot(in); err == nil {
		t.Error("expected error for missing registration rule")
	}

	in = assemblyInput()
	in.Item.ExShowroom = 0
	if _, err := fixedAssembler().BuildSnapshot(in); err == nil {
		t.Error("expected error for zero ex-showroom")
	}
}
