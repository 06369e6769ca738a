package pricing

import (
	"testing"

	"github.com/dealerstack/onroad/internal/domain"
)

func TestClassifyVehicleTax(t *testing.T) {
	tests := []struct {
		name     string
		fuel     string
		engineCc float64
		wantHSN  string
		wantGST  float64
		wantCess float64
	}{
		{"electric ignores displacement", "ELECTRIC", 650, "87116020", 5, 0},
		{"ev alias", "ev", 110, "87116020", 5, 0},
		{"moped under 50cc", "PETROL", 49, "87111020", 28, 0},
		{"commuter 110cc", "PETROL", 110, "87112029", 28, 0},
		{"boundary 250cc stays general", "PETROL", 250, "87112029", 28, 0},
		{"mid band under cess threshold", "PETROL", 300, "87113020", 28, 0},
		{"mid band above 350cc", "PETROL", 390, "87113020", 28, 12},
		{"upper mid 650cc", "PETROL", 650, "87114010", 28, 15},
		{"superbike 1000cc", "PETROL", 1000, "87115000", 28, 22},
		{"zero displacement falls back", "PETROL", 0, "87112029", 28, 0},
		{"negative displacement falls back", "DIESEL", -10, "87112029", 28, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyVehicleTax(tt.fuel, tt.engineCc)
			if got.HSNCode != tt.wantHSN {
				t.Errorf("HSNCode = %s, want %s", got.HSNCode, tt.wantHSN)
			}
			if got.GSTRate != tt.wantGST {
				t.Errorf("GSTRate = %v, want %v", got.GSTRate, tt.wantGST)
			}
			if got.CessRate != tt.wantCess {
				t.Errorf("CessRate = %v, want %v", got.CessRate, tt.wantCess)
			}
		})
	}
}

func TestClassifyVehicleTaxDeterministic(t *testing.T) {
	first := ClassifyVehicleTax("Petrol", 390)
	for i := 0; i < 10; i++ {
		if got := ClassifyVehicleTax("Petrol", 390); got != first {
			t.Fatalf("classification changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestClassifyVehicleTaxFuelNormalization(t *testing.T) {
	variants := []string{"electric", "Electric", " ELECTRIC ", domain.FuelEV}
	for _, fuel := range variants {
		got := ClassifyVehicleTax(fuel, 200)
		if got.GSTRate != 5 {
			t.Errorf("fuel %q: GSTRate = %v, want 5", fuel, got.GSTRate)
		}
	}
}
