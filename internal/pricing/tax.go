// Package pricing implements the on-road pricing computation core:
// tax classification, EMI factors, registration charges, insurance
// premiums, coin pricing, and snapshot assembly.
//
// Everything here is pure and deterministic. The engines favor silent,
// deterministic fallback over errors for out-of-range values, so a quote
// always resolves to a number; only a structurally broken rule is an error.
package pricing

import (
	"strings"

	"github.com/dealerstack/onroad/internal/domain"
)

// Displacement band boundaries in cc.
const (
	ccBandMoped   = 50
	ccBandGeneral = 250
	ccBandMid     = 500
	ccBandLuxury  = 350 // within the mid band, cess escalates above this
	ccBandHigh    = 800
)

// ClassifyVehicleTax maps (fuelType, engineCc) to an HSN code, GST rate,
// and cess rate. Electric vehicles get a flat 5% GST regardless of cc;
// all other bands carry 28% GST with cess varying by displacement.
// Unrecognized displacement values fall back to the general 50-250cc
// classification rather than failing.
func ClassifyVehicleTax(fuelType string, engineCc float64) domain.TaxClassification {
	fuel := strings.ToUpper(strings.TrimSpace(fuelType))

	if fuel == domain.FuelElectric || fuel == domain.FuelEV {
		return domain.TaxClassification{
			HSNCode:     "87116020",
			GSTRate:     5,
			CessRate:    0,
			Description: "Electric two-wheeler",
		}
	}

	switch {
	case engineCc > 0 && engineCc < ccBandMoped:
		return domain.TaxClassification{
			HSNCode:     "87111020",
			GSTRate:     28,
			CessRate:    0,
			Description: "Moped / under 50cc",
		}
	case engineCc >= ccBandMoped && engineCc <= ccBandGeneral:
		return generalClassification()
	case engineCc > ccBandGeneral && engineCc <= ccBandMid:
		// 350+ within this band enters the luxury cess bracket.
		cess := 0.0
		desc := "Motorcycle 251-500cc"
		if engineCc > ccBandLuxury {
			cess = 12
			desc = "Motorcycle 251-500cc (above 350cc)"
		}
		return domain.TaxClassification{
			HSNCode:     "87113020",
			GSTRate:     28,
			CessRate:    cess,
			Description: desc,
		}
	case engineCc > ccBandMid && engineCc <= ccBandHigh:
		return domain.TaxClassification{
			HSNCode:     "87114010",
			GSTRate:     28,
			CessRate:    15,
			Description: "Motorcycle 501-800cc",
		}
	case engineCc > ccBandHigh:
		return domain.TaxClassification{
			HSNCode:     "87115000",
			GSTRate:     28,
			CessRate:    22,
			Description: "Motorcycle above 800cc",
		}
	default:
		// Negative, zero, or NaN displacement: default to the general band.
		return generalClassification()
	}
}

func generalClassification() domain.TaxClassification {
	return domain.TaxClassification{
		HSNCode:     "87112029",
		GSTRate:     28,
		CessRate:    0,
		Description: "Motorcycle 50-250cc",
	}
}
