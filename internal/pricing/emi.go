package pricing

import (
	"math"
)

// DefaultEMITenure is the canonical tenure every unknown tenure falls
// back to.
const DefaultEMITenure = 36

// FactorTable resolves flat-rate EMI multipliers by tenure. It is
// immutable after construction and safe for concurrent use; inject an
// alternate table in tests instead of patching globals.
type FactorTable struct {
	factors       map[int]float64
	defaultTenure int
}

// NewFactorTable builds a table from tenure → factor entries. The
// defaultTenure must be present in the map; if it is not, the standard
// table's default is substituted.
func NewFactorTable(factors map[int]float64, defaultTenure int) *FactorTable {
	copied := make(map[int]float64, len(factors))
	for tenure, factor := range factors {
		copied[tenure] = factor
	}
	if _, ok := copied[defaultTenure]; !ok {
		defaultTenure = DefaultEMITenure
		copied[defaultTenure] = standardEMIFactors[DefaultEMITenure]
	}
	return &FactorTable{factors: copied, defaultTenure: defaultTenure}
}

// standardEMIFactors are the production flat-rate multipliers.
var standardEMIFactors = map[int]float64{
	12: 0.091,
	24: 0.049,
	36: 0.035,
	48: 0.028,
	60: 0.024,
}

// DefaultFactorTable returns the standard 12/24/36/48/60 month table.
func DefaultFactorTable() *FactorTable {
	return NewFactorTable(standardEMIFactors, DefaultEMITenure)
}

// Factor returns the multiplier for a tenure. Any tenure not in the
// table, including zero and negatives, resolves to the default tenure's
// factor; this never fails.
func (t *FactorTable) Factor(tenureMonths int) float64 {
	if f, ok := t.factors[tenureMonths]; ok {
		return f
	}
	return t.factors[t.defaultTenure]
}

// Monthly estimates the monthly EMI for a principal at the given tenure,
// clamped to be non-negative.
func (t *FactorTable) Monthly(principal float64, tenureMonths int) float64 {
	if principal <= 0 || math.IsNaN(principal) || math.IsInf(principal, 0) {
		return 0
	}
	return math.Max(0, math.Round(principal*t.Factor(tenureMonths)))
}

// Tenures returns the defined tenures in ascending order.
func (t *FactorTable) Tenures() []int {
	tenures := make([]int, 0, len(t.factors))
	for tenure := range t.factors {
		tenures = append(tenures, tenure)
	}
	for i := 1; i < len(tenures); i++ {
		for j := i; j > 0 && tenures[j] < tenures[j-1]; j-- {
			tenures[j], tenures[j-1] = tenures[j-1], tenures[j]
		}
	}
	return tenures
}
