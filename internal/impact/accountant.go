package impact

import "github.com/nearexpiry/backend-nearexpiry/internal/pricing"

// Per-unit constants behind the environmental estimates. The values are fixed
// domain assumptions, not measurements: 500g of product diverted per unit sold,
// carbon at half the diverted mass, one green point per 10 currency units.
const (
	wasteGramsPerUnit   = 500
	carbonGramsPerWaste = 500 // per kg of diverted mass
	pointsDivisor       = 10
)

// Delta is the per-order increment applied to a buyer's cumulative impact
// counters. Masses are tracked in grams so accumulation stays exact.
type Delta struct {
	WasteSavedGrams  int64
	GreenPoints      int64
	CarbonSavedGrams int64
}

// Line is the quantity view of an order line item.
type Line struct {
	Quantity int
}

// ForOrder computes the impact delta for a whole order: waste scales with the
// unit count, green points with the amount spent (once per order, floored),
// and carbon with the diverted mass.
func ForOrder(lines []Line, totalAmount pricing.Money) Delta {
	var waste int64
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		waste += int64(l.Quantity) * wasteGramsPerUnit
	}
	points := int64(0)
	if totalAmount > 0 {
		points = int64(totalAmount) / pointsDivisor
	}
	return Delta{
		WasteSavedGrams:  waste,
		GreenPoints:      points,
		CarbonSavedGrams: waste * carbonGramsPerWaste / 1000,
	}
}

// Add folds another delta into d. Deltas are non-negative by construction, so
// cumulative totals only ever grow; cancelled orders keep their counted impact.
func (d Delta) Add(other Delta) Delta {
	return Delta{
		WasteSavedGrams:  d.WasteSavedGrams + other.WasteSavedGrams,
		GreenPoints:      d.GreenPoints + other.GreenPoints,
		CarbonSavedGrams: d.CarbonSavedGrams + other.CarbonSavedGrams,
	}
}

// WasteSavedKg reports the diverted mass in kilograms.
func (d Delta) WasteSavedKg() float64 { return float64(d.WasteSavedGrams) / 1000 }

// CarbonSavedKg reports the avoided emissions in kilograms of CO2.
func (d Delta) CarbonSavedKg() float64 { return float64(d.CarbonSavedGrams) / 1000 }
