// Package pricing implements the elasticity-based demand projection used by
// the price simulator. Everything here is pure: no state, no I/O, no errors.
package pricing

import (
	"iter"
	"math"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

const (
	// curveMinPct and curveMaxPct bound the demand curve, in percent of the
	// committed price.
	curveMinPct  = -20
	curveMaxPct  = 20
	curveStepPct = 5

	// CurvePoints is the number of samples DemandCurve yields.
	CurvePoints = (curveMaxPct-curveMinPct)/curveStepPct + 1
)

// Project estimates volume, revenue and profit for p sold at candidatePrice,
// using a constant-elasticity linear approximation. Volume is floored at zero.
// Profit goes negative when candidatePrice is below cost; that is a signal for
// the caller, not an error.
func Project(p domain.Product, candidatePrice float64) domain.SimulationResult {
	var priceChange float64
	if p.Price != 0 {
		priceChange = (candidatePrice - p.Price) / p.Price
	}
	quantityChange := p.Elasticity * priceChange
	volume := math.Max(0, p.BaselineVolume*(1+quantityChange))

	return domain.SimulationResult{
		Volume:         volume,
		Revenue:        volume * candidatePrice,
		Profit:         volume * (candidatePrice - p.Cost),
		PriceChange:    priceChange,
		QuantityChange: quantityChange,
	}
}

// DemandCurve returns the projection of p at -20%..+20% of its committed price
// in 5 point steps. The sequence is evaluated lazily and may be ranged over any
// number of times; each pass recomputes every point.
func DemandCurve(p domain.Product) iter.Seq[domain.CurvePoint] {
	return func(yield func(domain.CurvePoint) bool) {
		for pct := curveMinPct; pct <= curveMaxPct; pct += curveStepPct {
			offset := float64(pct) / 100
			price := p.Price * (1 + offset)
			pt := domain.CurvePoint{
				Offset:           offset,
				Price:            price,
				Current:          pct == 0,
				SimulationResult: Project(p, price),
			}
			if !yield(pt) {
				return
			}
		}
	}
}

// Curve collects DemandCurve into a slice.
func Curve(p domain.Product) []domain.CurvePoint {
	out := make([]domain.CurvePoint, 0, CurvePoints)
	for pt := range DemandCurve(p) {
		out = append(out, pt)
	}
	return out
}
