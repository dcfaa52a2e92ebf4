package pricing

import "github.com/alanyoungcy/optiprice/internal/domain"

// Optimize returns the demand-curve sample with the highest projected profit.
// Ties keep the lower price.
func Optimize(p domain.Product) domain.CurvePoint {
	var (
		best  domain.CurvePoint
		found bool
	)
	for pt := range DemandCurve(p) {
		if !found || pt.Profit > best.Profit {
			best = pt
			found = true
		}
	}
	return best
}

// Uplift is the profit gained by moving from the committed price to pt.
func Uplift(p domain.Product, pt domain.CurvePoint) float64 {
	return pt.Profit - Project(p, p.Price).Profit
}
