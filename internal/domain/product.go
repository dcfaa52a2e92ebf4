package domain

import "time"

// Product is a sellable item together with the economic parameters the
// simulation engine needs. Price above Cost is expected but not enforced.
type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	Cost            float64   `json:"cost"`
	Price           float64   `json:"price"`
	CompetitorPrice float64   `json:"competitor_price"`
	Elasticity      float64   `json:"elasticity"`
	BaselineVolume  float64   `json:"baseline_volume"`
	Stock           int64     `json:"stock"`
	SuggestedPrice  *float64  `json:"suggested_price,omitempty"` // set by an optimization run, cleared on apply
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Margin returns the unit margin at the committed price.
func (p Product) Margin() float64 {
	return p.Price - p.Cost
}

// SimulationResult is the projection for one (product, candidate price) pair.
// It is derived on demand and never persisted.
type SimulationResult struct {
	Volume         float64 `json:"volume"`
	Revenue        float64 `json:"revenue"`
	Profit         float64 `json:"profit"`
	PriceChange    float64 `json:"price_change"`
	QuantityChange float64 `json:"quantity_change"`
}

// CurvePoint is one sample of a demand curve.
type CurvePoint struct {
	Offset  float64 `json:"offset"` // fractional offset from the committed price, e.g. -0.20
	Price   float64 `json:"price"`
	Current bool    `json:"current"`
	SimulationResult
}

// OptimizeResult is the outcome of an optimization run: the product with its
// new suggested price, the winning curve sample, and the profit gained.
type OptimizeResult struct {
	Product Product    `json:"product"`
	Best    CurvePoint `json:"best"`
	Uplift  float64    `json:"uplift"`
}
