package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/optiprice/internal/domain"
	"github.com/alanyoungcy/optiprice/internal/pricing"
)

// pricingLockTTL bounds how long a crashed writer can block a product.
const pricingLockTTL = 10 * time.Second

// backfillLockTTL covers one store read and one cache write.
const backfillLockTTL = 2 * time.Second

// ProductService owns the product collection and the pricing operations on it.
type ProductService struct {
	products domain.ProductStore
	cache    domain.ProductCache
	locks    domain.LockManager
	audit    domain.AuditStore
	bus      domain.SignalBus
	logger   *slog.Logger

	mu       sync.RWMutex
	selected string
}

// NewProductService creates a ProductService with all required dependencies.
func NewProductService(
	products domain.ProductStore,
	cache domain.ProductCache,
	locks domain.LockManager,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		products: products,
		cache:    cache,
		locks:    locks,
		audit:    audit,
		bus:      bus,
		logger:   logger.With(slog.String("component", "product_service")),
	}
}

// Seed writes catalog into the store when the store holds no products. It
// returns the number of products written.
func (s *ProductService) Seed(ctx context.Context, catalog []domain.Product) (int, error) {
	n, err := s.products.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("product_service: count: %w", err)
	}
	if n > 0 || len(catalog) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	seed := make([]domain.Product, len(catalog))
	for i, p := range catalog {
		p.CreatedAt = now
		p.UpdatedAt = now
		seed[i] = p
	}
	if err := s.products.UpsertBatch(ctx, seed); err != nil {
		return 0, fmt.Errorf("product_service: seed: %w", err)
	}

	s.logger.InfoContext(ctx, "seeded product catalog", slog.Int("count", len(seed)))
	return len(seed), nil
}

// List returns every product ordered by ID.
func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.List(ctx, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("product_service: list: %w", err)
	}
	return products, nil
}

// Get retrieves a product, checking the cache first and falling back to the
// store on a miss. The cache is only back-filled under the product lock.
func (s *ProductService) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.cache.Get(ctx, id)
	if err == nil {
		return p, nil
	}

	unlock, lockErr := s.locks.Acquire(ctx, "product:"+id, backfillLockTTL)
	if lockErr != nil {
		if !errors.Is(lockErr, domain.ErrLockHeld) {
			s.logger.WarnContext(ctx, "product lock failed, skipping cache backfill",
				slog.String("product_id", id),
				slog.String("error", lockErr.Error()),
			)
		}
		p, err = s.products.GetByID(ctx, id)
		if err != nil {
			return domain.Product{}, fmt.Errorf("product_service: get %q: %w", id, err)
		}
		return p, nil
	}
	defer unlock()

	p, err = s.products.GetByID(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product_service: get %q: %w", id, err)
	}

	if cacheErr := s.cache.Set(ctx, p); cacheErr != nil {
		s.logger.WarnContext(ctx, "product cache set failed",
			slog.String("product_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	return p, nil
}

// Select marks id as the selected product.
func (s *ProductService) Select(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	s.selected = p.ID
	s.mu.Unlock()

	s.publish(ctx, "selected", p)
	return p, nil
}

// Selected returns the selected product. Before any selection, or when the
// selected product no longer exists, the first product by ID is used.
func (s *ProductService) Selected(ctx context.Context) (domain.Product, error) {
	s.mu.RLock()
	id := s.selected
	s.mu.RUnlock()

	if id != "" {
		p, err := s.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Product{}, err
		}
	}

	first, err := s.products.List(ctx, domain.ListOpts{Limit: 1})
	if err != nil {
		return domain.Product{}, fmt.Errorf("product_service: first product: %w", err)
	}
	if len(first) == 0 {
		return domain.Product{}, fmt.Errorf("product_service: no products: %w", domain.ErrNotFound)
	}
	return first[0], nil
}

// Simulate projects sales of product id at price.
func (s *ProductService) Simulate(ctx context.Context, id string, price float64) (domain.SimulationResult, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return domain.SimulationResult{}, fmt.Errorf("product_service: price %v: %w", price, domain.ErrInvalidInput)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return domain.SimulationResult{}, err
	}
	return pricing.Project(p, price), nil
}

// Curve samples the demand curve of product id.
func (s *ProductService) Curve(ctx context.Context, id string) ([]domain.CurvePoint, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return pricing.Curve(p), nil
}

// Optimize finds the most profitable curve point for product id and stores
// its price as the product's suggestion.
func (s *ProductService) Optimize(ctx context.Context, id string) (domain.OptimizeResult, error) {
	unlock, err := s.locks.Acquire(ctx, "product:"+id, pricingLockTTL)
	if err != nil {
		return domain.OptimizeResult{}, fmt.Errorf("product_service: optimize %q: %w", id, err)
	}
	defer unlock()

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return domain.OptimizeResult{}, fmt.Errorf("product_service: optimize %q: %w", id, err)
	}

	best := pricing.Optimize(p)
	suggested := best.Price
	if err := s.products.UpdatePricing(ctx, id, p.Price, &suggested); err != nil {
		return domain.OptimizeResult{}, fmt.Errorf("product_service: store suggestion %q: %w", id, err)
	}
	p.SuggestedPrice = &suggested
	p.UpdatedAt = time.Now().UTC()
	s.invalidate(ctx, id)

	res := domain.OptimizeResult{Product: p, Best: best, Uplift: pricing.Uplift(p, best)}
	s.logAudit(ctx, "product_optimized", map[string]any{
		"product_id":      id,
		"price":           p.Price,
		"suggested_price": suggested,
		"offset":          best.Offset,
		"uplift":          res.Uplift,
	})
	s.publish(ctx, "optimized", p)

	s.logger.InfoContext(ctx, "product optimized",
		slog.String("product_id", id),
		slog.Float64("price", p.Price),
		slog.Float64("suggested_price", suggested),
	)
	return res, nil
}

// Apply commits the suggested price of product id. It returns
// domain.ErrNoSuggestion when no optimization has run since the last apply.
func (s *ProductService) Apply(ctx context.Context, id string) (domain.Product, error) {
	unlock, err := s.locks.Acquire(ctx, "product:"+id, pricingLockTTL)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product_service: apply %q: %w", id, err)
	}
	defer unlock()

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product_service: apply %q: %w", id, err)
	}
	if p.SuggestedPrice == nil {
		return domain.Product{}, fmt.Errorf("product_service: apply %q: %w", id, domain.ErrNoSuggestion)
	}

	previous := p.Price
	p.Price = *p.SuggestedPrice
	p.SuggestedPrice = nil
	if err := s.products.UpdatePricing(ctx, id, p.Price, nil); err != nil {
		return domain.Product{}, fmt.Errorf("product_service: apply %q: %w", id, err)
	}
	p.UpdatedAt = time.Now().UTC()
	s.invalidate(ctx, id)

	s.logAudit(ctx, "price_applied", map[string]any{
		"product_id":     id,
		"previous_price": previous,
		"price":          p.Price,
	})
	s.publish(ctx, "applied", p)

	s.logger.InfoContext(ctx, "price applied",
		slog.String("product_id", id),
		slog.Float64("previous_price", previous),
		slog.Float64("price", p.Price),
	)
	return p, nil
}

func (s *ProductService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		// Non-fatal: the entry expires on its own.
		s.logger.WarnContext(ctx, "product cache invalidate failed",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ProductService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ProductService) publish(ctx context.Context, event string, p domain.Product) {
	evt, _ := json.Marshal(map[string]any{
		"event":   event,
		"product": p,
	})
	if err := s.bus.Publish(ctx, domain.ChannelProducts, evt); err != nil {
		s.logger.WarnContext(ctx, "publish product event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
