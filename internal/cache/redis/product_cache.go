package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// DefaultProductTTL applies when NewProductCache gets a non-positive TTL.
const DefaultProductTTL = 5 * time.Minute

// ProductCache implements domain.ProductCache with one JSON string per
// product under {prefix}product:{id}.
type ProductCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewProductCache creates a ProductCache backed by the given Client.
func NewProductCache(c *Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	return &ProductCache{rdb: c.Underlying(), prefix: c.prefix, ttl: ttl}
}

func (pc *ProductCache) key(id string) string { return pc.prefix + "product:" + id }

// Set stores p with the cache TTL.
func (pc *ProductCache) Set(ctx context.Context, p domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal product %s: %w", p.ID, err)
	}
	if err := pc.rdb.Set(ctx, pc.key(p.ID), data, pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set product %s: %w", p.ID, err)
	}
	return nil
}

// Get returns the cached product or domain.ErrNotFound on a miss.
func (pc *ProductCache) Get(ctx context.Context, id string) (domain.Product, error) {
	data, err := pc.rdb.Get(ctx, pc.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("redis: get product %s: %w", id, err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Product{}, fmt.Errorf("redis: unmarshal product %s: %w", id, err)
	}
	return p, nil
}

// Invalidate drops the cached entry for id.
func (pc *ProductCache) Invalidate(ctx context.Context, id string) error {
	if err := pc.rdb.Del(ctx, pc.key(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate product %s: %w", id, err)
	}
	return nil
}

var _ domain.ProductCache = (*ProductCache)(nil)
