package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ProductStore persists the product collection.
type ProductStore interface {
	Upsert(ctx context.Context, p Product) error
	UpsertBatch(ctx context.Context, products []Product) error
	GetByID(ctx context.Context, id string) (Product, error)
	List(ctx context.Context, opts ListOpts) ([]Product, error)
	Count(ctx context.Context) (int64, error)
	UpdatePricing(ctx context.Context, id string, price float64, suggested *float64) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
