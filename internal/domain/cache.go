package domain

import (
	"context"
	"time"
)

// ProductCache provides fast product lookups in front of the ProductStore.
type ProductCache interface {
	Set(ctx context.Context, p Product) error
	Get(ctx context.Context, id string) (Product, error)
	Invalidate(ctx context.Context, id string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
	// StreamReadLatest returns the newest count entries, oldest first.
	StreamReadLatest(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}

// Bus channel names shared by publishers and the WebSocket hub.
const (
	ChannelDiscovery    = "discovery"
	ChannelConnectivity = "connectivity"
	ChannelProducts     = "products"
)
