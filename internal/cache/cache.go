// Package cache provides the key/value stores used for fetched price series
// and rendered deep-analysis responses. Values are opaque bytes with a TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarketLens/internal/metrics"
)

// Cache is implemented by every backend. Get reports a miss as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON decodes a cached JSON value into dst.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it.
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

// Instrumented counts hits, misses and errors of the wrapped cache.
type Instrumented struct {
	Cache
	name    string
	metrics *metrics.Metrics
}

// WithMetrics wraps c so every Get is reported under name.
func WithMetrics(c Cache, name string, m *metrics.Metrics) *Instrumented {
	return &Instrumented{Cache: c, name: name, metrics: m}
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := i.Cache.Get(ctx, key)
	switch {
	case err != nil:
		i.metrics.CacheResult(i.name, "error")
	case ok:
		i.metrics.CacheResult(i.name, "hit")
	default:
		i.metrics.CacheResult(i.name, "miss")
	}
	return raw, ok, err
}
