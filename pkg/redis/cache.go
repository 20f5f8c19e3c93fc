package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache provides typed caching utilities on top of Client.
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value. A miss (or disabled Redis) returns
// found=false without error.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if err != nil {
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Del(ctx, fullKey).Err()
}

// Predefined TTLs
const (
	TTLShort  = 1 * time.Minute  // intra-run intermediates
	TTLMedium = 10 * time.Minute // peer-group aggregates
	TTLDaily  = 24 * time.Hour   // per-date cross sections
)

// PeerSeriesKey identifies a cached peer-group mean close series. The
// excluded target symbol is part of the key because each symbol's peer
// average omits its own closes, and the as-of date is part of the key
// because a backfill computes a different series per date.
func PeerSeriesKey(group, value, exclude string, lookbackDays int, asOf time.Time) string {
	return fmt.Sprintf("peer:%s:%s:%s:%d:%s", group, value, exclude, lookbackDays, asOf.Format("2006-01-02"))
}

// BenchmarkSeriesKey identifies a cached benchmark close series.
func BenchmarkSeriesKey(symbol string) string {
	return fmt.Sprintf("benchmark:%s", symbol)
}
