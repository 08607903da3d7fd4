// Package cache provides the request-fingerprint cache consulted before
// the store or the orchestrator run: a shared primary tier (Redis) with a
// process-local fallback tier, keyed TTLs per data class.
package cache

import (
	"context"
	"log"
	"time"
)

// Class selects the TTL bucket for a cached payload.
type Class string

const (
	ClassQuote        Class = "quote"
	ClassHistorical   Class = "historical"
	ClassFundamentals Class = "fundamentals"
	ClassAIAnalysis   Class = "ai-analysis"
	ClassNews         Class = "news"
)

// DefaultTTLs is the per-class TTL table.
func DefaultTTLs() map[Class]time.Duration {
	return map[Class]time.Duration{
		ClassQuote:        300 * time.Second,
		ClassHistorical:   3600 * time.Second,
		ClassFundamentals: 86400 * time.Second,
		ClassAIAnalysis:   604800 * time.Second,
		ClassNews:         1800 * time.Second,
	}
}

// Tier is one cache level. The primary tier may be absent or failing at
// any time; the cache degrades to the memory tier without call-site changes.
type Tier interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, payload string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Cache is the dual-tier cache. Construct it explicitly and inject it;
// there is intentionally no package-level instance.
type Cache struct {
	primary Tier // nil when no shared cache is configured
	memory  *MemoryTier
	ttls    map[Class]time.Duration
}

// New builds a cache over an optional primary tier. A nil primary means
// process-local caching only.
func New(primary Tier, ttls map[Class]time.Duration) *Cache {
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	return &Cache{
		primary: primary,
		memory:  NewMemoryTier(),
		ttls:    ttls,
	}
}

// TTL returns the configured TTL for a class.
func (c *Cache) TTL(class Class) time.Duration {
	if ttl, ok := c.ttls[class]; ok {
		return ttl
	}
	return c.ttls[ClassQuote]
}

// Get checks the primary tier first, then the memory tier. A miss on
// both is a true miss; the caller recomputes or fetches.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c.primary != nil {
		payload, ok, err := c.primary.Get(ctx, key)
		if err != nil {
			log.Printf("[WARN] primary cache get %s: %v", key, err)
		} else if ok {
			return payload, true
		}
	}
	if payload, ok, _ := c.memory.Get(ctx, key); ok {
		return payload, true
	}
	return "", false
}

// Set writes to both tiers unconditionally.
func (c *Cache) Set(ctx context.Context, key, payload string, class Class) {
	ttl := c.TTL(class)
	if c.primary != nil {
		if err := c.primary.Set(ctx, key, payload, ttl); err != nil {
			log.Printf("[WARN] primary cache set %s: %v", key, err)
		}
	}
	_ = c.memory.Set(ctx, key, payload, ttl)
}

// Delete removes a key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c.primary != nil {
		if err := c.primary.Delete(ctx, key); err != nil {
			log.Printf("[WARN] primary cache delete %s: %v", key, err)
		}
	}
	_ = c.memory.Delete(ctx, key)
}

// ClearPrefix removes every key starting with prefix from both tiers.
func (c *Cache) ClearPrefix(ctx context.Context, prefix string) {
	if c.primary != nil {
		if err := c.primary.DeletePrefix(ctx, prefix); err != nil {
			log.Printf("[WARN] primary cache clear %s*: %v", prefix, err)
		}
	}
	_ = c.memory.DeletePrefix(ctx, prefix)
}

// Sweep evicts expired entries from the memory tier. The scheduler runs
// this periodically; the primary tier expires keys on its own.
func (c *Cache) Sweep() int {
	return c.memory.Sweep()
}

// Stats reports tier availability and memory-tier size for logging.
func (c *Cache) Stats() (primaryAvailable bool, memoryEntries int) {
	return c.primary != nil, c.memory.Len()
}
