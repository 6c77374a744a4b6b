package birdeye

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solrun-hq/solrunner/pkg/metrics"
)

// PriceCache manages cached token prices to avoid duplicate API calls within
// a scheduler tick. The TTL is short: a stale price must never hold a trigger
// open past the next tick.
type PriceCache struct {
	mu       sync.RWMutex
	cache    map[string]*cachedPrice
	cacheTTL time.Duration
}

// cachedPrice represents a cached token price with timestamp
type cachedPrice struct {
	price     decimal.Decimal
	timestamp time.Time
}

// NewPriceCache creates a new token price cache
func NewPriceCache(cacheTTL time.Duration) *PriceCache {
	return &PriceCache{
		cache:    make(map[string]*cachedPrice),
		cacheTTL: cacheTTL,
	}
}

// Get retrieves a cached price if it's still valid
func (c *PriceCache) Get(mint string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.cache[mint]
	if !exists {
		return decimal.Zero, false
	}

	// Check if cache is still valid
	if time.Since(cached.timestamp) > c.cacheTTL {
		return decimal.Zero, false
	}

	return cached.price, true
}

// Set stores a price in the cache with current timestamp
func (c *PriceCache) Set(mint string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[mint] = &cachedPrice{
		price:     price,
		timestamp: time.Now(),
	}
}

// Clear removes all cached entries
func (c *PriceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedPrice)
}

// Len returns the number of cached entries
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// PriceFeed answers price lookups for the scheduler and safety checks.
type PriceFeed interface {
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// CachedFeed wraps a PriceFeed with a PriceCache.
type CachedFeed struct {
	feed  PriceFeed
	cache *PriceCache
}

var _ PriceFeed = (*CachedFeed)(nil)

func NewCachedFeed(feed PriceFeed, ttl time.Duration) *CachedFeed {
	return &CachedFeed{
		feed:  feed,
		cache: NewPriceCache(ttl),
	}
}

func (f *CachedFeed) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	if price, ok := f.cache.Get(mint); ok {
		metrics.PriceCacheHits.Inc()
		return price, nil
	}
	price, err := f.feed.Price(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	f.cache.Set(mint, price)
	return price, nil
}
