package quote

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 60 * time.Second

type cachedQuote struct {
	quote   Quote
	fetched time.Time
}

// CachedClient serves display-path lookups (quote page, portfolio valuation)
// from a TTL cache. Trade execution must not use it: executed prices have to
// be live, so the trading service holds the underlying Client instead.
type CachedClient struct {
	client Client
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cachedQuote
}

func NewCachedClient(client Client, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedClient{
		client: client,
		ttl:    ttl,
		cache:  make(map[string]cachedQuote),
	}
}

func (c *CachedClient) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetched) < c.ttl {
		q := entry.quote
		return &q, nil
	}

	fresh, err := c.client.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = cachedQuote{quote: *fresh, fetched: time.Now()}
	c.mu.Unlock()

	return fresh, nil
}

// RefreshAll re-fetches every cached symbol. Run periodically from the cron
// scheduler so the portfolio page stays warm between requests. Symbols whose
// lookup fails keep their stale entry and age out through the TTL.
func (c *CachedClient) RefreshAll(ctx context.Context) error {
	c.mu.RLock()
	symbols := make([]string, 0, len(c.cache))
	for symbol := range c.cache {
		symbols = append(symbols, symbol)
	}
	c.mu.RUnlock()

	if len(symbols) == 0 {
		log.Println("No cached quotes to refresh")
		return nil
	}

	var refreshed int
	for _, symbol := range symbols {
		fresh, err := c.client.Lookup(ctx, symbol)
		if err != nil {
			log.Printf("Could not refresh quote for %s: %v", symbol, err)
			continue
		}
		c.mu.Lock()
		c.cache[symbol] = cachedQuote{quote: *fresh, fetched: time.Now()}
		c.mu.Unlock()
		refreshed++
	}

	log.Printf("Quote cache refreshed: %d/%d symbols", refreshed, len(symbols))
	return nil
}
