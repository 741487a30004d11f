package service

import (
	"sync"
	"time"

	"screener_bot/internal/models"
)

// Кэши с TTL — явные объекты, создаются один раз в клиенте
// и живут столько же.

type priceCache struct {
	ttl time.Duration

	mu    sync.RWMutex
	items map[string]priceEntry
}

type priceEntry struct {
	px float64
	at time.Time
}

func newPriceCache(ttl time.Duration) *priceCache {
	return &priceCache{
		ttl:   ttl,
		items: make(map[string]priceEntry),
	}
}

func (c *priceCache) get(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[symbol]
	if !ok || time.Since(e.at) > c.ttl {
		return 0, false
	}
	return e.px, true
}

func (c *priceCache) put(symbol string, px float64) {
	c.mu.Lock()
	c.items[symbol] = priceEntry{px: px, at: time.Now()}
	c.mu.Unlock()
}

type tickerCache struct {
	ttl time.Duration

	mu    sync.RWMutex
	items map[string]models.Ticker
	at    time.Time
}

func newTickerCache(ttl time.Duration) *tickerCache {
	return &tickerCache{ttl: ttl}
}

func (c *tickerCache) get() (map[string]models.Ticker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.items == nil || time.Since(c.at) > c.ttl {
		return nil, false
	}
	return c.items, true
}

func (c *tickerCache) put(items map[string]models.Ticker) {
	c.mu.Lock()
	c.items = items
	c.at = time.Now()
	c.mu.Unlock()
}
