package cache

import (
	"sync"
	"time"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

type catalogEntry struct {
	offers   []models.Offer
	cachedAt time.Time
}

// CatalogCache keeps the active offer list per channel for a short TTL.
type CatalogCache struct {
	mu    sync.RWMutex
	store map[models.Channel]catalogEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewCatalogCache(ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		store: make(map[models.Channel]catalogEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *CatalogCache) Get(ch models.Channel) ([]models.Offer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[ch]
	if !ok || c.now().Sub(e.cachedAt) > c.ttl {
		return nil, false
	}
	return e.offers, true
}

func (c *CatalogCache) Set(ch models.Channel, offers []models.Offer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[ch] = catalogEntry{offers: offers, cachedAt: c.now()}
}

// Invalidate drops every channel.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[models.Channel]catalogEntry)
}
