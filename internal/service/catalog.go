package service

import (
	"context"

	"github.com/Cheertaboi/pos-offer-service/internal/cache"
	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

// Repos required by the coordinator (interfaces to allow fakes in tests).

type OfferCatalog interface {
	// ActiveOffers lists active offers enabled for ch, highest priority first.
	ActiveOffers(ctx context.Context, ch models.Channel) ([]models.Offer, error)
	// OfferByID loads one offer regardless of channel or active flag.
	OfferByID(ctx context.Context, id string) (*models.Offer, error)
}

type SessionStore interface {
	LoadSession(ctx context.Context, sessionID string) (models.SessionRecord, error)
	// BindOffer stores lock only if the session has none and records usage
	// in the same transaction. It returns the lock that is stored afterwards
	// and whether it is the one passed in; a lost race records nothing.
	BindOffer(ctx context.Context, sessionID string, lock models.SessionOfferLock, usage models.UsageRecord) (models.SessionOfferLock, bool, error)
	ClearLock(ctx context.Context, sessionID string) error
}

type UsageHistory interface {
	SessionHasUsage(ctx context.Context, sessionID string) (bool, error)
}

// MenuLookup resolves a menu item picked for a category-linked add-on.
type MenuLookup interface {
	MenuItem(ctx context.Context, id string) (models.FreeItem, error)
}

// OfferWriter persists a new offer together with its item links and fills
// in the generated id and creation time.
type OfferWriter interface {
	CreateOffer(ctx context.Context, offer *models.Offer) error
}

type UsagePublisher interface {
	PublishUsage(ctx context.Context, rec models.UsageRecord) error
}

// CachedCatalog serves ActiveOffers from a TTL cache in front of next.
type CachedCatalog struct {
	next  OfferCatalog
	cache *cache.CatalogCache
}

func NewCachedCatalog(next OfferCatalog, c *cache.CatalogCache) *CachedCatalog {
	return &CachedCatalog{next: next, cache: c}
}

func (c *CachedCatalog) ActiveOffers(ctx context.Context, ch models.Channel) ([]models.Offer, error) {
	if offers, ok := c.cache.Get(ch); ok {
		return offers, nil
	}
	offers, err := c.next.ActiveOffers(ctx, ch)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ch, offers)
	return offers, nil
}

func (c *CachedCatalog) OfferByID(ctx context.Context, id string) (*models.Offer, error) {
	return c.next.OfferByID(ctx, id)
}

func (c *CachedCatalog) Invalidate() {
	c.cache.Invalidate()
}
