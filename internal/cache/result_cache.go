package cache

import (
	"sync"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

// ResultCache holds the latest eligibility result per offer id for one
// session. Writes carry the generation of the evaluation pass that produced
// them; a pass older than the one already stored is ignored.
type ResultCache struct {
	mu      sync.RWMutex
	gen     uint64
	results map[string]models.EligibilityResult
}

func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[string]models.EligibilityResult)}
}

// Replace swaps in a complete result set. It reports false when gen is
// older than the stored generation.
func (c *ResultCache) Replace(gen uint64, results map[string]models.EligibilityResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen < c.gen {
		return false
	}
	c.gen = gen
	c.results = make(map[string]models.EligibilityResult, len(results))
	for k, v := range results {
		c.results[k] = v
	}
	return true
}

// Put overwrites one offer's result within the stored generation. A result
// for any other generation is dropped so a partial write never makes an
// unfinished pass look complete.
func (c *ResultCache) Put(gen uint64, res models.EligibilityResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.results[res.OfferID] = res
	return true
}

func (c *ResultCache) Get(offerID string) (models.EligibilityResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[offerID]
	return r, ok
}

// All returns a copy of every cached result.
func (c *ResultCache) All() map[string]models.EligibilityResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.EligibilityResult, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

func (c *ResultCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *ResultCache) Clear(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen >= c.gen {
		c.gen = gen
		c.results = make(map[string]models.EligibilityResult)
	}
}
