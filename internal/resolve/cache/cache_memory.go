package cache

import (
	"context"
	"sync"
	"time"

	"veridoc/internal/domain"
)

type memHint struct {
	loc     domain.StorageLocation
	expires time.Time
}

// InMemoryCache is the redis-less hint cache for development and tests.
type InMemoryCache struct {
	mu    sync.RWMutex
	hints map[string]memHint
	ttl   time.Duration
	now   func() time.Time
}

func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		hints: make(map[string]memHint),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *InMemoryCache) Get(_ context.Context, entryID string, lane domain.Lane) (domain.StorageLocation, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hint, ok := c.hints[key(entryID, lane)]
	if !ok || c.now().After(hint.expires) {
		return domain.StorageLocation{}, false, nil
	}
	return hint.loc, true, nil
}

func (c *InMemoryCache) Set(_ context.Context, entryID string, lane domain.Lane, loc domain.StorageLocation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hints[key(entryID, lane)] = memHint{loc: loc, expires: c.now().Add(c.ttl)}
	return nil
}
