// Package profile resolves user display data for channel rows.
package profile

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adamavenir/pairchat/internal/types"
)

const DefaultTTL = 10 * time.Minute

// Fetcher loads one user's profile from the profile store.
type Fetcher interface {
	FetchUser(ctx context.Context, userID string) (types.Profile, error)
}

// Cache memoizes profiles for a TTL and collapses concurrent lookups of the same user.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
}

type entry struct {
	profile types.Profile
	expires time.Time
}

func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Lookup returns the cached profile or fetches it.
// Failed fetches are not cached.
func (c *Cache) Lookup(ctx context.Context, userID string) (types.Profile, error) {
	c.mu.Lock()
	if e, ok := c.entries[userID]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.profile, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(userID, func() (any, error) {
		c.mu.Lock()
		if e, ok := c.entries[userID]; ok && c.now().Before(e.expires) {
			c.mu.Unlock()
			return e.profile, nil
		}
		c.mu.Unlock()

		profile, err := c.fetcher.FetchUser(ctx, userID)
		if err != nil {
			return types.Profile{}, err
		}
		if profile.ID == "" {
			profile.ID = userID
		}
		c.mu.Lock()
		c.entries[userID] = entry{profile: profile, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return profile, nil
	})
	if err != nil {
		return types.Profile{}, err
	}
	return v.(types.Profile), nil
}

// Invalidate drops a cached profile.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// Name returns a display name, falling back to the user id.
func Name(p types.Profile) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}
