// Package songcache caches /songs responses in memory for a fixed TTL.
package songcache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/justestif/go-song-swiper/internal/songs"
)

// DefaultTTL is how long a cached response is served.
const DefaultTTL = time.Hour

type entry struct {
	songs     []songs.Song
	expiresAt time.Time
}

// Cache is a process-wide response cache keyed by catalog and normalized query.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	group singleflight.Group
}

// New creates a Cache. A zero ttl uses DefaultTTL; a nil now uses time.Now.
func New(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}
}

// Key builds the cache key for a query against catalog.
func Key(catalog string, q songs.Query, limit int) string {
	norm := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	return fmt.Sprintf("%s|%s|%s|%s|%d", catalog, norm(q.Mood), norm(q.Genre), norm(q.Keywords), limit)
}

// Get returns a copy of the cached list if it has not expired.
func (c *Cache) Get(key string) ([]songs.Song, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return slices.Clone(e.songs), true
}

// Set stores a copy of list under key.
func (c *Cache) Set(key string, list []songs.Song) {
	c.mu.Lock()
	c.entries[key] = entry{songs: slices.Clone(list), expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// GetOrFetch returns the cached list for key, or calls fetch once for all
// concurrent callers of the same key and caches a successful result.
// Errors are never cached. The shared fetch runs detached from the caller's
// cancellation so one disconnecting client cannot fail the others waiting on key.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) ([]songs.Song, error)) (list []songs.Song, hit bool, err error) {
	if list, ok := c.Get(key); ok {
		return list, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if list, ok := c.Get(key); ok {
			return list, nil
		}
		list, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.Set(key, list)
		return list, nil
	})
	if err != nil {
		return nil, false, err
	}
	return slices.Clone(v.([]songs.Song)), false, nil
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
