// Package enrich looks up wallet history to decide whether a trader is fresh.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/polyinsider/tracker/internal/store"
)

const (
	// DefaultTTL is how long derived wallet stats stay valid.
	DefaultTTL = 60 * time.Second
	// DefaultMaxEntries bounds the cache size.
	DefaultMaxEntries = 1000
)

// ActivitySource fetches a wallet's activity history.
type ActivitySource interface {
	FetchActivity(ctx context.Context, user string) ([]store.Activity, error)
}

type cacheEntry struct {
	stats     store.ActorStats
	fetchedAt time.Time
}

// ActorCache maps wallet addresses to derived stats with a TTL. When full,
// one arbitrary entry is evicted before inserting.
type ActorCache struct {
	source     ActivitySource
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	entries    map[string]cacheEntry
}

// Option configures ActorCache.
type Option func(*ActorCache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *ActorCache) {
		c.ttl = ttl
	}
}

// WithMaxEntries overrides DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(c *ActorCache) {
		c.maxEntries = n
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ActorCache) {
		c.now = now
	}
}

// NewActorCache creates a cache backed by source.
func NewActorCache(source ActivitySource, opts ...Option) *ActorCache {
	c := &ActorCache{
		source:     source,
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatsFor returns cached stats for actor, refreshing them on a miss or after
// the TTL. A failed refresh returns the error and caches nothing.
func (c *ActorCache) StatsFor(ctx context.Context, actor string) (store.ActorStats, error) {
	now := c.now()
	if entry, ok := c.entries[actor]; ok && now.Sub(entry.fetchedAt) < c.ttl {
		return entry.stats, nil
	}

	activities, err := c.source.FetchActivity(ctx, actor)
	if err != nil {
		return store.ActorStats{}, fmt.Errorf("refresh stats for %s: %w", store.MaskAddress(actor), err)
	}

	stats := DeriveStats(actor, activities)
	c.put(actor, cacheEntry{stats: stats, fetchedAt: now})
	return stats, nil
}

// put inserts entry, evicting one arbitrary other entry if the cache is full.
func (c *ActorCache) put(actor string, entry cacheEntry) {
	if _, exists := c.entries[actor]; !exists && len(c.entries) >= c.maxEntries {
		for key := range c.entries {
			delete(c.entries, key)
			break
		}
	}
	c.entries[actor] = entry
}

// Len returns the number of cached wallets.
func (c *ActorCache) Len() int {
	return len(c.entries)
}

// DeriveStats counts trades and distinct markets from activity records. Only
// records with a side are trades; the earliest timestamp considers every record.
func DeriveStats(actor string, activities []store.Activity) store.ActorStats {
	markets := make(map[string]struct{})
	totalTrades := 0
	var first *int64

	for _, a := range activities {
		if a.Timestamp != nil && (first == nil || *a.Timestamp < *first) {
			ts := *a.Timestamp
			first = &ts
		}

		if a.Side == nil {
			continue
		}
		switch {
		case a.ConditionID != nil:
			markets[*a.ConditionID] = struct{}{}
		case a.Slug != nil:
			markets[*a.Slug] = struct{}{}
		}
		totalTrades++
	}

	return store.ActorStats{
		Address:       actor,
		UniqueMarkets: len(markets),
		TotalTrades:   totalTrades,
		FirstActivity: first,
	}
}
