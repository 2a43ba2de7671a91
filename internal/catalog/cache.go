package catalog

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const defaultCacheSize = 512

type cachedEntry struct {
	value     any
	expiresAt time.Time
}

// Cached memoizes lookups of another Catalog for ttl. Reference data changes
// rarely and every engine operation reads it, so the hot path stays off the
// database.
type Cached struct {
	src   Catalog
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewCached(src Catalog, ttl time.Duration) (*Cached, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	return &Cached{src: src, cache: cache, ttl: ttl, now: time.Now}, nil
}

// Invalidate drops every cached entry.
func (c *Cached) Invalidate() {
	c.cache.Purge()
}

func cachedLookup[T any](c *Cached, key string, load func() (T, error)) (T, error) {
	if v, ok := c.cache.Get(key); ok {
		entry := v.(cachedEntry)
		if c.now().Before(entry.expiresAt) {
			return entry.value.(T), nil
		}
		c.cache.Remove(key)
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.cache.Add(key, cachedEntry{value: v, expiresAt: c.now().Add(c.ttl)})
	return v, nil
}

func (c *Cached) SwordLevel(ctx context.Context, tier int) (SwordLevel, error) {
	return cachedLookup(c, fmt.Sprintf("sword:%d", tier), func() (SwordLevel, error) {
		return c.src.SwordLevel(ctx, tier)
	})
}

func (c *Cached) SwordLevels(ctx context.Context) ([]SwordLevel, error) {
	return cachedLookup(c, "swords", func() ([]SwordLevel, error) {
		return c.src.SwordLevels(ctx)
	})
}

func (c *Cached) Material(ctx context.Context, id int64) (Material, error) {
	return cachedLookup(c, fmt.Sprintf("material:%d", id), func() (Material, error) {
		return c.src.Material(ctx, id)
	})
}

func (c *Cached) Materials(ctx context.Context) ([]Material, error) {
	return cachedLookup(c, "materials", func() ([]Material, error) {
		return c.src.Materials(ctx)
	})
}

func (c *Cached) Settings(ctx context.Context) (Settings, error) {
	return cachedLookup(c, "settings", func() (Settings, error) {
		return c.src.Settings(ctx)
	})
}

func (c *Cached) DailyMission(ctx context.Context, id string) (DailyMission, error) {
	return cachedLookup(c, "daily:"+id, func() (DailyMission, error) {
		return c.src.DailyMission(ctx, id)
	})
}

func (c *Cached) DailyMissions(ctx context.Context) ([]DailyMission, error) {
	return cachedLookup(c, "daily", func() ([]DailyMission, error) {
		return c.src.DailyMissions(ctx)
	})
}

func (c *Cached) OneTimeMission(ctx context.Context, id string) (OneTimeMission, error) {
	return cachedLookup(c, "mission:"+id, func() (OneTimeMission, error) {
		return c.src.OneTimeMission(ctx, id)
	})
}

func (c *Cached) OneTimeMissions(ctx context.Context) ([]OneTimeMission, error) {
	return cachedLookup(c, "missions", func() ([]OneTimeMission, error) {
		return c.src.OneTimeMissions(ctx)
	})
}
