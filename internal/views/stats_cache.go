package views

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStatsUnavailable is returned by a CachingStats without a source.
var ErrStatsUnavailable = errors.New("channel stats source unavailable")

// StatsSource computes channel statistics.
type StatsSource interface {
	ChannelStats(ctx context.Context, channelID string) (ChannelStats, error)
}

type statsEntry struct {
	stats   ChannelStats
	expires time.Time
}

// CachingStats wraps another StatsSource with a TTL-based in-memory cache.
// Dashboards poll the stats endpoint, and each miss fans out four queries.
type CachingStats struct {
	base StatsSource
	ttl  time.Duration

	mu    sync.RWMutex
	items map[string]statsEntry
}

// NewCachingStats returns a StatsSource that caches results for the provided TTL.
func NewCachingStats(base StatsSource, ttl time.Duration) *CachingStats {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingStats{
		base:  base,
		ttl:   ttl,
		items: make(map[string]statsEntry),
	}
}

// ChannelStats returns cached stats when fresh, otherwise it delegates to the
// underlying source and stores the result.
func (c *CachingStats) ChannelStats(ctx context.Context, channelID string) (ChannelStats, error) {
	if c == nil || c.base == nil {
		return ChannelStats{}, ErrStatsUnavailable
	}

	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[channelID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.stats, nil
	}

	stats, err := c.base.ChannelStats(ctx, channelID)
	if err != nil {
		return ChannelStats{}, err
	}

	c.mu.Lock()
	c.items[channelID] = statsEntry{stats: stats, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return stats, nil
}

// Invalidate drops the cached entry for channelID.
func (c *CachingStats) Invalidate(channelID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, channelID)
	c.mu.Unlock()
}
