package safe182

import (
	"sync"
	"time"
)

// Cache gates and memoizes registry fetches. It holds the last successful
// batch and request/error counters; a single mutex covers all state since
// the poller is the only writer and contention is low.
type Cache struct {
	mu sync.Mutex

	minInterval   time.Duration
	cacheDuration time.Duration

	lastRequest  time.Time
	cachedAt     time.Time
	cached       []RawPerson
	requestCount int
	errorCount   int

	now func() time.Time
}

// CacheStats is the cache's health-reporting snapshot.
type CacheStats struct {
	TotalRequests int       `json:"total_requests"`
	ErrorCount    int       `json:"error_count"`
	SuccessRate   float64   `json:"success_rate"`
	LastRequest   time.Time `json:"last_request"`
	CacheAge      float64   `json:"cache_age_seconds"`
}

// NewCache creates a cache enforcing the given minimum fetch interval and
// snapshot freshness window.
func NewCache(minInterval, cacheDuration time.Duration) *Cache {
	return &Cache{
		minInterval:   minInterval,
		cacheDuration: cacheDuration,
		now:           time.Now,
	}
}

// ShouldFetch reports whether the minimum interval since the last
// successful fetch has elapsed.
func (c *Cache) ShouldFetch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.lastRequest) >= c.minInterval
}

// Cached returns the last fetched batch if it is still fresh, or nil.
func (c *Cache) Cached() []RawPerson {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil || c.now().Sub(c.cachedAt) >= c.cacheDuration {
		return nil
	}
	return c.cached
}

// RecordSuccess stores the batch, stamps the fetch time, and increments
// the request counter.
func (c *Cache) RecordSuccess(batch []RawPerson) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.cached = batch
	c.cachedAt = now
	c.lastRequest = now
	c.requestCount++
}

// RecordFailure increments the error counter. The rate gate and cache
// contents are untouched; retry pacing after a failure is the caller's
// backoff sleep.
func (c *Cache) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCount++
}

// Stats returns the current counters for health and status reporting.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		TotalRequests: c.requestCount,
		ErrorCount:    c.errorCount,
		LastRequest:   c.lastRequest,
	}
	if attempts := c.requestCount + c.errorCount; attempts > 0 {
		stats.SuccessRate = float64(c.requestCount) / float64(attempts) * 100
	}
	if !c.cachedAt.IsZero() {
		stats.CacheAge = c.now().Sub(c.cachedAt).Seconds()
	}
	return stats
}
