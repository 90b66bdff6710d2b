package safe182

import (
	"testing"
	"time"
)

// fakeClock advances manually so freshness windows are exact.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(minInterval, cacheDuration time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	c := NewCache(minInterval, cacheDuration)
	c.now = clock.now
	return c, clock
}

func TestShouldFetchGate(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(5*time.Minute, time.Hour)

	if !c.ShouldFetch() {
		t.Fatal("fresh cache should allow the first fetch")
	}

	c.RecordSuccess([]RawPerson{{Name: "a"}})
	if c.ShouldFetch() {
		t.Error("fetch allowed before the minimum interval elapsed")
	}

	clock.advance(5 * time.Minute)
	if !c.ShouldFetch() {
		t.Error("fetch blocked after the minimum interval elapsed")
	}
}

func TestCachedExpiry(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(5*time.Minute, time.Hour)

	if c.Cached() != nil {
		t.Fatal("empty cache should report nothing")
	}

	batch := []RawPerson{{Name: "a"}, {Name: "b"}}
	c.RecordSuccess(batch)
	if got := c.Cached(); len(got) != 2 {
		t.Fatalf("cached = %d records, want 2", len(got))
	}

	clock.advance(59 * time.Minute)
	if c.Cached() == nil {
		t.Error("cache expired before its freshness window")
	}

	clock.advance(time.Minute)
	if c.Cached() != nil {
		t.Error("stale cache still served")
	}
}

func TestFailureLeavesGateOpen(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(5*time.Minute, time.Hour)
	c.RecordFailure()

	if !c.ShouldFetch() {
		t.Error("a failed attempt must not arm the rate gate")
	}

	stats := c.Stats()
	if stats.TotalRequests != 0 {
		t.Errorf("total = %d, want 0", stats.TotalRequests)
	}
	if stats.ErrorCount != 1 {
		t.Errorf("errors = %d, want 1", stats.ErrorCount)
	}
	if !stats.LastRequest.IsZero() {
		t.Error("failure must not stamp the last request time")
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(time.Minute, time.Hour)
	c.RecordSuccess([]RawPerson{{Name: "a"}})
	clock.advance(time.Minute)
	c.RecordSuccess([]RawPerson{{Name: "a"}})
	clock.advance(time.Minute)
	c.RecordFailure()
	clock.advance(30 * time.Second)

	stats := c.Stats()
	if stats.TotalRequests != 2 {
		t.Errorf("total = %d, want 2", stats.TotalRequests)
	}
	if stats.ErrorCount != 1 {
		t.Errorf("errors = %d, want 1", stats.ErrorCount)
	}
	if stats.SuccessRate < 66 || stats.SuccessRate > 67 {
		t.Errorf("success rate = %.2f", stats.SuccessRate)
	}
	if stats.CacheAge != 90 {
		t.Errorf("cache age = %.0f seconds, want 90", stats.CacheAge)
	}
}
