package injection

import (
	"context"
	"sync"
	"time"
)

// DefaultFocusCacheTTL matches spec §3's FocusStatus TTL default.
const DefaultFocusCacheTTL = 200 * time.Millisecond

// FocusChecker queries the live focus state; AccessibilityBackend
// satisfies this in production.
type FocusChecker interface {
	FocusStatus(ctx context.Context) (FocusStatus, error)
}

// FocusTracker caches FocusStatus for ttl to avoid thrashing the
// accessibility bus (spec §3 FocusStatus, §4.10 cadence note).
type FocusTracker struct {
	checker FocusChecker
	ttl     time.Duration

	mu       sync.Mutex
	cachedAt time.Time
	cached   FocusStatus
	valid    bool
}

// NewFocusTracker builds a tracker backed by checker with the given TTL (0
// uses DefaultFocusCacheTTL).
func NewFocusTracker(checker FocusChecker, ttl time.Duration) *FocusTracker {
	if ttl <= 0 {
		ttl = DefaultFocusCacheTTL
	}
	return &FocusTracker{checker: checker, ttl: ttl}
}

// Status returns the cached status if still fresh, else re-queries and
// refreshes the cache. A query failure degrades to UnknownFocus rather than
// propagating an error, matching spec §4.8 step 3's "Unknown" handling.
func (t *FocusTracker) Status(ctx context.Context) FocusStatus {
	t.mu.Lock()
	if t.valid && time.Since(t.cachedAt) < t.ttl {
		status := t.cached
		t.mu.Unlock()
		return status
	}
	t.mu.Unlock()

	status, err := t.checker.FocusStatus(ctx)
	if err != nil {
		status = UnknownFocus
	}

	t.mu.Lock()
	t.cached = status
	t.cachedAt = time.Now()
	t.valid = true
	t.mu.Unlock()
	return status
}

// Invalidate clears the cache, forcing the next Status call to re-query
// (useful when the caller observes a window-focus change out of band).
func (t *FocusTracker) Invalidate() {
	t.mu.Lock()
	t.valid = false
	t.mu.Unlock()
}
