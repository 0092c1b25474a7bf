package service

import "sync"

// missTracker counts in-flight cache misses per key. Lookups are deliberately
// not coalesced; the count only feeds the stampede metric.
type missTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newMissTracker() *missTracker {
	return &missTracker{active: make(map[string]int)}
}

// Begin records a miss for key and returns the number of misses now in flight for it.
// Callers must defer End(key).
func (t *missTracker) Begin(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[key]++
	return t.active[key]
}

// End records that a miss for key has resolved.
func (t *missTracker) End(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[key] <= 1 {
		delete(t.active, key)
		return
	}
	t.active[key]--
}
