// Package learncache implements the backend-local learn-cache (§4.E): a
// staging area for samples collected from a statement that hit its
// timeout, kept out of the shared store until (if ever) a later clean
// completion of the same (fs,fss) supersedes it.
package learncache

import (
	"sync"

	"github.com/google/uuid"
)

// Key identifies one (fs,fss) sub-space.
type Key struct {
	FS  uint64
	FSS uint32
}

// Sample mirrors the shape of a store.DataValue closely enough for the
// cache's purposes: one partial-execution learning observation.
type Sample struct {
	Cols     int
	Features []float64
	Target   float64
	RFactor  float64
	Reloids  []uint64

	// Session tags the staged sample for diagnostics. When a caller leaves
	// it unset, Stage assigns a fresh random id on every call, so the tag
	// tells one staging call from another; it does not identify a backend.
	Session uuid.UUID
}

// Cache is the process-local staging table. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]Sample
}

// New creates an empty learn-cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]Sample)}
}

// Stage records (or overwrites) a timed-out sample for key. Called only
// from the timeout path, with rfactor < 1 (§4.E).
func (c *Cache) Stage(key Key, sample Sample) {
	if sample.Session == uuid.Nil {
		sample.Session = uuid.New()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = sample
}

// take returns and removes the staged sample for key, if any. Unexported:
// a clean completion for the same (fs,fss) simply evicts the stale
// sample (§4.E) rather than incorporating it, so nothing outside this
// package's own tests needs the returned value.
func (c *Cache) take(key Key) (Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return s, ok
}

// Evict removes key without returning its value, used when a clean
// completion for the same (fs,fss) makes the staged partial sample moot
// (§4.E "On a subsequent clean completion ... the cache entry is
// removed").
func (c *Cache) Evict(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear empties the cache, called whenever learn_on_timeout flips off.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]Sample)
}

// Len reports the number of staged samples, for diagnostics and tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
