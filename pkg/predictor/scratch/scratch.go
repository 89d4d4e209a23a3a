// Package scratch implements the per-statement selectivity scratch cache
// (§4.I): a backend-local map from (clause-hash, relation) to the
// selectivity the planner reported for it, so the learning pipeline can
// recover the same numbers post-execution without re-asking the planner.
package scratch

// Key identifies one clause's selectivity within one relation's scope.
type Key struct {
	ClauseHash uint64
	Relation   uint64
}

// Cache is a single statement's scratch table. It is not safe for
// concurrent use across statements — one is created per statement and
// discarded at its end, mirroring the instrumentation lifetime described
// in §6 "Executor callbacks consumed".
type Cache struct {
	entries map[Key]float64
}

// New creates an empty scratch cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]float64)}
}

// Put records the selectivity the planner computed for clauseHash against
// relation.
func (c *Cache) Put(clauseHash, relation uint64, selectivity float64) {
	c.entries[Key{ClauseHash: clauseHash, Relation: relation}] = selectivity
}

// Get recovers a previously recorded selectivity.
func (c *Cache) Get(clauseHash, relation uint64) (float64, bool) {
	v, ok := c.entries[Key{ClauseHash: clauseHash, Relation: relation}]
	return v, ok
}

// Reset clears the cache for reuse across statements (e.g. from a pooled
// instrumentation context), avoiding a fresh allocation on every query.
func (c *Cache) Reset() {
	for k := range c.entries {
		delete(c.entries, k)
	}
}

// Len reports the number of recorded selectivities, for diagnostics.
func (c *Cache) Len() int {
	return len(c.entries)
}
