package conversation

import (
	"sync"
	"time"
)

// DefaultCacheTTL is the freshness window for cached context strings and
// workflow specs.
const DefaultCacheTTL = 300 * time.Second

type contextEntry struct {
	text       string
	turnCount  int
	storedAt   time.Time
	lastAccess time.Time
}

type specEntry struct {
	payload    string
	storedAt   time.Time
	lastAccess time.Time
}

// CacheStats exposes hit/miss counters for health reporting.
type CacheStats struct {
	Entries     int     `json:"entries"`
	SpecEntries int     `json:"spec_entries"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	SpecHits    uint64  `json:"spec_hits"`
	SpecMisses  uint64  `json:"spec_misses"`
	HitRate     float64 `json:"hit_rate"`
}

// ContextCache avoids rebuilding the context string on every request and
// re-fetching workflow specs. A context entry is valid only while its
// recorded turn count matches the conversation's current length and its
// age is under the TTL; anything else is a miss. Workflow specs follow
// the same TTL rule keyed by spec id. Safe for concurrent use.
type ContextCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*contextEntry
	specs   map[string]*specEntry

	hits, misses         uint64
	specHits, specMisses uint64

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewContextCache creates a cache with the given TTL. A TTL of <= 0
// defaults to DefaultCacheTTL.
func NewContextCache(ttl time.Duration) *ContextCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ContextCache{
		ttl:     ttl,
		entries: make(map[string]*contextEntry),
		specs:   make(map[string]*specEntry),
		now:     time.Now,
	}
}

// Get returns the cached context string for a conversation. It is a hit
// only when the entry's turn count equals turnCount and the entry is
// younger than the TTL.
func (c *ContextCache) Get(conversationID string, turnCount int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[conversationID]
	if !ok || e.turnCount != turnCount || c.now().Sub(e.storedAt) >= c.ttl {
		c.misses++
		return "", false
	}
	e.lastAccess = c.now()
	c.hits++
	return e.text, true
}

// Put stores a freshly rendered context string for a conversation.
func (c *ContextCache) Put(conversationID, text string, turnCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[conversationID] = &contextEntry{
		text:       text,
		turnCount:  turnCount,
		storedAt:   now,
		lastAccess: now,
	}
}

// Invalidate drops the cached context for a conversation. Invalidating
// an absent entry is a no-op.
func (c *ContextCache) Invalidate(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, conversationID)
}

// GetSpec returns a cached workflow spec payload if younger than the TTL.
func (c *ContextCache) GetSpec(specID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.specs[specID]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		c.specMisses++
		return "", false
	}
	e.lastAccess = c.now()
	c.specHits++
	return e.payload, true
}

// PutSpec stores a fetched workflow spec payload.
func (c *ContextCache) PutSpec(specID, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.specs[specID] = &specEntry{payload: payload, storedAt: now, lastAccess: now}
}

// Sweep evicts entries untouched for longer than maxIdle and returns how
// many were removed. A maxIdle of <= 0 defaults to three TTLs. Intended
// to be driven by a periodic job; TTL expiry alone already guarantees
// correctness, sweeping only bounds memory.
func (c *ContextCache) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		maxIdle = 3 * c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for id, e := range c.entries {
		if now.Sub(e.lastAccess) > maxIdle {
			delete(c.entries, id)
			evicted++
		}
	}
	for id, e := range c.specs {
		if now.Sub(e.lastAccess) > maxIdle {
			delete(c.specs, id)
			evicted++
		}
	}
	return evicted
}

// Stats returns current counters. HitRate covers context entries only.
func (c *ContextCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := CacheStats{
		Entries:     len(c.entries),
		SpecEntries: len(c.specs),
		Hits:        c.hits,
		Misses:      c.misses,
		SpecHits:    c.specHits,
		SpecMisses:  c.specMisses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
