package reconcile

import (
	"sync"
	"time"

	"github.com/Veraticus/chat-ledger/internal/model"
)

// cacheEntry is a committed message and when it stops suppressing replays.
type cacheEntry struct {
	expiry time.Time
	ref    model.LedgerRef
}

// commitCache maps message IDs to the ledger rows they produced.
type commitCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
}

func newCommitCache(ttl time.Duration, now func() time.Time) *commitCache {
	return &commitCache{
		entries: make(map[string]cacheEntry),
		now:     now,
		ttl:     ttl,
	}
}

// get returns the ref for messageID if it was committed within the retention window.
func (c *commitCache) get(messageID string) (model.LedgerRef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[messageID]
	if !ok || c.now().After(entry.expiry) {
		return model.LedgerRef{}, false
	}
	return entry.ref, true
}

// set records a commit made now.
func (c *commitCache) set(messageID string, ref model.LedgerRef) {
	c.setAt(messageID, ref, c.now())
}

// setAt records a commit made at committedAt. Entries already past
// retention are ignored.
func (c *commitCache) setAt(messageID string, ref model.LedgerRef, committedAt time.Time) bool {
	expiry := committedAt.Add(c.ttl)
	if c.now().After(expiry) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[messageID] = cacheEntry{ref: ref, expiry: expiry}
	return true
}

// evict drops expired entries and reports how many were removed.
func (c *commitCache) evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *commitCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
