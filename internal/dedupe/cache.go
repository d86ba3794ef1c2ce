// ABOUTME: Thread-safe TTL cache of headline fingerprints used by the harvester.
// ABOUTME: A best-effort network-call saver; durable dedup lives in the post store.

package dedupe

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/cin-network/cin-gateway/internal/store"
)

// Fingerprint derives the dedup key for a headline: the hex SHA-256 of its
// normalized (lowercased, trimmed) form.
func Fingerprint(headline string) string {
	sum := sha256.Sum256([]byte(store.NormalizeHeadline(headline)))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	markedAt time.Time
	element  *list.Element
}

// Cache is a bounded, TTL-limited set of fingerprints the harvester has
// already submitted this process lifetime. It exists only to avoid
// redundant webhook calls: losing it on restart is harmless because the
// store's headline index is the correctness mechanism.
//
// Expired entries are pruned lazily on access rather than by a background
// goroutine; the caller touches the cache once per harvested item, which is
// frequent enough.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // fingerprints in mark order, oldest at front
	ttl     time.Duration
	maxSize int
}

// New creates a cache holding at most maxSize fingerprints, each for at
// most ttl.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Seen reports whether the fingerprint was marked within the TTL.
func (c *Cache) Seen(fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[fp]
	if !ok {
		return false
	}
	if time.Since(e.markedAt) >= c.ttl {
		c.removeLocked(fp, e)
		return false
	}
	return true
}

// Mark records a fingerprint, refreshing it if already present. The oldest
// entry is evicted when the cache is at capacity.
func (c *Cache) Mark(fp string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[fp]; ok {
		e.markedAt = time.Now()
		c.order.MoveToBack(e.element)
		return
	}

	c.pruneExpiredLocked()
	for len(c.seen) >= c.maxSize {
		front := c.order.Front()
		if front == nil {
			break
		}
		c.removeLocked(front.Value.(string), c.seen[front.Value.(string)])
	}

	c.seen[fp] = &entry{
		markedAt: time.Now(),
		element:  c.order.PushBack(fp),
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) pruneExpiredLocked() {
	now := time.Now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		fp := front.Value.(string)
		e := c.seen[fp]
		if now.Sub(e.markedAt) < c.ttl {
			// Refreshed entries move to the back, so the front is always
			// the oldest and we can stop at the first live one.
			return
		}
		c.removeLocked(fp, e)
	}
}

func (c *Cache) removeLocked(fp string, e *entry) {
	c.order.Remove(e.element)
	delete(c.seen, fp)
}
