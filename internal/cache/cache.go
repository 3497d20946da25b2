// Package cache implements the routing-decision cache SPEC_FULL.md §11
// calls out (CACHE_TTL/CACHE_MAX_SIZE), grounded directly on
// pkg/routing/cache.go's SimpleCache: a sha256-keyed map guarded by one
// RWMutex, TTL expiry checked lazily on Get and swept periodically by a
// background goroutine, with capacity enforced by evicting expired entries
// first and falling back to oldest-expiry eviction.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/argofloat/gateway/internal/domain"
)

// Stats mirrors SimpleCache's CacheStats, scoped to hit, miss and eviction
// counts plus the current entry count.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	decision  domain.CoordinatorResponse
	routed    bool
	expiresAt time.Time
}

// RouteDecisionCache caches the Router's LLM-gate verdict for a query, keyed
// on the query text plus the recent history it was classified against, so
// a repeated question in the same conversational context skips the gate
// call entirely.
type RouteDecisionCache struct {
	mu      sync.RWMutex
	items   map[string]*entry
	maxSize int
	ttl     time.Duration

	stats Stats

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New builds a RouteDecisionCache with the given TTL, capacity, and
// background-sweep interval, and starts the sweep goroutine. Call Close to
// stop it.
func New(ttl time.Duration, maxSize int, cleanupInterval time.Duration) *RouteDecisionCache {
	c := &RouteDecisionCache{
		items:       make(map[string]*entry),
		maxSize:     maxSize,
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go c.cleanupLoop(cleanupInterval)
	return c
}

func (c *RouteDecisionCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

// Get returns the cached response and whether the gate had routed it to the
// Orchestrator (routed=true means the caller must still invoke the
// Orchestrator; a conversational reply is cached verbatim).
func (c *RouteDecisionCache) Get(query string, history []domain.ConversationMessage) (resp domain.CoordinatorResponse, routed, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, history)
	item, found := c.items[key]
	if !found {
		c.stats.Misses++
		return domain.CoordinatorResponse{}, false, false
	}
	if time.Now().After(item.expiresAt) {
		delete(c.items, key)
		c.stats.Misses++
		return domain.CoordinatorResponse{}, false, false
	}
	c.stats.Hits++
	return item.decision, item.routed, true
}

// Set caches a gate decision for query in context history. routed=true
// records that the query was handed to the Orchestrator; only that verdict
// is meaningful, and the Router runs the Orchestrator again on such a hit
// instead of replaying resp.
func (c *RouteDecisionCache) Set(query string, history []domain.ConversationMessage, resp domain.CoordinatorResponse, routed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.maxSize {
		c.evictExpiredLocked()
		if len(c.items) >= c.maxSize {
			c.evictOldestLocked()
		}
	}

	c.items[cacheKey(query, history)] = &entry{
		decision:  resp,
		routed:    routed,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Stats returns a snapshot of cache statistics.
func (c *RouteDecisionCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.Size = len(c.items)
	return stats
}

func (c *RouteDecisionCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpiredLocked()
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *RouteDecisionCache) evictExpiredLocked() {
	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			c.stats.Evictions++
		}
	}
}

func (c *RouteDecisionCache) evictOldestLocked() {
	var oldestKey string
	var oldestExpiry time.Time
	for key, item := range c.items {
		if oldestExpiry.IsZero() || item.expiresAt.Before(oldestExpiry) {
			oldestKey, oldestExpiry = key, item.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.stats.Evictions++
	}
}

// cacheKey folds the query and the preceding conversation turns into one
// sha256 digest, so the same question in a different context is a miss.
func cacheKey(query string, history []domain.ConversationMessage) string {
	var b strings.Builder
	for _, turn := range history {
		b.WriteString(turn.Role)
		b.WriteByte(':')
		b.WriteString(turn.Content)
		b.WriteByte('\n')
	}
	b.WriteString("Q:")
	b.WriteString(query)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}
