package identity

import (
	"log/slog"
	"strings"
	"sync"
)

// Target is what a short ID resolves to.
type Target struct {
	FullID string
	Repo   string
	PR     int
}

// Cache is the in-process map from short IDs to full GitHub node IDs.
// It is derived state, rebuilt from store entries whenever a lookup misses,
// and never persisted. On a hash collision the first registration wins; later
// ones are recorded and surfaced via Collisions.
type Cache struct {
	mu         sync.RWMutex
	byShort    map[string]Target
	collisions map[string][]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	c := &Cache{}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.byShort = make(map[string]Target)
	c.collisions = make(map[string][]string)
}

// Register hashes fullID within repo and records the mapping. It returns the
// short ID regardless of whether the registration won or collided.
func (c *Cache) Register(fullID, repo string, pr int) string {
	short := GenerateShortID(fullID, repo)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byShort[short]; ok {
		if existing.FullID != fullID {
			c.collisions[short] = append(c.collisions[short], fullID)
			slog.Debug("short id collision, first registration wins",
				"short_id", short,
				"winner", existing.FullID,
				"loser", fullID,
			)
		}
	} else {
		c.byShort[short] = Target{FullID: fullID, Repo: repo, PR: pr}
	}

	return short
}

// Resolve normalizes input and looks it up. A four-char input resolves when
// it is the unique prefix of exactly one registered short ID.
func (c *Cache) Resolve(input string) (Target, bool) {
	short := Normalize(input)
	if short == "" {
		return Target{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.byShort[short]; ok {
		return t, true
	}

	if len(short) < ShortIDLength {
		var match Target
		var found int
		for k, t := range c.byShort {
			if strings.HasPrefix(k, short) {
				match = t
				found++
			}
		}
		if found == 1 {
			return match, true
		}
	}

	return Target{}, false
}

// Collisions returns, per short ID, the full IDs that lost a registration
// race. Empty in the overwhelmingly common case.
func (c *Cache) Collisions() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.collisions))
	for k, v := range c.collisions {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Len reports the number of resolvable short IDs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byShort)
}

// Clear drops all registrations.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}
