package matcher

import (
	"errors"
	"sync"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

// Cache compiles each distinct pattern set once and hands out the shared
// Matcher on later requests. Safe for concurrent use.
type Cache struct {
	engine   Engine
	mu       sync.Mutex
	matchers map[string]*cacheEntry
}

type cacheEntry struct {
	once sync.Once
	m    Matcher
	err  error
}

// NewCache creates a cache backed by engine.
func NewCache(engine Engine) *Cache {
	return &Cache{engine: engine, matchers: make(map[string]*cacheEntry)}
}

// Engine returns the engine used for compilation.
func (c *Cache) Engine() Engine { return c.engine }

// Get returns the Matcher for patterns, compiling it on first use. Compile
// errors are cached too, so a bad set fails fast on every call.
func (c *Cache) Get(patterns []PatternSpec) (Matcher, error) {
	key := types.PatternSet(patterns).Fingerprint()

	c.mu.Lock()
	entry, ok := c.matchers[key]
	if !ok {
		entry = &cacheEntry{}
		c.matchers[key] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.m, entry.err = c.engine.Compile(patterns)
	})
	return entry.m, entry.err
}

// Len returns the number of cached pattern sets (including failed ones).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.matchers)
}

// Close closes every cached Matcher and empties the cache.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for key, entry := range c.matchers {
		if entry.m != nil {
			if err := entry.m.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(c.matchers, key)
	}
	return errors.Join(errs...)
}
