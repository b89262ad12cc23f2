package yangbind

import (
	"runtime"
	"sync"
	"weak"

	"github.com/lukeod/yangbind/internal/ly"
)

type handleKind uint8

const (
	handleModule handleKind = iota
	handleSchema
	handleData
)

// cacheKey identifies a native structure. Data node slots are reused after
// a free, so their key includes the allocation serial; modules and schema
// nodes live as long as the context.
type cacheKey struct {
	kind   handleKind
	ptr    ly.Ptr
	serial uint64
}

// identityCache maps native handles to the live wrapper for them. It holds
// weak pointers only: an entry goes away when its wrapper is collected.
type identityCache struct {
	mu      sync.Mutex
	m       map[cacheKey]any // weak.Pointer[T]
	metrics *Metrics
}

func newIdentityCache(m *Metrics) *identityCache {
	return &identityCache{m: make(map[cacheKey]any), metrics: m}
}

// lookup returns the cached wrapper for k, or builds one with mk and
// registers it. mk runs under the cache lock and must not call back into
// the cache.
func lookup[T any](c *identityCache, k cacheKey, mk func() *T) *T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wp, ok := c.m[k].(weak.Pointer[T]); ok {
		if v := wp.Value(); v != nil {
			c.metrics.cacheHit(true)
			return v
		}
	}
	c.metrics.cacheHit(false)
	v := mk()
	wp := weak.Make(v)
	c.m[k] = wp
	c.metrics.wrappers(1)
	runtime.AddCleanup(v, func(k cacheKey) {
		c.mu.Lock()
		if cur, ok := c.m[k].(weak.Pointer[T]); ok && cur == wp {
			delete(c.m, k)
		}
		c.mu.Unlock()
		c.metrics.wrappers(-1)
	}, k)
	return v
}

// evict drops the entry for k so that the next lookup builds a new wrapper.
func (c *identityCache) evict(k cacheKey) {
	c.mu.Lock()
	delete(c.m, k)
	c.mu.Unlock()
}

// reset drops every entry.
func (c *identityCache) reset() {
	c.mu.Lock()
	clear(c.m)
	c.mu.Unlock()
}

func (c *identityCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
