package earthengine

import (
	"context"
	"sync"

	"github.com/renewgrid/sitescout/internal/domain"
	"github.com/renewgrid/sitescout/internal/observability"
)

// CachedEngine wraps a RasterEngine with an in-memory LRU cache for
// composites whose spec carries a cache key. Every other operation passes
// through untouched.
type CachedEngine struct {
	inner   domain.RasterEngine
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedEngine creates a cache decorator around a raster engine.
func NewCachedEngine(inner domain.RasterEngine, maxEntries int, metrics *observability.Metrics) *CachedEngine {
	return &CachedEngine{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedEngine) ComposeLayer(ctx context.Context, spec domain.LayerSpec) (domain.LayerHandle, error) {
	if spec.CacheKey == "" {
		return c.inner.ComposeLayer(ctx, spec)
	}

	if handle, ok := c.cache.get(spec.CacheKey); ok {
		c.metrics.VegetationCache.WithLabelValues("hit").Inc()
		return handle, nil
	}
	c.metrics.VegetationCache.WithLabelValues("miss").Inc()

	handle, err := c.inner.ComposeLayer(ctx, spec)
	if err != nil {
		return handle, err
	}
	// Only cache layers that produced a handle so failures can be retried.
	if handle.ID != "" {
		c.cache.put(spec.CacheKey, handle)
	}
	return handle, nil
}

func (c *CachedEngine) CollectionSize(ctx context.Context, src domain.LayerSource) (int, error) {
	return c.inner.CollectionSize(ctx, src)
}

func (c *CachedEngine) CombineLayers(ctx context.Context, spec domain.CombineSpec) (domain.LayerHandle, error) {
	return c.inner.CombineLayers(ctx, spec)
}

func (c *CachedEngine) SampleRegion(ctx context.Context, layer domain.LayerHandle, spec domain.SampleSpec) ([]domain.SamplePoint, error) {
	return c.inner.SampleRegion(ctx, layer, spec)
}

func (c *CachedEngine) ReducePoint(ctx context.Context, layer domain.LayerHandle, lon, lat float64, scale int) (map[string]float64, error) {
	return c.inner.ReducePoint(ctx, layer, lon, lat, scale)
}

func (c *CachedEngine) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

// lruCache is a simple thread-safe LRU cache for layer handles.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.LayerHandle
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.LayerHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.LayerHandle{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.LayerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
