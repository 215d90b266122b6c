package embcache

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bazaarline/discovery/internal/domain"
)

// CachedEmbedder is a read-through cache decorating an inner embedder.
// Entries expire after a TTL and the oldest-inserted entry is evicted once
// the cache grows past capacity. Process-lifetime state; no teardown needed.
type CachedEmbedder struct {
	inner      domain.Embedder
	model      string
	ttl        time.Duration
	capacity   int
	now        func() time.Time
	cacheTotal *prometheus.CounterVec

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // insertion order, front = oldest
}

type entry struct {
	key      string
	vec      []float32
	inserted time.Time
}

// New creates a caching decorator. model namespaces cache keys so a model
// switch never serves stale vectors. cacheTotal is a counter vec with label
// "result" ("hit"/"miss"), passed explicitly. now is injected for tests.
func New(
	inner domain.Embedder,
	model string,
	ttl time.Duration,
	capacity int,
	cacheTotal *prometheus.CounterVec,
	now func() time.Time,
) *CachedEmbedder {
	if now == nil {
		now = time.Now
	}
	return &CachedEmbedder{
		inner:      inner,
		model:      model,
		ttl:        ttl,
		capacity:   capacity,
		now:        now,
		cacheTotal: cacheTotal,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.get(key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.put(key, result.Embedding)
	return result, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	return c.model + ":" + strings.ToLower(strings.TrimSpace(text))
}

func (c *CachedEmbedder) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.inserted) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	return e.vec, true
}

func (c *CachedEmbedder) put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}

	c.entries[key] = c.order.PushBack(&entry{key: key, vec: vec, inserted: c.now()})

	for c.capacity > 0 && c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

// Len reports the current number of cached entries.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
