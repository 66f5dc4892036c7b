package augment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"coolcar/internal/domain"
	"coolcar/internal/text"
)

// Cache remembers search results by normalized query. When it grows past
// its cap the oldest batch of keys is evicted at once.
type Cache struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]cacheEntry

	store      domain.BlobStore
	maxEntries int
	evictBatch int
	now        func() time.Time
	logger     *slog.Logger
}

type cacheEntry struct {
	Key      string                `json:"key"`
	Results  []domain.SearchResult `json:"results"`
	StoredAt time.Time             `json:"storedAt"`
}

type CacheConfig struct {
	Store      domain.BlobStore
	MaxEntries int
	EvictBatch int
	Logger     *slog.Logger
}

func NewCache(ctx context.Context, cfg CacheConfig) *Cache {
	c := &Cache{
		entries:    make(map[string]cacheEntry),
		store:      cfg.Store,
		maxEntries: cfg.MaxEntries,
		evictBatch: cfg.EvictBatch,
		now:        time.Now,
		logger:     cfg.Logger,
	}
	if c.maxEntries <= 0 {
		c.maxEntries = 1000
	}
	if c.evictBatch <= 0 {
		c.evictBatch = 100
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.load(ctx)
	return c
}

func (c *Cache) load(ctx context.Context) {
	if c.store == nil {
		return
	}
	data, err := c.store.Get(ctx, domain.NamespaceWebCache)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Warn("web cache unavailable, starting empty", "err", err)
		return
	}
	var list []cacheEntry
	if err := json.Unmarshal(data, &list); err != nil {
		c.logger.Warn("web cache corrupt, starting empty", "err", err)
		return
	}
	for _, e := range list {
		if _, dup := c.entries[e.Key]; dup {
			continue
		}
		c.order = append(c.order, e.Key)
		c.entries[e.Key] = e
	}
}

func (c *Cache) persistLocked(ctx context.Context) {
	if c.store == nil {
		return
	}
	list := make([]cacheEntry, 0, len(c.order))
	for _, k := range c.order {
		list = append(list, c.entries[k])
	}
	data, err := json.Marshal(list)
	if err != nil {
		c.logger.Warn("cannot encode web cache", "err", err)
		return
	}
	if err := c.store.Put(context.WithoutCancel(ctx), domain.NamespaceWebCache, data); err != nil {
		c.logger.Warn("web cache not persisted", "err", err)
	}
}

// Key normalizes a query into its cache key.
func Key(query string) string { return text.Normalize(query) }

func (c *Cache) Get(query string) ([]domain.SearchResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[Key(query)]
	if !ok {
		return nil, false
	}
	return append([]domain.SearchResult(nil), e.Results...), true
}

// Put stores non-empty results. Re-storing a key keeps its age.
func (c *Cache) Put(ctx context.Context, query string, results []domain.SearchResult) {
	if len(results) == 0 {
		return
	}
	key := Key(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{Key: key, Results: append([]domain.SearchResult(nil), results...), StoredAt: c.now()}

	if len(c.order) > c.maxEntries {
		n := min(c.evictBatch, len(c.order))
		for _, k := range c.order[:n] {
			delete(c.entries, k)
		}
		c.order = append([]string(nil), c.order[n:]...)
	}
	c.persistLocked(ctx)
}

// Cleanup drops results with no content and entries left with none. It
// returns the number of entries removed.
func (c *Cache) Cleanup(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	kept := c.order[:0:0]
	for _, k := range c.order {
		e := c.entries[k]
		var results []domain.SearchResult
		for _, r := range e.Results {
			if r.Content != "" {
				results = append(results, r)
			}
		}
		if len(results) == 0 {
			delete(c.entries, k)
			removed++
			continue
		}
		e.Results = results
		c.entries[k] = e
		kept = append(kept, k)
	}
	c.order = kept
	c.persistLocked(ctx)
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
