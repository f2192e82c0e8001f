// Package cache holds the controller's date-keyed article cache.
package cache

import (
	"sync"

	"github.com/rustcc-bot/qbot-gateway/internal/model"
)

// DefaultCapacity is the size threshold from spec: when the cache already
// holds more than this many articles at the moment of an insertion, it is
// cleared before the new article is inserted (I2). The cache can therefore
// reach capacity+1 entries before the next insertion clears it.
const DefaultCapacity = 20

// Cache is a date-keyed map of fetched articles with capacity-triggered
// eviction. It is guarded by a plain (non-async) mutex, held only for the
// duration of a map operation — never across network I/O.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[model.Date]model.Article
}

// New creates an empty cache with the given capacity threshold.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[model.Date]model.Article),
	}
}

// Insert stores article keyed by its Date. It returns the previous article
// for that date (if any, satisfying I3) and whether a capacity-triggered
// clear (GC) happened first (I1, I2).
func (c *Cache) Insert(article model.Article) (previous model.Article, hadPrevious bool, gc bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > c.capacity {
		c.entries = make(map[model.Date]model.Article)
		gc = true
	}

	previous, hadPrevious = c.entries[article.Date]
	c.entries[article.Date] = article
	return previous, hadPrevious, gc
}

// Get returns the article for date, if present.
func (c *Cache) Get(date model.Date) (model.Article, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	article, ok := c.entries[date]
	return article, ok
}

// Delete removes date and only date from the cache (I4).
func (c *Cache) Delete(date model.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, date)
}

// Len returns the number of cached articles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
