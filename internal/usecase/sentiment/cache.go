package sentiment

import (
	"sync"

	"kopuro/internal/domain"
)

// Cache хранит результаты классификации по тексту комментария.
// При переполнении вытесняется самая старая запись.
type Cache struct {
	mu    sync.Mutex
	limit int
	items map[string]domain.Sentiment
	order []string
}

// NewCache создаёт кэш на limit записей.
func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = 10000
	}
	return &Cache{limit: limit, items: make(map[string]domain.Sentiment, limit)}
}

// Get возвращает сохранённую метку.
func (c *Cache) Get(key string) (domain.Sentiment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[key]
	return s, ok
}

// Put сохраняет метку.
func (c *Cache) Put(key string, s domain.Sentiment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; ok {
		c.items[key] = s
		return
	}
	if len(c.order) >= c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.items[key] = s
	c.order = append(c.order, key)
}

// Len возвращает число записей.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
