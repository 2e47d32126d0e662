package cache

import (
	"context"
	"sync"
	"time"
)

// Memory реализует domain.Cache в памяти процесса. Подходит для одного
// экземпляра бота и для тестов.
type Memory struct {
	mu   sync.Mutex
	now  func() time.Time
	keys map[string]time.Time
}

// NewMemory создаёт пустой кэш.
func NewMemory() *Memory {
	return &Memory{now: time.Now, keys: make(map[string]time.Time)}
}

func (m *Memory) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	now := m.now()
	if exp, ok := m.keys[key]; ok && now.Before(exp) {
		m.mu.Unlock()
		return nil
	}
	m.keys[key] = now.Add(ttl)
	m.mu.Unlock()

	if err := fn(); err != nil {
		m.mu.Lock()
		delete(m.keys, key)
		m.mu.Unlock()
		return err
	}
	return nil
}
