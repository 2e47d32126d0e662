package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryOnceRunsOnce(t *testing.T) {
	c := NewMemory()
	calls := 0
	for i := 0; i < 3; i++ {
		if err := c.Once(context.Background(), "update:1", time.Minute, func() error {
			calls++
			return nil
		}); err != nil {
			t.Fatalf("Once: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("ожидали один вызов, получили %d", calls)
	}
}

func TestMemoryOnceReleasesKeyOnError(t *testing.T) {
	c := NewMemory()
	boom := errors.New("boom")
	if err := c.Once(context.Background(), "k", time.Minute, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("ожидали boom, получили %v", err)
	}
	called := false
	_ = c.Once(context.Background(), "k", time.Minute, func() error {
		called = true
		return nil
	})
	if !called {
		t.Fatal("после ошибки ключ должен освобождаться")
	}
}

func TestMemoryOnceExpires(t *testing.T) {
	c := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	calls := 0
	fn := func() error { calls++; return nil }
	_ = c.Once(context.Background(), "k", time.Minute, fn)
	now = now.Add(2 * time.Minute)
	_ = c.Once(context.Background(), "k", time.Minute, fn)
	if calls != 2 {
		t.Fatalf("после истечения TTL ключ должен отработать снова, calls=%d", calls)
	}
}
