package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kopuro/internal/infra/metrics"
)

// Connect создаёт клиента Redis и проверяет соединение. Пустой addr
// означает, что Redis не используется.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	err := client.Ping(ctx).Err()
	metrics.ObserveNetworkRequest("redis", "ping", addr, start, err)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
