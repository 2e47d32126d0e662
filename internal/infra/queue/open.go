package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"kopuro/internal/domain"
)

// Open выбирает реализацию очереди уведомлений по имени backend.
// Для "none" возвращается nil: уведомления о решении отключены.
// Возвращаемая функция закрывает ресурсы, принадлежащие очереди.
func Open(backend string, rdb *redis.Client, amqpURL, key string) (domain.NoticeQueue, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "redis":
		if rdb == nil {
			return nil, noop, fmt.Errorf("redis queue: REDIS_ADDR не задан")
		}
		return NewRedisNoticeQueue(rdb, key), noop, nil
	case "rabbitmq", "amqp":
		q, err := NewRabbitNoticeQueue(amqpURL, key)
		if err != nil {
			return nil, noop, err
		}
		return q, q.Close, nil
	case "none":
		return nil, noop, nil
	case "memory":
		return NewMemoryNoticeQueue(0), noop, nil
	default:
		return nil, noop, fmt.Errorf("неизвестный backend очереди: %s", backend)
	}
}

// RequeueStale возвращает в очередь сообщения, брошенные упавшим
// потребителем, если backend это умеет. Для остальных возвращает 0.
func RequeueStale(ctx context.Context, q domain.NoticeQueue) (int, error) {
	r, ok := q.(interface {
		Requeue(ctx context.Context) (int, error)
	})
	if !ok {
		return 0, nil
	}
	return r.Requeue(ctx)
}
