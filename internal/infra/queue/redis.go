package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

// RedisNoticeQueue реализует очередь уведомлений на базе Redis lists.
// Полученное сообщение перекладывается в список processing и снимается
// оттуда только после подтверждения.
type RedisNoticeQueue struct {
	client     *redis.Client
	key        string
	processing string
	wait       time.Duration
}

// NewRedisNoticeQueue создаёт очередь по указанному ключу.
func NewRedisNoticeQueue(client *redis.Client, key string) *RedisNoticeQueue {
	return &RedisNoticeQueue{client: client, key: key, processing: key + ":processing", wait: time.Second}
}

// Enqueue публикует уведомление в очередь.
func (q *RedisNoticeQueue) Enqueue(ctx context.Context, notice domain.ResolutionNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push notice: %w", err)
	}
	return nil
}

// Requeue возвращает в очередь уведомления, зависшие в processing после
// аварийной остановки потребителя. Вызывается потребителем до первого
// Receive: при нескольких потребителях на одном ключе он вернул бы и чужие
// сообщения в обработке. Старые уведомления попадают в голову очереди.
func (q *RedisNoticeQueue) Requeue(ctx context.Context) (int, error) {
	moved := 0
	for {
		start := time.Now()
		err := q.client.LMove(ctx, q.processing, q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			metrics.ObserveNetworkRequest("redis", "requeue_notices", q.key, start, nil)
			return moved, nil
		}
		metrics.ObserveNetworkRequest("redis", "requeue_notices", q.key, start, err)
		if err != nil {
			return moved, fmt.Errorf("requeue notices: %w", err)
		}
		moved++
	}
}

// Receive блокирующе читает уведомление из очереди.
func (q *RedisNoticeQueue) Receive(ctx context.Context) (domain.ResolutionNotice, domain.NoticeAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ResolutionNotice{}, nil, err
		}

		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", q.wait).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ResolutionNotice{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ResolutionNotice{}, nil, err
		}

		var notice domain.ResolutionNotice
		if err := json.Unmarshal([]byte(raw), &notice); err != nil {
			_ = q.client.LRem(ctx, q.processing, 1, raw).Err()
			return domain.ResolutionNotice{}, nil, fmt.Errorf("decode notice: %w", err)
		}
		return notice, q.ackFunc(raw), nil
	}
}

func (q *RedisNoticeQueue) ackFunc(raw string) domain.NoticeAckFunc {
	return func(success bool) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, q.processing, 1, raw)
		if !success {
			pipe.RPush(ctx, q.key, raw)
		}
		_, err := pipe.Exec(ctx)
		return err
	}
}
