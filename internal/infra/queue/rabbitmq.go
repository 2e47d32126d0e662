package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

// RabbitNoticeQueue реализует очередь уведомлений поверх AMQP.
type RabbitNoticeQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitNoticeQueue подключается к брокеру и объявляет durable очередь.
func NewRabbitNoticeQueue(amqpURL, queue string) (*RabbitNoticeQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitNoticeQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует уведомление в очередь.
func (q *RabbitNoticeQueue) Enqueue(ctx context.Context, notice domain.ResolutionNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    notice.ID,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}

// Receive блокирующе читает уведомление из очереди.
func (q *RabbitNoticeQueue) Receive(ctx context.Context) (domain.ResolutionNotice, domain.NoticeAckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.ResolutionNotice{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.ResolutionNotice{}, nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return domain.ResolutionNotice{}, nil, errors.New("amqp: delivery channel closed")
		}
		var notice domain.ResolutionNotice
		if err := json.Unmarshal(d.Body, &notice); err != nil {
			_ = d.Reject(false)
			return domain.ResolutionNotice{}, nil, fmt.Errorf("decode notice: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return d.Ack(false)
			}
			return d.Nack(false, true)
		}
		return notice, ack, nil
	}
}

func (q *RabbitNoticeQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение.
func (q *RabbitNoticeQueue) Close() error {
	_ = q.ch.Close()
	return q.conn.Close()
}
