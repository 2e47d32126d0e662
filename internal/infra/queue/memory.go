package queue

import (
	"context"

	"kopuro/internal/domain"
)

// MemoryNoticeQueue используется, когда внешний брокер не настроен:
// API и бот живут в разных процессах, поэтому такая очередь годится
// только для тестов и локального запуска в одном процессе.
type MemoryNoticeQueue struct {
	ch chan domain.ResolutionNotice
}

// NewMemoryNoticeQueue создаёт очередь с буфером size.
func NewMemoryNoticeQueue(size int) *MemoryNoticeQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryNoticeQueue{ch: make(chan domain.ResolutionNotice, size)}
}

func (q *MemoryNoticeQueue) Enqueue(ctx context.Context, notice domain.ResolutionNotice) error {
	select {
	case q.ch <- notice:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryNoticeQueue) Receive(ctx context.Context) (domain.ResolutionNotice, domain.NoticeAckFunc, error) {
	select {
	case n := <-q.ch:
		return n, func(success bool) error {
			if !success {
				select {
				case q.ch <- n:
				default:
				}
			}
			return nil
		}, nil
	case <-ctx.Done():
		return domain.ResolutionNotice{}, nil, ctx.Err()
	}
}
