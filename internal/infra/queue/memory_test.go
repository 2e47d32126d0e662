package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"kopuro/internal/domain"
)

func TestMemoryNoticeQueueRequeuesOnFailure(t *testing.T) {
	q := NewMemoryNoticeQueue(2)
	ctx := context.Background()
	if err := q.Enqueue(ctx, domain.ResolutionNotice{ID: "n1", SubmissionID: 7}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	n, ack, err := q.Receive(ctx)
	if err != nil || n.ID != "n1" {
		t.Fatalf("Receive: %v %+v", err, n)
	}
	_ = ack(false)
	n, ack, err = q.Receive(ctx)
	if err != nil || n.SubmissionID != 7 {
		t.Fatalf("уведомление должно вернуться в очередь: %v %+v", err, n)
	}
	_ = ack(true)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, _, err := q.Receive(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("очередь должна быть пустой, получили %v", err)
	}
}

func TestOpenBackends(t *testing.T) {
	q, closeFn, err := Open("memory", nil, "", "notices")
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := q.(*MemoryNoticeQueue); !ok {
		t.Fatalf("ожидали MemoryNoticeQueue, получили %T", q)
	}
	_ = closeFn()

	if _, _, err := Open("redis", nil, "", "notices"); err == nil {
		t.Fatal("redis без клиента должен возвращать ошибку")
	}
	if _, _, err := Open("kafka", nil, "", "notices"); err == nil {
		t.Fatal("неизвестный backend должен возвращать ошибку")
	}
}

func TestOpenNoneDisablesNotices(t *testing.T) {
	q, _, err := Open("none", nil, "", "notices")
	if err != nil || q != nil {
		t.Fatalf("none должен возвращать nil очередь без ошибки: %v %v", q, err)
	}
}
