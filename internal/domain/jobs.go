package domain

import (
	"context"
	"time"
)

// ResolutionNotice сообщает гражданину, что его обращение решено.
type ResolutionNotice struct {
	ID                string           `json:"notice_id"`
	SubmissionID      int64            `json:"submission_id"`
	Source            SubmissionSource `json:"source"`
	SourceUserID      string           `json:"source_user_id"`
	ResolutionDetails string           `json:"resolution_details"`
	ResolvedAt        time.Time        `json:"resolved_at"`
}

// NoticeQueue описывает очередь уведомлений о решённых обращениях.
type NoticeQueue interface {
	Enqueue(ctx context.Context, notice ResolutionNotice) error
	Receive(ctx context.Context) (ResolutionNotice, NoticeAckFunc, error)
}

// NoticeAckFunc подтверждает доставку уведомления или возвращает его в очередь.
type NoticeAckFunc func(success bool) error
