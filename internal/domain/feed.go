package domain

import (
	"errors"
	"time"
)

// ErrCommentsDisabled возвращается площадкой, когда у видео закрыты комментарии.
var ErrCommentsDisabled = errors.New("comments disabled")

// Video описывает ролик канала.
type Video struct {
	ID           string
	Title        string
	ChannelID    string
	ChannelTitle string
}

// FeedComment комментарий верхнего уровня в том виде, в каком его отдаёт площадка.
type FeedComment struct {
	PlatformID  string
	Author      string
	Text        string
	PublishedAt *time.Time
}
