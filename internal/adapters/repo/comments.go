package repo

import (
	"context"
	"time"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

// CommentExists проверяет, сохранён ли комментарий с таким внешним id.
func (p *Postgres) CommentExists(ctx context.Context, platformCommentID string) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM feed_comments WHERE platform_comment_id = $1)`, platformCommentID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "feed_comments_exists", "feed_comments", start, err)
	return exists, err
}

// SaveComments вставляет пачку комментариев одной транзакцией. Уже известные
// platform_comment_id пропускаются.
func (p *Postgres) SaveComments(ctx context.Context, comments []domain.Comment) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	tx, err := p.begin(ctx, "feed_comments")
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saved := 0
	for _, c := range comments {
		sentiment := c.Sentiment
		if sentiment == "" {
			sentiment = domain.SentimentUnknown
		}
		start := time.Now()
		tag, err := tx.Exec(ctx, `
INSERT INTO feed_comments (
    platform_comment_id, author_name, comment_text, opinion_text, topic,
    video_id, channel_id, channel_title, published_at, sentiment
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (platform_comment_id) DO NOTHING`,
			c.PlatformCommentID, c.AuthorName, c.Text, c.OpinionText, c.Topic,
			c.VideoID, c.ChannelID, c.ChannelTitle, c.PublishedAt, sentiment.String(),
		)
		metrics.ObserveNetworkRequest("postgres", "feed_comments_insert", "feed_comments", start, err)
		if err != nil {
			return 0, err
		}
		saved += int(tag.RowsAffected())
	}

	if err := p.commit(ctx, tx, "feed_comments"); err != nil {
		return 0, err
	}
	return saved, nil
}
