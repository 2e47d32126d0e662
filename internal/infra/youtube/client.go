package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

const maxPageSize = 100

// Client читает каналы, ролики и комментарии через YouTube Data API v3.
type Client struct {
	svc *yt.Service
}

// NewClient создаёт клиента по API-ключу. Дополнительные опции
// используются в тестах для подмены endpoint.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("youtube: api key is empty")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// UploadsPlaylist возвращает id плейлиста загрузок канала.
func (c *Client) UploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	start := time.Now()
	resp, err := c.svc.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx).Do()
	metrics.ObserveNetworkRequest("youtube", "channels.list", channelID, start, err)
	if err != nil {
		return "", fmt.Errorf("youtube: channel %s: %w", channelID, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil || resp.Items[0].ContentDetails.RelatedPlaylists == nil {
		return "", fmt.Errorf("youtube: channel %s: %w", channelID, domain.ErrNotFound)
	}
	uploads := resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return "", fmt.Errorf("youtube: channel %s has no uploads playlist: %w", channelID, domain.ErrNotFound)
	}
	return uploads, nil
}

// RecentVideoIDs возвращает до limit последних роликов плейлиста.
func (c *Client) RecentVideoIDs(ctx context.Context, playlistID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	start := time.Now()
	resp, err := c.svc.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(int64(min(limit, maxPageSize))).
		Context(ctx).
		Do()
	metrics.ObserveNetworkRequest("youtube", "playlistItems.list", playlistID, start, err)
	if err != nil {
		return nil, fmt.Errorf("youtube: playlist %s: %w", playlistID, err)
	}
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
			continue
		}
		ids = append(ids, item.ContentDetails.VideoId)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// Videos возвращает заголовки и каналы роликов.
func (c *Client) Videos(ctx context.Context, ids []string) ([]domain.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	start := time.Now()
	resp, err := c.svc.Videos.List([]string{"snippet"}).Id(ids...).Context(ctx).Do()
	metrics.ObserveNetworkRequest("youtube", "videos.list", "", start, err)
	if err != nil {
		return nil, fmt.Errorf("youtube: videos: %w", err)
	}
	videos := make([]domain.Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		v := domain.Video{ID: item.Id}
		if item.Snippet != nil {
			v.Title = item.Snippet.Title
			v.ChannelID = item.Snippet.ChannelId
			v.ChannelTitle = item.Snippet.ChannelTitle
		}
		videos = append(videos, v)
	}
	return videos, nil
}

// TopLevelComments постранично читает комментарии ролика, пока не наберёт max.
// Закрытые комментарии возвращаются как domain.ErrCommentsDisabled.
func (c *Client) TopLevelComments(ctx context.Context, videoID string, max int) ([]domain.FeedComment, error) {
	var (
		out   []domain.FeedComment
		token string
	)
	for len(out) < max {
		call := c.svc.CommentThreads.List([]string{"snippet"}).
			VideoId(videoID).
			Order("relevance").
			TextFormat("plainText").
			MaxResults(int64(min(max-len(out), maxPageSize))).
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		start := time.Now()
		resp, err := call.Do()
		metrics.ObserveNetworkRequest("youtube", "commentThreads.list", videoID, start, err)
		if err != nil {
			if commentsDisabled(err) {
				return nil, fmt.Errorf("youtube: video %s: %w", videoID, domain.ErrCommentsDisabled)
			}
			return out, fmt.Errorf("youtube: comments of %s: %w", videoID, err)
		}
		for _, thread := range resp.Items {
			if fc, ok := toFeedComment(thread); ok {
				out = append(out, fc)
				if len(out) == max {
					break
				}
			}
		}
		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		token = resp.NextPageToken
	}
	return out, nil
}

func toFeedComment(thread *yt.CommentThread) (domain.FeedComment, bool) {
	if thread == nil || thread.Snippet == nil || thread.Snippet.TopLevelComment == nil {
		return domain.FeedComment{}, false
	}
	top := thread.Snippet.TopLevelComment
	if top.Snippet == nil || top.Id == "" {
		return domain.FeedComment{}, false
	}
	fc := domain.FeedComment{
		PlatformID: top.Id,
		Author:     top.Snippet.AuthorDisplayName,
		Text:       top.Snippet.TextDisplay,
	}
	if fc.Text == "" {
		fc.Text = top.Snippet.TextOriginal
	}
	if ts, err := time.Parse(time.RFC3339, top.Snippet.PublishedAt); err == nil {
		fc.PublishedAt = &ts
	}
	return fc, true
}

func commentsDisabled(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "commentsDisabled" {
			return true
		}
	}
	return false
}
