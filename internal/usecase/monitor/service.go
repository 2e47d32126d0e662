package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

// Feed читает ролики и комментарии площадки.
type Feed interface {
	UploadsPlaylist(ctx context.Context, channelID string) (string, error)
	RecentVideoIDs(ctx context.Context, playlistID string, limit int) ([]string, error)
	Videos(ctx context.Context, ids []string) ([]domain.Video, error)
	TopLevelComments(ctx context.Context, videoID string, max int) ([]domain.FeedComment, error)
}

// Classifier присваивает комментарию метку тональности.
type Classifier interface {
	Reconcile(ctx context.Context, text string) domain.Sentiment
}

// Config параметры прохода.
type Config struct {
	ChannelIDs          []string
	VideosPerChannel    int
	MaxCommentsPerVideo int
	Interval            time.Duration
}

// RunStats итоги одного прохода.
type RunStats struct {
	Channels int
	Videos   int
	Fetched  int
	Skipped  int
	Saved    int
}

// Service периодически собирает комментарии и их тональность.
type Service struct {
	feed       Feed
	classifier Classifier
	comments   domain.CommentRepo
	cfg        Config
	log        zerolog.Logger
	running    atomic.Bool
	wg         sync.WaitGroup
}

// NewService создаёт монитор.
func NewService(feed Feed, classifier Classifier, comments domain.CommentRepo, cfg Config, logger zerolog.Logger) *Service {
	if cfg.VideosPerChannel <= 0 {
		cfg.VideosPerChannel = 10
	}
	if cfg.MaxCommentsPerVideo <= 0 {
		cfg.MaxCommentsPerVideo = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Service{
		feed:       feed,
		classifier: classifier,
		comments:   comments,
		cfg:        cfg,
		log:        logger.With().Str("component", "monitor").Logger(),
	}
}

// Run выполняет проход сразу и затем по интервалу, пока жив ctx.
// Тик, пришедший во время незавершённого прохода, пропускается.
func (s *Service) Run(ctx context.Context) error {
	defer s.wg.Wait()
	s.tryStart(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tryStart(ctx)
		}
	}
}

func (s *Service) tryStart(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		metrics.MonitorSkippedRuns.Inc()
		s.log.Warn().Msg("monitor: предыдущий проход ещё не завершён, тик пропущен")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("monitor: проход прерван")
		}
	}()
	return true
}

// RunOnce выполняет один проход по всем каналам.
func (s *Service) RunOnce(ctx context.Context) (RunStats, error) {
	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()
	start := time.Now()
	defer func() { metrics.MonitorRunSeconds.Observe(time.Since(start).Seconds()) }()

	var stats RunStats
	if len(s.cfg.ChannelIDs) == 0 {
		log.Warn().Msg("monitor: каналы не заданы")
		return stats, nil
	}
	log.Info().Int("channels", len(s.cfg.ChannelIDs)).Msg("monitor: проход начат")

	for _, channelID := range s.cfg.ChannelIDs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Channels++
		if err := s.processChannel(ctx, log, channelID, &stats); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.Warn().Err(err).Str("channel_id", channelID).Msg("monitor: канал пропущен")
		}
	}

	log.Info().
		Int("videos", stats.Videos).
		Int("fetched", stats.Fetched).
		Int("skipped", stats.Skipped).
		Int("saved", stats.Saved).
		Dur("duration", time.Since(start)).
		Msg("monitor: проход завершён")
	return stats, nil
}

func (s *Service) processChannel(ctx context.Context, log zerolog.Logger, channelID string, stats *RunStats) error {
	playlistID, err := s.feed.UploadsPlaylist(ctx, channelID)
	if err != nil {
		return err
	}
	ids, err := s.feed.RecentVideoIDs(ctx, playlistID, s.cfg.VideosPerChannel)
	if err != nil {
		return err
	}
	videos, err := s.feed.Videos(ctx, ids)
	if err != nil {
		return err
	}
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Videos++
		if err := s.processVideo(ctx, log, video, stats); err != nil {
			if errors.Is(err, domain.ErrCommentsDisabled) {
				log.Info().Str("video_id", video.ID).Msg("monitor: комментарии отключены")
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("video_id", video.ID).Msg("monitor: ролик пропущен")
		}
	}
	return nil
}

func (s *Service) processVideo(ctx context.Context, log zerolog.Logger, video domain.Video, stats *RunStats) error {
	fetched, err := s.feed.TopLevelComments(ctx, video.ID, s.cfg.MaxCommentsPerVideo)
	if err != nil {
		return err
	}
	stats.Fetched += len(fetched)

	batch := make([]domain.Comment, 0, len(fetched))
	for _, fc := range fetched {
		exists, err := s.comments.CommentExists(ctx, fc.PlatformID)
		if err != nil {
			return err
		}
		if exists {
			stats.Skipped++
			continue
		}
		label := s.classifier.Reconcile(ctx, fc.Text)
		batch = append(batch, domain.Comment{
			PlatformCommentID: fc.PlatformID,
			AuthorName:        fc.Author,
			Text:              fc.Text,
			VideoID:           video.ID,
			ChannelID:         video.ChannelID,
			ChannelTitle:      video.ChannelTitle,
			PublishedAt:       fc.PublishedAt,
			Sentiment:         label,
		})
	}
	if len(batch) == 0 {
		return nil
	}
	saved, err := s.comments.SaveComments(ctx, batch)
	if err != nil {
		return err
	}
	stats.Saved += saved
	for _, c := range batch {
		metrics.IncCommentSentiment(c.Sentiment.String())
	}
	log.Debug().Str("video_id", video.ID).Str("title", video.Title).Int("saved", saved).Msg("monitor: комментарии сохранены")
	return nil
}
