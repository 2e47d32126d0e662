package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

type stubFeed struct {
	playlists map[string]string
	videos    map[string][]domain.Video
	comments  map[string][]domain.FeedComment
	errs      map[string]error
	block     chan struct{}
}

func (f *stubFeed) UploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := f.errs[channelID]; err != nil {
		return "", err
	}
	return f.playlists[channelID], nil
}

func (f *stubFeed) RecentVideoIDs(_ context.Context, playlistID string, limit int) ([]string, error) {
	var ids []string
	for _, v := range f.videos[playlistID] {
		ids = append(ids, v.ID)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *stubFeed) Videos(_ context.Context, ids []string) ([]domain.Video, error) {
	var out []domain.Video
	for _, list := range f.videos {
		for _, v := range list {
			for _, id := range ids {
				if v.ID == id {
					out = append(out, v)
				}
			}
		}
	}
	return out, nil
}

func (f *stubFeed) TopLevelComments(_ context.Context, videoID string, max int) ([]domain.FeedComment, error) {
	if err := f.errs[videoID]; err != nil {
		return nil, err
	}
	c := f.comments[videoID]
	if len(c) > max {
		c = c[:max]
	}
	return c, nil
}

type stubClassifier struct {
	mu    sync.Mutex
	texts []string
}

func (c *stubClassifier) Reconcile(_ context.Context, text string) domain.Sentiment {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return domain.SentimentPositive
}

type stubComments struct {
	mu      sync.Mutex
	stored  map[string]domain.Comment
	batches int
}

func (r *stubComments) CommentExists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stored[id]
	return ok, nil
}

func (r *stubComments) SaveComments(_ context.Context, comments []domain.Comment) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	saved := 0
	for _, c := range comments {
		if _, ok := r.stored[c.PlatformCommentID]; ok {
			continue
		}
		r.stored[c.PlatformCommentID] = c
		saved++
	}
	return saved, nil
}

func (r *stubComments) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stored[id]
	return ok
}

func fixture() (*stubFeed, *stubComments) {
	feed := &stubFeed{
		playlists: map[string]string{"UC1": "UU1", "UC2": "UU2"},
		videos: map[string][]domain.Video{
			"UU1": {{ID: "v1", ChannelID: "UC1", ChannelTitle: "Мэрия"}, {ID: "v2", ChannelID: "UC1", ChannelTitle: "Мэрия"}},
			"UU2": {{ID: "v3", ChannelID: "UC2", ChannelTitle: "Акимат"}},
		},
		comments: map[string][]domain.FeedComment{
			"v1": {{PlatformID: "c1", Text: "Спасибо"}, {PlatformID: "c2", Text: "Наконец-то"}},
			"v3": {{PlatformID: "c3", Text: "Ура"}},
		},
		errs: map[string]error{"v2": fmt.Errorf("wrapped: %w", domain.ErrCommentsDisabled)},
	}
	repo := &stubComments{stored: map[string]domain.Comment{"c2": {PlatformCommentID: "c2"}}}
	return feed, repo
}

func TestRunOnceSkipsKnownComments(t *testing.T) {
	feed, repo := fixture()
	cls := &stubClassifier{}
	svc := NewService(feed, cls, repo, Config{ChannelIDs: []string{"UC1", "UC2"}}, zerolog.Nop())

	stats, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Channels != 2 || stats.Videos != 3 || stats.Fetched != 3 || stats.Skipped != 1 || stats.Saved != 2 {
		t.Fatalf("неожиданная статистика: %+v", stats)
	}
	if len(cls.texts) != 2 {
		t.Fatalf("классификатор должен вызываться только для новых комментариев: %v", cls.texts)
	}
	if repo.batches != 2 {
		t.Fatalf("ожидали по одной пачке на ролик с новыми комментариями, получили %d", repo.batches)
	}
	c1 := repo.stored["c1"]
	if c1.VideoID != "v1" || c1.ChannelTitle != "Мэрия" || c1.Sentiment != domain.SentimentPositive {
		t.Fatalf("неожиданный комментарий: %+v", c1)
	}
}

func TestRunOnceContinuesAfterChannelFailure(t *testing.T) {
	feed, repo := fixture()
	feed.errs["UC1"] = errors.New("quota exceeded")
	svc := NewService(feed, &stubClassifier{}, repo, Config{ChannelIDs: []string{"UC1", "UC2"}}, zerolog.Nop())
	stats, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Saved != 1 || repo.stored["c3"].ChannelID != "UC2" {
		t.Fatalf("второй канал должен обрабатываться: %+v", stats)
	}
}

func TestRunOnceWithoutChannels(t *testing.T) {
	svc := NewService(&stubFeed{}, &stubClassifier{}, &stubComments{}, Config{}, zerolog.Nop())
	if stats, err := svc.RunOnce(context.Background()); err != nil || stats.Channels != 0 {
		t.Fatalf("пустая конфигурация: %+v %v", stats, err)
	}
}

func TestOverlappingTickSkipped(t *testing.T) {
	feed, repo := fixture()
	feed.block = make(chan struct{})
	svc := NewService(feed, &stubClassifier{}, repo, Config{ChannelIDs: []string{"UC1"}}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := testutil.ToFloat64(metrics.MonitorSkippedRuns)
	if !svc.tryStart(ctx) {
		t.Fatal("первый проход должен стартовать")
	}
	if svc.tryStart(ctx) {
		t.Fatal("второй тик во время прохода должен пропускаться")
	}
	if got := testutil.ToFloat64(metrics.MonitorSkippedRuns); got-before != 1 {
		t.Fatalf("ожидали +1 пропуск, получили %v", got-before)
	}

	close(feed.block)
	svc.wg.Wait()
	if !svc.tryStart(ctx) {
		t.Fatal("после завершения прохода новый должен стартовать")
	}
	svc.wg.Wait()
}

func TestRunStopsOnCancel(t *testing.T) {
	feed, repo := fixture()
	svc := NewService(feed, &stubClassifier{}, repo, Config{ChannelIDs: []string{"UC1"}, Interval: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()
	deadline := time.Now().Add(time.Second)
	for !repo.has("c1") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ожидали context.Canceled, получили %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run не завершился после отмены")
	}
	if !repo.has("c1") {
		t.Fatal("первый проход должен выполняться сразу при старте")
	}
}
