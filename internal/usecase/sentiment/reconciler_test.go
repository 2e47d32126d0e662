package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"kopuro/internal/domain"
)

type stubGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (s *stubGenerator) Generate(_ context.Context, req domain.GenerateRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if req.JSON {
		return "", errors.New("классификация не должна просить JSON")
	}
	return s.reply, s.err
}

func TestParseLabel(t *testing.T) {
	cases := []struct {
		in   string
		want domain.Sentiment
	}{
		{"ЗЛОЙ", domain.SentimentAngry},
		{"  благодарный\n", domain.SentimentGrateful},
		{"\"Позитивный\".", domain.SentimentPositive},
		{"«САРКАСТИЧНЫЙ»", domain.SentimentSarcastic},
		{"**НЕЙТРАЛЬНЫЙ**", domain.SentimentNeutral},
		{"Это ЗЛОЙ комментарий", domain.SentimentUnknown},
		{"", domain.SentimentUnknown},
		{"HAPPY", domain.SentimentUnknown},
	}
	for _, tc := range cases {
		if got := ParseLabel(tc.in); got != tc.want {
			t.Fatalf("ParseLabel(%q) = %s, ожидали %s", tc.in, got, tc.want)
		}
	}
}

func TestReconcileBlankIsNeutral(t *testing.T) {
	gen := &stubGenerator{reply: "ЗЛОЙ"}
	r := NewReconciler(gen, NewCache(10), 0, zerolog.Nop())
	if got := r.Reconcile(context.Background(), "   "); got != domain.SentimentNeutral {
		t.Fatalf("ожидали НЕЙТРАЛЬНЫЙ, получили %s", got)
	}
	if gen.calls != 0 {
		t.Fatal("пустой текст не отправляется в модель")
	}
}

func TestReconcileCachesByTrimmedText(t *testing.T) {
	gen := &stubGenerator{reply: "ГРУСТНЫЙ"}
	cache := NewCache(10)
	r := NewReconciler(gen, cache, 0, zerolog.Nop())
	first := r.Reconcile(context.Background(), "  жаль  ")
	second := r.Reconcile(context.Background(), "жаль")
	if first != domain.SentimentSad || second != domain.SentimentSad {
		t.Fatalf("неожиданные метки: %s %s", first, second)
	}
	if gen.calls != 1 {
		t.Fatalf("ожидали один вызов модели, получили %d", gen.calls)
	}
}

func TestReconcileErrorCachedAsUnknown(t *testing.T) {
	gen := &stubGenerator{err: &domain.GenerationError{Kind: domain.GenerationTimeout}}
	r := NewReconciler(gen, NewCache(10), 0, zerolog.Nop())
	for i := 0; i < 3; i++ {
		if got := r.Reconcile(context.Background(), "текст"); got != domain.SentimentUnknown {
			t.Fatalf("ожидали НЕОПРЕДЕЛЕНО, получили %s", got)
		}
	}
	if gen.calls != 1 {
		t.Fatalf("ошибка тоже кэшируется, вызовов: %d", gen.calls)
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	c := NewCache(2)
	c.Put("a", domain.SentimentAngry)
	c.Put("b", domain.SentimentSad)
	c.Put("a", domain.SentimentPositive)
	c.Put("c", domain.SentimentNeutral)
	if _, ok := c.Get("a"); ok {
		t.Fatal("самая старая запись должна быть вытеснена")
	}
	if s, ok := c.Get("b"); !ok || s != domain.SentimentSad {
		t.Fatalf("b: %s %v", s, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("ожидали 2 записи, получили %d", c.Len())
	}
}

func TestReconcileConcurrent(t *testing.T) {
	gen := &stubGenerator{reply: "ПОЗИТИВНЫЙ"}
	r := NewReconciler(gen, NewCache(1000), 0, zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Reconcile(context.Background(), fmt.Sprintf("комментарий %d", i%5))
		}(i)
	}
	wg.Wait()
	if gen.calls < 5 {
		t.Fatalf("ожидали хотя бы 5 вызовов, получили %d", gen.calls)
	}
}

func TestBuildPromptListsLabels(t *testing.T) {
	p := BuildPrompt("ура")
	for _, l := range domain.SentimentLabels {
		if !strings.Contains(p, string(l)) {
			t.Fatalf("в промпте нет метки %s", l)
		}
	}
}
