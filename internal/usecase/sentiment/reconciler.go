package sentiment

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

// DefaultTimeout ограничивает вызов модели для одного комментария.
const DefaultTimeout = 90 * time.Second

// Reconciler присваивает комментарию одну метку тональности.
type Reconciler struct {
	gen     domain.Generator
	cache   *Cache
	timeout time.Duration
	log     zerolog.Logger
}

// NewReconciler создаёт классификатор. cache принадлежит вызывающему.
func NewReconciler(gen domain.Generator, cache *Cache, timeout time.Duration, logger zerolog.Logger) *Reconciler {
	if cache == nil {
		cache = NewCache(0)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reconciler{gen: gen, cache: cache, timeout: timeout, log: logger.With().Str("component", "sentiment").Logger()}
}

// Reconcile возвращает метку для текста. Сбои модели дают НЕОПРЕДЕЛЕНО
// и тоже кэшируются.
func (r *Reconciler) Reconcile(ctx context.Context, text string) domain.Sentiment {
	key := strings.TrimSpace(text)
	if key == "" {
		return domain.SentimentNeutral
	}
	if s, ok := r.cache.Get(key); ok {
		metrics.SentimentCacheHits.Inc()
		return s
	}

	label := r.classify(ctx, key)
	r.cache.Put(key, label)
	return label
}

func (r *Reconciler) classify(ctx context.Context, text string) domain.Sentiment {
	reply, err := r.gen.Generate(ctx, domain.GenerateRequest{Prompt: BuildPrompt(text), Timeout: r.timeout})
	if err != nil {
		r.log.Warn().Err(err).Msg("sentiment: generation failed")
		return domain.SentimentUnknown
	}
	label := ParseLabel(reply)
	if label == domain.SentimentUnknown {
		r.log.Debug().Str("reply", reply).Msg("sentiment: unknown label")
	}
	return label
}

// ParseLabel сопоставляет ответ модели с закрытым набором меток.
// Кавычки, точки и прочая пунктуация по краям игнорируются.
func ParseLabel(reply string) domain.Sentiment {
	cleaned := strings.TrimFunc(strings.TrimSpace(reply), func(r rune) bool {
		return strings.ContainsRune(" \t\r\n\"'`«».,!?:;*()[]", r)
	})
	return domain.ParseSentiment(cleaned)
}

// BuildPrompt собирает инструкцию для классификации комментария.
func BuildPrompt(text string) string {
	labels := make([]string, 0, len(domain.SentimentLabels))
	for _, l := range domain.SentimentLabels {
		labels = append(labels, string(l))
	}
	var b strings.Builder
	b.WriteString("Определи эмоциональный тон комментария к видео.\n")
	b.WriteString("Выбери ровно одну метку из списка: ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString("\nКомментарий: \"")
	b.WriteString(text)
	b.WriteString("\"\nОтветь только меткой.")
	return b.String()
}
