package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kopuro/internal/domain"
)

const (
	// DefaultTimeout ограничивает вызов модели при разборе жалобы.
	DefaultTimeout = 120 * time.Second

	errEmptyResponse = "empty response"
	errNoDepartment  = "no responsible department identified"
)

// Outcome итог разбора: анализ, статус и текст ошибки для хранения.
type Outcome struct {
	Analysis        domain.Analysis
	Status          domain.SubmissionStatus
	ProcessingError *string
}

// Analyzed сообщает, что анализ удался и его можно показать пользователю.
func (o Outcome) Analyzed() bool { return o.Status == domain.StatusAnalyzed }

// Reconciler превращает текст обращения в анализ и статус. Никогда не
// возвращает ошибку: любой сбой попадает в Outcome.
type Reconciler struct {
	gen     domain.Generator
	timeout time.Duration
	log     zerolog.Logger
}

// NewReconciler создаёт разборщик.
func NewReconciler(gen domain.Generator, timeout time.Duration, logger zerolog.Logger) *Reconciler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reconciler{gen: gen, timeout: timeout, log: logger.With().Str("component", "analysis").Logger()}
}

// Reconcile разбирает обращение. Просьбы не отправляются в модель.
func (r *Reconciler) Reconcile(ctx context.Context, text string, kind domain.SubmissionKind) (out Outcome) {
	if kind != domain.KindComplaint {
		return Outcome{Status: domain.StatusNew}
	}

	out = Outcome{Status: domain.StatusPendingAnalysis}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("analysis: panic recovered")
			out = failed(domain.Analysis{}, fmt.Sprintf("unexpected analysis failure: %v", rec))
		}
	}()

	raw, err := r.gen.Generate(ctx, domain.GenerateRequest{
		Prompt:  BuildPrompt(text),
		JSON:    true,
		Timeout: r.timeout,
	})
	if err != nil {
		return r.generationFailed(err)
	}

	body := stripFence(raw)
	if body == "" {
		r.log.Warn().Msg("analysis: model returned empty response")
		return failed(domain.Analysis{}, errEmptyResponse)
	}

	a, err := parseAnalysis(body)
	if err != nil {
		r.log.Warn().Err(err).Msg("analysis: model returned invalid JSON")
		return failed(domain.Analysis{}, fmt.Sprintf("invalid JSON from model: %v; response start: %s", err, truncateRunes(raw, rawPreviewRunes)))
	}
	if !a.HasDepartment() {
		return failed(a, errNoDepartment)
	}
	return Outcome{Analysis: a, Status: domain.StatusAnalyzed}
}

func (r *Reconciler) generationFailed(err error) Outcome {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		r.log.Warn().Err(err).Msg("analysis: generation failed")
		return failed(domain.Analysis{}, genErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failed(domain.Analysis{}, "generation endpoint timeout")
	}
	r.log.Error().Err(err).Msg("analysis: unexpected generation failure")
	return failed(domain.Analysis{}, "unexpected analysis failure: "+strings.TrimSpace(err.Error()))
}

func failed(a domain.Analysis, msg string) Outcome {
	return Outcome{Analysis: a, Status: domain.StatusAnalysisFailed, ProcessingError: &msg}
}
