package issues

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
	"kopuro/internal/usecase/analysis"
)

var (
	// ErrAlreadyResolved возвращается при повторной отметке о решении.
	ErrAlreadyResolved = errors.New("обращение уже решено")
	// ErrFeedbackNotAllowed возвращается, если обращение ещё не решено.
	ErrFeedbackNotAllowed = errors.New("отзыв доступен только по решённому обращению")
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// saveTimeout ограничивает вставку обращения после разбора.
	saveTimeout = 10 * time.Second
)

// Analyzer разбирает текст обращения до сохранения.
type Analyzer interface {
	Reconcile(ctx context.Context, text string, kind domain.SubmissionKind) analysis.Outcome
}

// SubmitInput описывает новое обращение из любого канала.
type SubmitInput struct {
	Text           string
	Kind           domain.SubmissionKind
	Source         domain.SubmissionSource
	SourceUserID   string
	SourceUsername *string
	UserFirstName  *string
}

// ResolveInput описывает решение по обращению.
type ResolveInput struct {
	Details    string
	ResolvedAt *time.Time
}

// Service принимает обращения и ведёт их жизненный цикл.
type Service struct {
	repo     domain.SubmissionRepo
	stats    domain.StatsRepo
	analyzer Analyzer
	notices  domain.NoticeQueue
	log      zerolog.Logger
	now      func() time.Time
}

// NewService создаёт сервис. notices может быть nil, тогда уведомления не отправляются.
func NewService(repo domain.SubmissionRepo, stats domain.StatsRepo, analyzer Analyzer, notices domain.NoticeQueue, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		stats:    stats,
		analyzer: analyzer,
		notices:  notices,
		log:      logger.With().Str("component", "issues").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit разбирает обращение и сохраняет его одной вставкой. Вызов модели
// выполняется до любых обращений к БД. Отмена ctx вызывающей стороной
// (клиент не дождался ответа) не прерывает ни разбор, ни сохранение:
// разбор ограничен своим тайм-аутом, вставка своим.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (domain.Submission, error) {
	ctx = context.WithoutCancel(ctx)
	outcome := s.analyzer.Reconcile(ctx, in.Text, in.Kind)

	sub := domain.Submission{
		OriginalText:       in.Text,
		Kind:               in.Kind,
		Source:             in.Source,
		SourceUserID:       in.SourceUserID,
		SourceUsername:     in.SourceUsername,
		UserFirstName:      in.UserFirstName,
		Analysis:           outcome.Analysis,
		Status:             outcome.Status,
		LLMProcessingError: outcome.ProcessingError,
		CreatedAt:          s.now(),
	}
	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	saved, err := s.repo.CreateSubmission(saveCtx, sub)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("сохранение обращения: %w", err)
	}
	metrics.IncSubmission(saved.Kind.String(), saved.Status.String())
	s.log.Info().
		Int64("submission_id", saved.ID).
		Str("source", saved.Source.String()).
		Str("status", saved.Status.String()).
		Msg("обращение сохранено")
	return saved, nil
}

// ListByUser возвращает обращения гражданина, новые первыми.
func (s *Service) ListByUser(ctx context.Context, q domain.SubmissionUserQuery) ([]domain.Submission, error) {
	q.Skip, q.Limit = clampPage(q.Skip, q.Limit)
	return s.repo.ListUserSubmissions(ctx, q)
}

// List возвращает страницу всех обращений.
func (s *Service) List(ctx context.Context, q domain.SubmissionListQuery) ([]domain.Submission, error) {
	q.Skip, q.Limit = clampPage(q.Skip, q.Limit)
	return s.repo.ListSubmissions(ctx, q)
}

// Get возвращает обращение или domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (domain.Submission, error) {
	return s.repo.GetSubmission(ctx, id)
}

// Update применяет ручные правки сотрудника.
func (s *Service) Update(ctx context.Context, id int64, patch domain.SubmissionPatch) (domain.Submission, error) {
	return s.repo.MutateSubmission(ctx, id, func(sub *domain.Submission) error {
		sub.Apply(patch, s.now())
		return nil
	})
}

// Resolve отмечает обращение решённым и ставит уведомление гражданину в очередь.
func (s *Service) Resolve(ctx context.Context, id int64, in ResolveInput) (domain.Submission, error) {
	now := s.now()
	resolvedAt := now
	if in.ResolvedAt != nil {
		resolvedAt = in.ResolvedAt.UTC()
	}
	saved, err := s.repo.MutateSubmission(ctx, id, func(sub *domain.Submission) error {
		if sub.Status == domain.StatusResolved {
			return ErrAlreadyResolved
		}
		details := in.Details
		sub.Status = domain.StatusResolved
		sub.ResolutionDetails = &details
		sub.ResolvedAt = &resolvedAt
		sub.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return domain.Submission{}, err
	}
	s.publishResolution(ctx, saved)
	return saved, nil
}

func (s *Service) publishResolution(ctx context.Context, sub domain.Submission) {
	if s.notices == nil || sub.SourceUserID == "" {
		return
	}
	notice := domain.ResolutionNotice{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		Source:       sub.Source,
		SourceUserID: sub.SourceUserID,
	}
	if sub.ResolutionDetails != nil {
		notice.ResolutionDetails = *sub.ResolutionDetails
	}
	if sub.ResolvedAt != nil {
		notice.ResolvedAt = *sub.ResolvedAt
	}
	if err := s.notices.Enqueue(ctx, notice); err != nil {
		s.log.Error().Err(err).Int64("submission_id", sub.ID).Msg("не удалось поставить уведомление о решении")
		return
	}
	s.log.Debug().Str("notice_id", notice.ID).Int64("submission_id", sub.ID).Msg("уведомление о решении поставлено")
}

// AddFeedback сохраняет отзыв гражданина о решении.
func (s *Service) AddFeedback(ctx context.Context, id int64, feedback string) (domain.Submission, error) {
	return s.repo.MutateSubmission(ctx, id, func(sub *domain.Submission) error {
		if !sub.AcceptsFeedback() {
			return ErrFeedbackNotAllowed
		}
		now := s.now()
		sub.UserFeedbackOnResolution = &feedback
		sub.UpdatedAt = &now
		return nil
	})
}

// OverallStats возвращает сводку по обращениям.
func (s *Service) OverallStats(ctx context.Context, f domain.StatsFilter) (domain.OverallStats, error) {
	return s.stats.OverallStats(ctx, f)
}

// Timeline возвращает количество обращений по периодам.
func (s *Service) Timeline(ctx context.Context, period domain.StatsPeriod, f domain.StatsFilter) ([]domain.TimelinePoint, error) {
	return s.stats.Timeline(ctx, period, f)
}

// TopAddresses возвращает самые частые адреса жалоб.
func (s *Service) TopAddresses(ctx context.Context, limit int, f domain.StatsFilter) ([]domain.AddressCount, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return s.stats.TopAddresses(ctx, limit, f)
}

func clampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return skip, limit
}
