package issues

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kopuro/internal/domain"
	"kopuro/internal/usecase/analysis"
)

type stubRepo struct {
	mu        sync.Mutex
	items     map[int64]domain.Submission
	nextID    int64
	createErr error
	lastList  domain.SubmissionListQuery
	lastUser  domain.SubmissionUserQuery
}

func newStubRepo() *stubRepo {
	return &stubRepo{items: map[int64]domain.Submission{}, nextID: 1}
}

func (r *stubRepo) CreateSubmission(ctx context.Context, s domain.Submission) (domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// pgx прерывает запрос на отменённом контексте
	if err := ctx.Err(); err != nil {
		return domain.Submission{}, err
	}
	if r.createErr != nil {
		return domain.Submission{}, r.createErr
	}
	s.ID = r.nextID
	r.nextID++
	r.items[s.ID] = s
	return s, nil
}

func (r *stubRepo) GetSubmission(_ context.Context, id int64) (domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return domain.Submission{}, domain.ErrNotFound
	}
	return s, nil
}

func (r *stubRepo) ListSubmissions(_ context.Context, q domain.SubmissionListQuery) ([]domain.Submission, error) {
	r.lastList = q
	return nil, nil
}

func (r *stubRepo) ListUserSubmissions(_ context.Context, q domain.SubmissionUserQuery) ([]domain.Submission, error) {
	r.lastUser = q
	return nil, nil
}

func (r *stubRepo) MutateSubmission(_ context.Context, id int64, fn func(*domain.Submission) error) (domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return domain.Submission{}, domain.ErrNotFound
	}
	if err := fn(&s); err != nil {
		return domain.Submission{}, err
	}
	r.items[id] = s
	return s, nil
}

type stubAnalyzer struct {
	outcome analysis.Outcome
	calls   int
	during  func()
	ctxErr  error
}

func (a *stubAnalyzer) Reconcile(ctx context.Context, _ string, _ domain.SubmissionKind) analysis.Outcome {
	a.calls++
	if a.during != nil {
		a.during()
	}
	a.ctxErr = ctx.Err()
	return a.outcome
}

type stubQueue struct {
	notices []domain.ResolutionNotice
	err     error
}

func (q *stubQueue) Enqueue(_ context.Context, n domain.ResolutionNotice) error {
	if q.err != nil {
		return q.err
	}
	q.notices = append(q.notices, n)
	return nil
}

func (q *stubQueue) Receive(context.Context) (domain.ResolutionNotice, domain.NoticeAckFunc, error) {
	return domain.ResolutionNotice{}, nil, errors.New("not implemented")
}

func newService(repo *stubRepo, an *stubAnalyzer, q domain.NoticeQueue) *Service {
	svc := NewService(repo, nil, an, q, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestSubmitStoresOutcome(t *testing.T) {
	dept := "Мэрия"
	repo := newStubRepo()
	an := &stubAnalyzer{outcome: analysis.Outcome{Status: domain.StatusAnalyzed, Analysis: domain.Analysis{ResponsibleDepartment: &dept}}}
	svc := newService(repo, an, nil)

	saved, err := svc.Submit(context.Background(), SubmitInput{Text: "яма", Kind: domain.KindComplaint, Source: domain.SourceTelegram, SourceUserID: "42"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if saved.ID != 1 || saved.Status != domain.StatusAnalyzed || *saved.ResponsibleDepartment != "Мэрия" {
		t.Fatalf("неожиданное обращение: %+v", saved)
	}
	if an.calls != 1 {
		t.Fatalf("ожидали один разбор")
	}
	if len(repo.items) != 1 {
		t.Fatalf("ожидали одну запись, получили %d", len(repo.items))
	}
}

func TestSubmitSurvivesClientDisconnect(t *testing.T) {
	repo := newStubRepo()
	reason := "timeout"
	ctx, cancel := context.WithCancel(context.Background())
	an := &stubAnalyzer{
		outcome: analysis.Outcome{Status: domain.StatusAnalysisFailed, ProcessingError: &reason},
		// клиент отключился, пока модель думала
		during: cancel,
	}
	svc := newService(repo, an, nil)

	saved, err := svc.Submit(ctx, SubmitInput{Text: "яма", Kind: domain.KindComplaint, Source: domain.SourceTelegram, SourceUserID: "42"})
	if err != nil {
		t.Fatalf("обращение должно сохраниться после отключения клиента: %v", err)
	}
	if an.ctxErr != nil {
		t.Fatalf("разбор не должен видеть отмену клиента: %v", an.ctxErr)
	}
	if saved.ID == 0 || len(repo.items) != 1 {
		t.Fatalf("ожидали одну сохранённую запись, получили %d", len(repo.items))
	}
	if saved.Status != domain.StatusAnalysisFailed || saved.LLMProcessingError == nil {
		t.Fatalf("неожиданное обращение: %+v", saved)
	}
}

func TestSubmitPersistenceFailure(t *testing.T) {
	repo := newStubRepo()
	repo.createErr = errors.New("db down")
	svc := newService(repo, &stubAnalyzer{outcome: analysis.Outcome{Status: domain.StatusNew}}, nil)
	if _, err := svc.Submit(context.Background(), SubmitInput{Text: "x", Kind: domain.KindRequest}); err == nil {
		t.Fatal("ожидали ошибку сохранения")
	}
}

func TestListClampsPage(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo, &stubAnalyzer{}, nil)
	_, _ = svc.List(context.Background(), domain.SubmissionListQuery{Skip: -5, Limit: 1000})
	if repo.lastList.Skip != 0 || repo.lastList.Limit != MaxLimit {
		t.Fatalf("страница не ограничена: %+v", repo.lastList)
	}
	_, _ = svc.ListByUser(context.Background(), domain.SubmissionUserQuery{Identity: "u"})
	if repo.lastUser.Limit != DefaultLimit {
		t.Fatalf("ожидали лимит по умолчанию, получили %d", repo.lastUser.Limit)
	}
}

func TestResolveLifecycle(t *testing.T) {
	repo := newStubRepo()
	repo.items[7] = domain.Submission{ID: 7, Status: domain.StatusInProgress, Source: domain.SourceTelegram, SourceUserID: "42"}
	q := &stubQueue{}
	svc := newService(repo, &stubAnalyzer{}, q)

	saved, err := svc.Resolve(context.Background(), 7, ResolveInput{Details: "яму заделали"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if saved.Status != domain.StatusResolved || saved.ResolvedAt == nil || saved.UpdatedAt == nil {
		t.Fatalf("неожиданное состояние: %+v", saved)
	}
	if len(q.notices) != 1 || q.notices[0].SubmissionID != 7 || q.notices[0].SourceUserID != "42" || q.notices[0].ID == "" {
		t.Fatalf("уведомление не поставлено: %+v", q.notices)
	}

	if _, err := svc.Resolve(context.Background(), 7, ResolveInput{Details: "повторно решили"}); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("ожидали ErrAlreadyResolved, получили %v", err)
	}
	if _, err := svc.Resolve(context.Background(), 99, ResolveInput{Details: "нет такого"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestResolveCustomDateAndQueueFailure(t *testing.T) {
	repo := newStubRepo()
	repo.items[1] = domain.Submission{ID: 1, Status: domain.StatusAnalyzed, SourceUserID: "42"}
	svc := newService(repo, &stubAnalyzer{}, &stubQueue{err: errors.New("redis down")})
	when := time.Date(2024, 4, 30, 8, 0, 0, 0, time.FixedZone("KGT", 6*3600))

	saved, err := svc.Resolve(context.Background(), 1, ResolveInput{Details: "всё сделано", ResolvedAt: &when})
	if err != nil {
		t.Fatalf("сбой очереди не должен ломать решение: %v", err)
	}
	if !saved.ResolvedAt.Equal(when) {
		t.Fatalf("resolved_at: %v", saved.ResolvedAt)
	}
}

func TestAddFeedback(t *testing.T) {
	cases := []struct {
		status domain.SubmissionStatus
		ok     bool
	}{
		{domain.StatusResolved, true},
		{domain.StatusPendingUserFeedback, true},
		{domain.StatusAnalyzed, false},
		{domain.StatusInProgress, false},
	}
	for _, tc := range cases {
		t.Run(tc.status.String(), func(t *testing.T) {
			repo := newStubRepo()
			repo.items[1] = domain.Submission{ID: 1, Status: tc.status}
			svc := newService(repo, &stubAnalyzer{}, nil)
			saved, err := svc.AddFeedback(context.Background(), 1, "спасибо")
			if tc.ok {
				if err != nil || saved.UserFeedbackOnResolution == nil || *saved.UserFeedbackOnResolution != "спасибо" {
					t.Fatalf("отзыв не сохранён: %v %+v", err, saved)
				}
				return
			}
			if !errors.Is(err, ErrFeedbackNotAllowed) {
				t.Fatalf("ожидали ErrFeedbackNotAllowed, получили %v", err)
			}
		})
	}
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	repo := newStubRepo()
	cat := "Здравоохранение"
	repo.items[3] = domain.Submission{ID: 3, Status: domain.StatusAnalyzed, Analysis: domain.Analysis{ComplaintCategory: &cat}}
	svc := newService(repo, &stubAnalyzer{}, nil)
	status := domain.StatusInProgress
	district := "Октябрьский"
	saved, err := svc.Update(context.Background(), 3, domain.SubmissionPatch{Status: &status, District: &district})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if saved.Status != domain.StatusInProgress || *saved.District != district || *saved.ComplaintCategory != cat || saved.UpdatedAt == nil {
		t.Fatalf("неожиданный результат: %+v", saved)
	}
}
