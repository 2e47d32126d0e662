package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"kopuro/internal/domain"
	"kopuro/internal/usecase/auth"
	"kopuro/internal/usecase/issues"
)

type stubIssues struct {
	submitted  issues.SubmitInput
	submitErr  error
	userQuery  domain.SubmissionUserQuery
	listQuery  domain.SubmissionListQuery
	getErr     error
	resolveErr error
	resolved   issues.ResolveInput
	feedback   string
	feedErr    error
	period     domain.StatsPeriod
	filter     domain.StatsFilter
	topLimit   int
}

func (s *stubIssues) Submit(_ context.Context, in issues.SubmitInput) (domain.Submission, error) {
	s.submitted = in
	if s.submitErr != nil {
		return domain.Submission{}, s.submitErr
	}
	dept := "Мэрия"
	sub := domain.Submission{ID: 7, OriginalText: in.Text, Kind: in.Kind, Source: in.Source, SourceUserID: in.SourceUserID, Status: domain.StatusNew}
	if in.Kind == domain.KindComplaint {
		sub.Status = domain.StatusAnalyzed
		sub.ResponsibleDepartment = &dept
	}
	return sub, nil
}

func (s *stubIssues) ListByUser(_ context.Context, q domain.SubmissionUserQuery) ([]domain.Submission, error) {
	s.userQuery = q
	return nil, nil
}

func (s *stubIssues) List(_ context.Context, q domain.SubmissionListQuery) ([]domain.Submission, error) {
	s.listQuery = q
	return []domain.Submission{{ID: 1}}, nil
}

func (s *stubIssues) Get(_ context.Context, id int64) (domain.Submission, error) {
	if s.getErr != nil {
		return domain.Submission{}, s.getErr
	}
	return domain.Submission{ID: id}, nil
}

func (s *stubIssues) Update(_ context.Context, id int64, _ domain.SubmissionPatch) (domain.Submission, error) {
	return domain.Submission{ID: id}, nil
}

func (s *stubIssues) Resolve(_ context.Context, id int64, in issues.ResolveInput) (domain.Submission, error) {
	s.resolved = in
	if s.resolveErr != nil {
		return domain.Submission{}, s.resolveErr
	}
	return domain.Submission{ID: id, Status: domain.StatusResolved}, nil
}

func (s *stubIssues) AddFeedback(_ context.Context, id int64, feedback string) (domain.Submission, error) {
	s.feedback = feedback
	if s.feedErr != nil {
		return domain.Submission{}, s.feedErr
	}
	return domain.Submission{ID: id}, nil
}

func (s *stubIssues) OverallStats(_ context.Context, f domain.StatsFilter) (domain.OverallStats, error) {
	s.filter = f
	return domain.OverallStats{TotalIssues: 3}, nil
}

func (s *stubIssues) Timeline(_ context.Context, period domain.StatsPeriod, f domain.StatsFilter) ([]domain.TimelinePoint, error) {
	s.period = period
	s.filter = f
	return []domain.TimelinePoint{{Period: "2024-03", Count: 2}}, nil
}

func (s *stubIssues) TopAddresses(_ context.Context, limit int, f domain.StatsFilter) ([]domain.AddressCount, error) {
	s.topLimit = limit
	s.filter = f
	return nil, nil
}

type stubAuth struct {
	registerErr error
	loginErr    error
}

var tokenUsers = map[string]domain.User{
	"admin":    {ID: 1, Email: "admin@example.com", Role: domain.UserRoleAdmin, IsActive: true, IsConfirmedByAdmin: true},
	"worker":   {ID: 2, Email: "worker@example.com", Role: domain.UserRoleWorker, IsActive: true, IsConfirmedByAdmin: true},
	"pending":  {ID: 3, Email: "pending@example.com", Role: domain.UserRoleWorker},
	"inactive": {ID: 4, Email: "off@example.com", Role: domain.UserRoleAdmin, IsConfirmedByAdmin: true},
}

func (a *stubAuth) ResolveToken(_ context.Context, token string) (domain.User, error) {
	u, ok := tokenUsers[token]
	if !ok {
		return domain.User{}, auth.ErrInvalidToken
	}
	return u, nil
}

func (a *stubAuth) Register(_ context.Context, in auth.RegisterInput) (domain.User, error) {
	if a.registerErr != nil {
		return domain.User{}, a.registerErr
	}
	return domain.User{ID: 9, Email: in.Email, Role: domain.UserRoleWorker}, nil
}

func (a *stubAuth) Login(_ context.Context, email, password string) (auth.Token, error) {
	if a.loginErr != nil {
		return auth.Token{}, a.loginErr
	}
	return auth.Token{AccessToken: "jwt-for-" + email, TokenType: "bearer"}, nil
}

func (a *stubAuth) RequireActive(u domain.User) error {
	if !u.IsActive {
		return auth.ErrInactiveUser
	}
	if u.AwaitsConfirmation() {
		return auth.ErrNotConfirmed
	}
	return nil
}

func (a *stubAuth) RequireAdmin(u domain.User) error {
	if err := a.RequireActive(u); err != nil {
		return err
	}
	if !u.IsAdmin() {
		return auth.ErrAdminRequired
	}
	return nil
}

func (a *stubAuth) ListUsers(context.Context, int, int) ([]domain.User, error) {
	return []domain.User{tokenUsers["admin"]}, nil
}

func (a *stubAuth) ListUnconfirmedWorkers(context.Context, int, int) ([]domain.User, error) {
	return nil, nil
}

func (a *stubAuth) ConfirmWorker(_ context.Context, id int64) (domain.User, error) {
	if id != 3 {
		return domain.User{}, domain.ErrNotFound
	}
	u := tokenUsers["pending"]
	u.IsActive, u.IsConfirmedByAdmin = true, true
	return u, nil
}

func newTestServer() (*Server, *stubIssues, *stubAuth) {
	is := &stubIssues{}
	as := &stubAuth{}
	return NewServer(is, as), is, as
}

func do(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	raw, _ := json.Marshal(body.Detail)
	return string(raw)
}

func TestSubmitIssueAnalyzed(t *testing.T) {
	srv, is, _ := newTestServer()
	rec := do(t, srv.Router(), http.MethodPost, "/submit-issue/", "",
		`{"text":"Яма во дворе","submission_type_by_user":"жалоба","source":"telegram","source_user_id":"42","source_username":"  "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидали 201, получили %d: %s", rec.Code, rec.Body)
	}
	if is.submitted.Kind != domain.KindComplaint || is.submitted.Source != domain.SourceTelegram {
		t.Fatalf("неожиданный ввод: %+v", is.submitted)
	}
	if is.submitted.SourceUsername != nil {
		t.Fatalf("пустой username должен стать nil")
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["saved_record_id"].(float64) != 7 || resp["status"] != "analyzed" {
		t.Fatalf("неожиданный ответ: %v", resp)
	}
	analysis, ok := resp["analysis"].(map[string]any)
	if !ok || analysis["responsible_department"] != "Мэрия" {
		t.Fatalf("ожидали анализ в ответе: %v", resp)
	}
}

func TestSubmitIssueRequestHasNoAnalysis(t *testing.T) {
	srv, _, _ := newTestServer()
	rec := do(t, srv.Router(), http.MethodPost, "/submit-issue/", "",
		`{"text":"Прошу установить скамейку","submission_type_by_user":"request","source":"web_form","source_user_id":"u1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидали 201, получили %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["analysis"] != nil || resp["status"] != "new" {
		t.Fatalf("у просьбы не должно быть анализа: %v", resp)
	}
}

func TestSubmitIssueValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"нет текста", `{"submission_type_by_user":"complaint","source":"telegram","source_user_id":"1"}`},
		{"пустой текст", `{"text":"   ","submission_type_by_user":"complaint","source":"telegram","source_user_id":"1"}`},
		{"неизвестный тип", `{"text":"x","submission_type_by_user":"idea","source":"telegram","source_user_id":"1"}`},
		{"неизвестный источник", `{"text":"x","submission_type_by_user":"complaint","source":"fax","source_user_id":"1"}`},
		{"битый JSON", `{"text":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _, _ := newTestServer()
			rec := do(t, srv.Router(), http.MethodPost, "/submit-issue/", "", tc.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("ожидали 422, получили %d: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestSubmitIssuePersistenceFailure(t *testing.T) {
	srv, is, _ := newTestServer()
	is.submitErr = errors.New("db down")
	rec := do(t, srv.Router(), http.MethodPost, "/submit-issue/", "",
		`{"text":"x","submission_type_by_user":"complaint","source":"telegram","source_user_id":"1"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ожидали 500, получили %d", rec.Code)
	}
}

func TestUserIssuesQuery(t *testing.T) {
	srv, is, _ := newTestServer()
	h := srv.Router()

	if rec := do(t, h, http.MethodGet, "/issues/", "", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("без source_user_id ожидали 422, получили %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/issues/?source_user_id=42&limit=101", "", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("limit > 100 должен давать 422, получили %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/issues/?source_user_id=Ivan&source=telegram&skip=5", "", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("ожидали пустой список, получили %d %s", rec.Code, rec.Body)
	}
	if is.userQuery.Identity != "Ivan" || is.userQuery.Skip != 5 || is.userQuery.Limit != issues.DefaultLimit {
		t.Fatalf("неожиданный запрос: %+v", is.userQuery)
	}
	if is.userQuery.Source == nil || *is.userQuery.Source != domain.SourceTelegram {
		t.Fatalf("фильтр источника не передан")
	}
}

func TestProtectedRoutes(t *testing.T) {
	cases := []struct {
		name   string
		method string
		target string
		token  string
		code   int
		detail string
	}{
		{"без токена", http.MethodGet, "/all_issues/", "", http.StatusUnauthorized, "Not authenticated"},
		{"чужой токен", http.MethodGet, "/all_issues/", "forged", http.StatusUnauthorized, "Could not validate credentials"},
		{"неподтверждённый", http.MethodGet, "/all_issues/", "pending", http.StatusForbidden, "Worker account not yet confirmed by admin."},
		{"неактивный", http.MethodGet, "/auth/users/me", "inactive", http.StatusBadRequest, "Inactive user"},
		{"сотрудник в админке", http.MethodGet, "/admin/users", "worker", http.StatusForbidden, "The user doesn't have enough privileges (Admin role required)"},
		{"сотрудник", http.MethodGet, "/all_issues/", "worker", http.StatusOK, ""},
		{"администратор", http.MethodGet, "/admin/users", "admin", http.StatusOK, ""},
		{"статистика", http.MethodGet, "/stats/overall", "worker", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _, _ := newTestServer()
			rec := do(t, srv.Router(), tc.method, tc.target, tc.token, "")
			if rec.Code != tc.code {
				t.Fatalf("ожидали %d, получили %d: %s", tc.code, rec.Code, rec.Body)
			}
			if tc.detail != "" && detail(t, rec) != tc.detail {
				t.Fatalf("неожиданный detail: %s", rec.Body)
			}
			if tc.code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatalf("нет заголовка WWW-Authenticate")
			}
		})
	}
}

func TestAllIssuesSorting(t *testing.T) {
	srv, is, _ := newTestServer()
	rec := do(t, srv.Router(), http.MethodGet, "/all_issues/?sort_by=status&order=ASC&limit=5", "worker", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	if is.listQuery.SortBy != "status" || is.listQuery.Desc || is.listQuery.Limit != 5 {
		t.Fatalf("неожиданный запрос: %+v", is.listQuery)
	}

	do(t, srv.Router(), http.MethodGet, "/all_issues/", "worker", "")
	if is.listQuery.SortBy != "created_at" || !is.listQuery.Desc || is.listQuery.Limit != issues.DefaultLimit {
		t.Fatalf("неожиданные значения по умолчанию: %+v", is.listQuery)
	}
}

func TestGetIssueNotFound(t *testing.T) {
	srv, is, _ := newTestServer()
	is.getErr = domain.ErrNotFound
	rec := do(t, srv.Router(), http.MethodGet, "/issue/99", "worker", "")
	if rec.Code != http.StatusNotFound || detail(t, rec) != issueNotFound {
		t.Fatalf("ожидали 404, получили %d: %s", rec.Code, rec.Body)
	}
	if rec := do(t, srv.Router(), http.MethodGet, "/issue/abc", "worker", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("нечисловой id должен давать 422, получили %d", rec.Code)
	}
}

func TestResolve(t *testing.T) {
	srv, is, _ := newTestServer()
	h := srv.Router()

	if rec := do(t, h, http.MethodPost, "/issue/1/resolve", "worker", `{"resolution_details":"коротко"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("короткое описание должно давать 422, получили %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/issue/1/resolve", "worker", `{"resolution_details":"Яма заделана асфальтом","resolved_at":"2024-05-01T10:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", rec.Code, rec.Body)
	}
	if is.resolved.ResolvedAt == nil || !is.resolved.ResolvedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("resolved_at не передан: %+v", is.resolved)
	}

	is.resolveErr = issues.ErrAlreadyResolved
	rec = do(t, h, http.MethodPost, "/issue/1/resolve", "worker", `{"resolution_details":"Яма заделана асфальтом"}`)
	if rec.Code != http.StatusBadRequest || detail(t, rec) != "Обращение уже отмечено как решенное." {
		t.Fatalf("ожидали 400, получили %d: %s", rec.Code, rec.Body)
	}
}

func TestFeedback(t *testing.T) {
	srv, is, _ := newTestServer()
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/issue/3/feedback", "", `{"user_feedback_on_resolution":"  Спасибо!  "}`)
	if rec.Code != http.StatusOK || is.feedback != "Спасибо!" {
		t.Fatalf("ожидали 200 и обрезанный отзыв, получили %d %q", rec.Code, is.feedback)
	}
	if rec := do(t, h, http.MethodPost, "/issue/3/feedback", "", `{"user_feedback_on_resolution":" "}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("пустой отзыв должен давать 422, получили %d", rec.Code)
	}

	is.feedErr = issues.ErrFeedbackNotAllowed
	if rec := do(t, h, http.MethodPost, "/issue/3/feedback", "", `{"user_feedback_on_resolution":"ok"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", rec.Code)
	}
}

func TestRegisterAndToken(t *testing.T) {
	srv, _, as := newTestServer()
	h := srv.Router()

	if rec := do(t, h, http.MethodPost, "/auth/register", "", `{"email":"not-an-email","password":"secret123"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("ожидали 422 для email, получили %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/auth/register", "", `{"email":"a@b.kg","password":"short"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("ожидали 422 для пароля, получили %d", rec.Code)
	}
	as.registerErr = domain.ErrEmailTaken
	rec := do(t, h, http.MethodPost, "/auth/register", "", `{"email":"a@b.kg","password":"secret123"}`)
	if rec.Code != http.StatusBadRequest || detail(t, rec) != "Email already registered" {
		t.Fatalf("ожидали 400, получили %d: %s", rec.Code, rec.Body)
	}

	form := url.Values{"username": {"a@b.kg"}, "password": {"secret123"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokRec := httptest.NewRecorder()
	h.ServeHTTP(tokRec, req)
	if tokRec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", tokRec.Code, tokRec.Body)
	}
	var tok map[string]any
	_ = json.Unmarshal(tokRec.Body.Bytes(), &tok)
	if tok["access_token"] != "jwt-for-a@b.kg" || tok["token_type"] != "bearer" {
		t.Fatalf("неожиданный токен: %v", tok)
	}

	for _, tc := range []struct {
		err  error
		code int
	}{
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrNotConfirmed, http.StatusForbidden},
		{auth.ErrInactiveUser, http.StatusBadRequest},
	} {
		as.loginErr = tc.err
		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.code {
			t.Fatalf("%v: ожидали %d, получили %d", tc.err, tc.code, rec.Code)
		}
	}
}

func TestConfirmWorker(t *testing.T) {
	srv, _, _ := newTestServer()
	h := srv.Router()
	if rec := do(t, h, http.MethodPatch, "/admin/confirm-worker/3", "admin", ""); rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	rec := do(t, h, http.MethodPatch, "/admin/confirm-worker/1", "admin", "")
	if rec.Code != http.StatusNotFound || detail(t, rec) != "Worker not found" {
		t.Fatalf("ожидали 404, получили %d: %s", rec.Code, rec.Body)
	}
}

func TestStatsEndpoints(t *testing.T) {
	srv, is, _ := newTestServer()
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/stats/timeline?group_by_period=month&date_to=2024-03-31&status=resolved&source=telegram", "worker", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", rec.Code, rec.Body)
	}
	if is.period != domain.PeriodMonth || is.filter.Status == nil || *is.filter.Status != domain.StatusResolved {
		t.Fatalf("неожиданные параметры: %v %+v", is.period, is.filter)
	}
	if is.filter.Source != nil {
		t.Fatalf("source не применяется к динамике")
	}
	if is.filter.DateTo == nil || !is.filter.DateTo.Equal(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date_to разобран неверно: %v", is.filter.DateTo)
	}

	if rec := do(t, h, http.MethodGet, "/stats/timeline?group_by_period=week", "worker", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("неизвестный период должен давать 422, получили %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/stats/overall?date_from=yesterday", "worker", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("битая дата должна давать 422, получили %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/stats/top_problematic_addresses?district=Leninsky", "worker", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("ожидали пустой список, получили %d %s", rec.Code, rec.Body)
	}
	if is.topLimit != 1 || is.filter.District == nil || *is.filter.District != "Leninsky" {
		t.Fatalf("неожиданные параметры: %d %+v", is.topLimit, is.filter)
	}
	if rec := do(t, h, http.MethodGet, "/stats/top_problematic_addresses?limit=0", "worker", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("limit=0 должен давать 422, получили %d", rec.Code)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-01T12:30:00Z", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), true},
		{"2024-03-01T12:30:00+06:00", time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC), true},
		{"2024-03-01T12:30:00", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), true},
		{"01.03.2024", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := parseDate(tc.raw)
		if (err == nil) != tc.ok {
			t.Fatalf("parseDate(%q) err = %v", tc.raw, err)
		}
		if tc.ok && !got.Equal(tc.want) {
			t.Fatalf("parseDate(%q) = %v, ожидали %v", tc.raw, got, tc.want)
		}
	}
}
