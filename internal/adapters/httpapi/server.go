package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"kopuro/internal/domain"
	httpinfra "kopuro/internal/infra/http"
	"kopuro/internal/usecase/auth"
	"kopuro/internal/usecase/issues"
)

// IssueService принимает обращения и отвечает на запросы по ним.
type IssueService interface {
	Submit(ctx context.Context, in issues.SubmitInput) (domain.Submission, error)
	ListByUser(ctx context.Context, q domain.SubmissionUserQuery) ([]domain.Submission, error)
	List(ctx context.Context, q domain.SubmissionListQuery) ([]domain.Submission, error)
	Get(ctx context.Context, id int64) (domain.Submission, error)
	Update(ctx context.Context, id int64, patch domain.SubmissionPatch) (domain.Submission, error)
	Resolve(ctx context.Context, id int64, in issues.ResolveInput) (domain.Submission, error)
	AddFeedback(ctx context.Context, id int64, feedback string) (domain.Submission, error)
	OverallStats(ctx context.Context, f domain.StatsFilter) (domain.OverallStats, error)
	Timeline(ctx context.Context, period domain.StatsPeriod, f domain.StatsFilter) ([]domain.TimelinePoint, error)
	TopAddresses(ctx context.Context, limit int, f domain.StatsFilter) ([]domain.AddressCount, error)
}

// AuthService управляет учётными записями сотрудников.
type AuthService interface {
	httpinfra.TokenResolver
	Register(ctx context.Context, in auth.RegisterInput) (domain.User, error)
	Login(ctx context.Context, email, password string) (auth.Token, error)
	RequireActive(u domain.User) error
	RequireAdmin(u domain.User) error
	ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error)
	ListUnconfirmedWorkers(ctx context.Context, skip, limit int) ([]domain.User, error)
	ConfirmWorker(ctx context.Context, id int64) (domain.User, error)
}

// Server обслуживает REST API приёма и обработки обращений.
type Server struct {
	issues   IssueService
	auth     AuthService
	validate *validator.Validate
	log      zerolog.Logger
}

type Option func(*Server)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log.With().Str("component", "httpapi").Logger()
	}
}

func NewServer(issueService IssueService, authService AuthService, opts ...Option) *Server {
	srv := &Server{
		issues:   issueService,
		auth:     authService,
		validate: newValidator(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Router возвращает отдельный роутер со всеми маршрутами API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// Register вешает маршруты API на r.
func (s *Server) Register(r chi.Router) {
	r.Post("/submit-issue/", s.handleSubmitIssue)
	r.Get("/issues/", s.handleUserIssues)
	r.Post("/issue/{id}/feedback", s.handleFeedback)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(httpinfra.BearerAuthMiddleware(s.auth))
		r.Use(s.requireUser(s.auth.RequireActive))

		r.Get("/auth/users/me", s.handleMe)

		r.Get("/all_issues/", s.handleAllIssues)
		r.Get("/issue/{id}", s.handleGetIssue)
		r.Patch("/issue/{id}", s.handleUpdateIssue)
		r.Post("/issue/{id}/resolve", s.handleResolve)

		r.Get("/stats/overall", s.handleOverallStats)
		r.Get("/stats/timeline", s.handleTimeline)
		r.Get("/stats/top_problematic_addresses", s.handleTopAddresses)
	})

	r.Group(func(r chi.Router) {
		r.Use(httpinfra.BearerAuthMiddleware(s.auth))
		r.Use(s.requireUser(s.auth.RequireAdmin))

		r.Get("/admin/users", s.handleListUsers)
		r.Get("/admin/unconfirmed-workers", s.handleUnconfirmedWorkers)
		r.Patch("/admin/confirm-worker/{id}", s.handleConfirmWorker)
	})
}

func (s *Server) requireUser(check func(domain.User) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := httpinfra.UserFromContext(r.Context())
			if !ok {
				s.writeServiceError(w, auth.ErrInvalidToken, "")
				return
			}
			if err := check(user); err != nil {
				s.writeServiceError(w, err, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// fieldError описывает одну ошибку валидации в теле 422.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form", "query"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// decodeJSON читает тело и валидирует его. При ошибке ответ уже отправлен.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeValidation(w, fieldError{Loc: []string{"body"}, Msg: err.Error(), Type: "json_invalid"})
		return false
	}
	return s.check(w, "body", dst)
}

func (s *Server) check(w http.ResponseWriter, loc string, v any) bool {
	err := s.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeValidation(w, fieldError{Loc: []string{loc}, Msg: err.Error(), Type: "value_error"})
		return false
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{Loc: []string{loc, fe.Field()}, Msg: validationMessage(fe), Type: fe.Tag()})
	}
	writeValidation(w, out...)
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min", "gte":
		return "value must be at least " + fe.Param()
	case "max", "lte":
		return "value must be at most " + fe.Param()
	case "email":
		return "value is not a valid email address"
	case "oneof":
		return "value must be one of: " + fe.Param()
	}
	return "invalid value"
}

func writeValidation(w http.ResponseWriter, errs ...fieldError) {
	httpinfra.WriteError(w, http.StatusUnprocessableEntity, errs)
}

func invalidParam(w http.ResponseWriter, loc, name, msg string) {
	writeValidation(w, fieldError{Loc: []string{loc, name}, Msg: msg, Type: "value_error"})
}

// writeServiceError переводит ошибки сервисов в HTTP-ответ.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, notFoundDetail string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if notFoundDetail == "" {
			notFoundDetail = "Not found"
		}
		httpinfra.WriteError(w, http.StatusNotFound, notFoundDetail)
	case errors.Is(err, issues.ErrAlreadyResolved):
		httpinfra.WriteError(w, http.StatusBadRequest, "Обращение уже отмечено как решенное.")
	case errors.Is(err, issues.ErrFeedbackNotAllowed):
		httpinfra.WriteError(w, http.StatusBadRequest, "Отзыв можно оставить только по решенному обращению или ожидающему отзыв.")
	case errors.Is(err, domain.ErrEmailTaken):
		httpinfra.WriteError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		httpinfra.WriteError(w, http.StatusUnauthorized, "Incorrect email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		httpinfra.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
	case errors.Is(err, auth.ErrInactiveUser):
		httpinfra.WriteError(w, http.StatusBadRequest, "Inactive user")
	case errors.Is(err, auth.ErrNotConfirmed):
		httpinfra.WriteError(w, http.StatusForbidden, "Worker account not yet confirmed by admin.")
	case errors.Is(err, auth.ErrAdminRequired):
		httpinfra.WriteError(w, http.StatusForbidden, "The user doesn't have enough privileges (Admin role required)")
	default:
		s.log.Error().Err(err).Msg("httpapi: internal error")
		httpinfra.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		invalidParam(w, "path", "id", "value is not a valid integer")
		return 0, false
	}
	return id, true
}

// queryInt читает целый параметр запроса, def используется при отсутствии.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		invalidParam(w, "query", name, "value is not a valid integer")
		return 0, false
	}
	return v, true
}

func optionalString(r *http.Request, name string) *string {
	return domain.StringPtr(r.URL.Query().Get(name))
}
