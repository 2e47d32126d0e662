package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound возвращается репозиториями, когда запись отсутствует.
	ErrNotFound = errors.New("запись не найдена")
	// ErrEmailTaken возвращается при попытке создать пользователя с занятым email.
	ErrEmailTaken = errors.New("email уже зарегистрирован")
	// ErrUnauthenticated оборачивают ошибки, означающие отказ в аутентификации.
	ErrUnauthenticated = errors.New("не удалось подтвердить личность")
)

// SubmissionListQuery задаёт страницу и сортировку общего списка обращений.
type SubmissionListQuery struct {
	Skip   int
	Limit  int
	SortBy string
	Desc   bool
}

// SubmissionUserQuery ищет обращения конкретного гражданина.
type SubmissionUserQuery struct {
	Identity string
	Source   *SubmissionSource
	Skip     int
	Limit    int
}

// SubmissionRepo хранит обращения.
type SubmissionRepo interface {
	CreateSubmission(ctx context.Context, s Submission) (Submission, error)
	GetSubmission(ctx context.Context, id int64) (Submission, error)
	ListSubmissions(ctx context.Context, q SubmissionListQuery) ([]Submission, error)
	ListUserSubmissions(ctx context.Context, q SubmissionUserQuery) ([]Submission, error)
	// MutateSubmission блокирует строку, передаёт её в fn и сохраняет результат.
	// Ошибка из fn откатывает транзакцию и возвращается как есть.
	MutateSubmission(ctx context.Context, id int64, fn func(*Submission) error) (Submission, error)
}

// StatsRepo строит агрегаты по обращениям.
type StatsRepo interface {
	OverallStats(ctx context.Context, f StatsFilter) (OverallStats, error)
	Timeline(ctx context.Context, period StatsPeriod, f StatsFilter) ([]TimelinePoint, error)
	TopAddresses(ctx context.Context, limit int, f StatsFilter) ([]AddressCount, error)
}

// UserRepo хранит сотрудников и администраторов.
type UserRepo interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context, skip, limit int) ([]User, error)
	ListUnconfirmedWorkers(ctx context.Context, skip, limit int) ([]User, error)
	// ConfirmWorker одним UPDATE выставляет is_active и is_confirmed_by_admin.
	ConfirmWorker(ctx context.Context, id int64) (User, error)
}

// CommentRepo хранит комментарии видеоплатформы.
type CommentRepo interface {
	CommentExists(ctx context.Context, platformCommentID string) (bool, error)
	// SaveComments сохраняет пачку в одной транзакции, пропуская дубликаты.
	// Возвращает число реально вставленных строк.
	SaveComments(ctx context.Context, comments []Comment) (int, error)
}

// GenerateRequest описывает запрос к генеративной модели.
type GenerateRequest struct {
	Prompt string
	// JSON просит модель вернуть только JSON.
	JSON    bool
	Timeout time.Duration
}

// Generator вызывает внешнюю генеративную модель и возвращает её сырой текст.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}
