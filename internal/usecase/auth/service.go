package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"kopuro/internal/domain"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: неверный email или пароль", domain.ErrUnauthenticated)
	ErrInvalidToken       = fmt.Errorf("%w: недействительный токен", domain.ErrUnauthenticated)
	ErrInactiveUser       = errors.New("пользователь неактивен")
	ErrNotConfirmed       = errors.New("сотрудник ещё не подтверждён администратором")
	ErrAdminRequired      = errors.New("требуется роль администратора")
)

// DefaultTokenTTL срок жизни access-токена по умолчанию.
const DefaultTokenTTL = 30 * time.Minute

var hashCost = bcrypt.DefaultCost

// RegisterInput данные для самостоятельной регистрации сотрудника.
type RegisterInput struct {
	Email    string
	FullName *string
	Password string
}

// Service отвечает за учётные записи сотрудников и токены.
type Service struct {
	users  domain.UserRepo
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewService создаёт сервис. Пустой секрет недопустим.
func NewService(users domain.UserRepo, secret string, ttl time.Duration, logger zerolog.Logger) (*Service, error) {
	if secret == "" {
		return nil, errors.New("auth: JWT secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		log:    logger.With().Str("component", "auth").Logger(),
	}, nil
}

// Register создаёт неактивного неподтверждённого сотрудника.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	return s.createUser(ctx, in, domain.UserRoleWorker)
}

func (s *Service) createUser(ctx context.Context, in RegisterInput, role domain.UserRole) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), hashCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("хеширование пароля: %w", err)
	}
	active, confirmed := domain.NewUserFlags(role)
	u, err := s.users.CreateUser(ctx, domain.User{
		Email:              normalizeEmail(in.Email),
		FullName:           in.FullName,
		HashedPassword:     string(hash),
		Role:               role,
		IsActive:           active,
		IsConfirmedByAdmin: confirmed,
		CreatedAt:          s.now().UTC(),
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info().Int64("user_id", u.ID).Str("role", string(role)).Msg("пользователь создан")
	return u, nil
}

// Authenticate проверяет пароль и допуск ко входу.
func (s *Service) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if u.AwaitsConfirmation() {
		return domain.User{}, ErrNotConfirmed
	}
	if !u.IsActive {
		return domain.User{}, ErrInactiveUser
	}
	return u, nil
}

// Login проверяет учётные данные и выдаёт токен.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	return s.IssueToken(u)
}

// ResolveToken проверяет подпись и срок токена и возвращает текущую
// версию пользователя из хранилища.
func (s *Service) ResolveToken(ctx context.Context, raw string) (domain.User, error) {
	claims, err := s.parseToken(raw)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.users.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return domain.User{}, err
	}
	return u, nil
}

// RequireActive пропускает только активных и подтверждённых пользователей.
func (s *Service) RequireActive(u domain.User) error {
	if !u.IsActive {
		return ErrInactiveUser
	}
	if u.AwaitsConfirmation() {
		return ErrNotConfirmed
	}
	return nil
}

// RequireAdmin дополнительно требует роль администратора.
func (s *Service) RequireAdmin(u domain.User) error {
	if err := s.RequireActive(u); err != nil {
		return err
	}
	if !u.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	skip, limit = clampPage(skip, limit)
	return s.users.ListUsers(ctx, skip, limit)
}

// ListUnconfirmedWorkers возвращает сотрудников, ожидающих подтверждения.
func (s *Service) ListUnconfirmedWorkers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	skip, limit = clampPage(skip, limit)
	return s.users.ListUnconfirmedWorkers(ctx, skip, limit)
}

// ConfirmWorker активирует сотрудника. Для не-сотрудников возвращает domain.ErrNotFound.
func (s *Service) ConfirmWorker(ctx context.Context, id int64) (domain.User, error) {
	u, err := s.users.ConfirmWorker(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info().Int64("user_id", id).Msg("сотрудник подтверждён")
	return u, nil
}

// EnsureFirstAdmin создаёт администратора, если пользователя с таким email
// ещё нет. Существующий не-администратор только логируется.
func (s *Service) EnsureFirstAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	existing, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			s.log.Warn().Str("email", existing.Email).Msg("пользователь первого администратора существует, но не является администратором")
		}
		return false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return false, err
	}
	name := "Default Admin"
	if _, err := s.createUser(ctx, RegisterInput{Email: email, FullName: &name, Password: password}, domain.UserRoleAdmin); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return skip, limit
}
