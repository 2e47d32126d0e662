package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

const userColumns = `id, email, full_name, hashed_password, role, is_active, is_confirmed_by_admin, created_at`

// CreateUser сохраняет пользователя. Занятый email даёт domain.ErrEmailTaken.
func (p *Postgres) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO users (email, full_name, hashed_password, role, is_active, is_confirmed_by_admin)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+userColumns,
		u.Email, u.FullName, u.HashedPassword, string(u.Role), u.IsActive, u.IsConfirmedByAdmin,
	)
	saved, err := scanUser(row)
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}
	return saved, nil
}

// GetUserByEmail реализует domain.UserRepo.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	metrics.ObserveNetworkRequest("postgres", "users_get_by_email", "users", start, err)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

// GetUserByID реализует domain.UserRepo.
func (p *Postgres) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	metrics.ObserveNetworkRequest("postgres", "users_get_by_id", "users", start, err)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

// ListUsers реализует domain.UserRepo.
func (p *Postgres) ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	return p.listUsers(ctx, "users_list", `SELECT `+userColumns+` FROM users ORDER BY id OFFSET $1 LIMIT $2`, skip, limit)
}

// ListUnconfirmedWorkers возвращает сотрудников, ждущих подтверждения.
func (p *Postgres) ListUnconfirmedWorkers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	return p.listUsers(ctx, "users_list_unconfirmed", `
SELECT `+userColumns+`
FROM users
WHERE role = 'worker' AND NOT is_confirmed_by_admin
ORDER BY id
OFFSET $1 LIMIT $2`, skip, limit)
}

func (p *Postgres) listUsers(ctx context.Context, op, query string, skip, limit int) ([]domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, skip, limit)
	metrics.ObserveNetworkRequest("postgres", op, "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ConfirmWorker активирует сотрудника. Администратор или отсутствующий id
// дают domain.ErrNotFound.
func (p *Postgres) ConfirmWorker(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	u, err := scanUser(p.pool.QueryRow(ctx, `
UPDATE users SET is_active = TRUE, is_confirmed_by_admin = TRUE
WHERE id = $1 AND role = 'worker'
RETURNING `+userColumns, id))
	metrics.ObserveNetworkRequest("postgres", "users_confirm", "users", start, err)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &role, &u.IsActive, &u.IsConfirmedByAdmin, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.UserRole(role)
	return u, nil
}
