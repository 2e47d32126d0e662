package domain

import (
	"fmt"
	"strings"
)

// UserRole описывает роль сотрудника.
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleWorker UserRole = "worker"
)

// ParseUserRole переводит строку в роль.
func ParseUserRole(raw string) (UserRole, error) {
	switch role := UserRole(strings.ToLower(strings.TrimSpace(raw))); role {
	case UserRoleAdmin, UserRoleWorker:
		return role, nil
	}
	return "", fmt.Errorf("неизвестная роль %q", raw)
}

// NewUserFlags возвращает флаги активности для только что созданного пользователя:
// администратор сразу активен и подтверждён, сотрудник ждёт подтверждения.
func NewUserFlags(role UserRole) (active, confirmed bool) {
	if role == UserRoleAdmin {
		return true, true
	}
	return false, false
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// AwaitsConfirmation сообщает, что сотрудник ещё не подтверждён администратором.
func (u User) AwaitsConfirmation() bool {
	return u.Role == UserRoleWorker && !u.IsConfirmedByAdmin
}

// CanAuthenticate сообщает, может ли пользователь получить токен.
func (u User) CanAuthenticate() bool {
	return u.IsActive && !u.AwaitsConfirmation()
}
