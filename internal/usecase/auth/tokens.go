package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kopuro/internal/domain"
)

// Claims содержимое access-токена.
type Claims struct {
	Role               domain.UserRole `json:"role"`
	IsActive           bool            `json:"is_active"`
	IsConfirmedByAdmin bool            `json:"is_confirmed_by_admin"`
	jwt.RegisteredClaims
}

// Token ответ на успешный вход.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

// IssueToken подписывает HS256-токен для пользователя.
func (s *Service) IssueToken(u domain.User) (Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Role:               u.Role,
		IsActive:           u.IsActive,
		IsConfirmedByAdmin: u.IsConfirmedByAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("подпись токена: %w", err)
	}
	return Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp}, nil
}

func (s *Service) parseToken(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return claims, nil
}

// IsAuthError сообщает, что ошибка означает отказ в аутентификации (401).
func IsAuthError(err error) bool {
	return errors.Is(err, domain.ErrUnauthenticated)
}
