package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"kopuro/internal/domain"
)

type userCtxKey struct{}

// TokenResolver проверяет токен и возвращает пользователя-владельца.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (domain.User, error)
}

// BearerAuthMiddleware проверяет заголовок Authorization: Bearer <token>
// и кладёт пользователя в контекст запроса.
func BearerAuthMiddleware(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "Not authenticated")
				return
			}
			user, err := resolver.ResolveToken(r.Context(), token)
			switch {
			case errors.Is(err, domain.ErrUnauthenticated):
				unauthorized(w, "Could not validate credentials")
				return
			case err != nil:
				WriteError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// UserFromContext возвращает пользователя, положенного BearerAuthMiddleware.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(domain.User)
	return user, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, detail)
}
