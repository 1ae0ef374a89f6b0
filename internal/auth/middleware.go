package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

type userKey struct{}
type tokenKey struct{}

// UserFromContext returns the user resolved by RequireAuth.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userKey{}).(User)
	return user, ok
}

// TokenFromContext returns the raw bearer token RequireAuth verified,
// so downstream handlers (logout) can act on the exact token presented.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok
}

// RequireAuth verifies the bearer token and attaches the resolved user
// to the request context. Any failure short-circuits with 401; the
// downstream handler is never reached.
func RequireAuth(svc *Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		user, err := svc.CurrentUser(r.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				sentry.CaptureException(err)
				writeError(w, http.StatusInternalServerError, "failed to authenticate request")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		ctx = context.WithValue(ctx, tokenKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin composes RequireAuth and then checks the role, so a
// request with no valid identity always gets the 401 signal and only a
// known non-admin identity gets 403.
func RequireAdmin(svc *Service, next http.Handler) http.Handler {
	return RequireAuth(svc, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || user.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}

		next.ServeHTTP(w, r)
	}))
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
