package middleware

import (
	"context"
	"net/http"
	"strings"

	"atmbank/internal/session"
)

type contextKey string

const (
	accountIDKey contextKey = "account_id"
	adminIDKey   contextKey = "admin_id"
)

func AccountIDFromContext(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(accountIDKey).(string)
	return accountID, ok
}

func AdminIDFromContext(ctx context.Context) (string, bool) {
	adminID, ok := ctx.Value(adminIDKey).(string)
	return adminID, ok
}

// Sessions is the slice of the session store the middleware needs.
type Sessions interface {
	Validate(token string, kind session.Kind) (string, bool)
}

// Auth resolves the bearer token against the USER session namespace.
// Expired and unknown tokens look identical to the client.
func Auth(sessions Sessions) func(http.Handler) http.Handler {
	return requireSession(sessions, session.KindUser, accountIDKey)
}

// AdminAuth resolves the bearer token against the ADMIN namespace.
func AdminAuth(sessions Sessions) func(http.Handler) http.Handler {
	return requireSession(sessions, session.KindAdmin, adminIDKey)
}

func requireSession(sessions Sessions, kind session.Kind, key contextKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			subjectID, ok := sessions.Validate(token, kind)
			if !ok {
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), key, subjectID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// BearerToken exposes the raw token for handlers that need it, logout
// in particular.
func BearerToken(r *http.Request) (string, bool) {
	return bearerToken(r)
}
