package middleware

import (
	"context"
	"net/http"
	"strings"
)

type userKey struct{}

// User stores the requesting user in the context. The name is read from a
// trusted header set by a fronting proxy, falling back to defaultUser.
func User(header, defaultUser string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := defaultUser
			if header != "" {
				if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
					username = v
				}
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), username)))
		})
	}
}

// ContextWithUser returns a context carrying the requesting user.
func ContextWithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey{}, username)
}

// GetUser returns the requesting user from the context.
func GetUser(ctx context.Context) string {
	if u, ok := ctx.Value(userKey{}).(string); ok {
		return u
	}
	return ""
}
