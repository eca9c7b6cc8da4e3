package middleware

import (
	"net/http"

	"github.com/jmylchreest/soundrelay/internal/streaming"
)

// UnescapeQuery rewrites "&amp;" separators left by HTML-escaped playlist
// links. It must run before signature verification.
func UnescapeQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := streaming.UnescapeQuery(r.URL.RawQuery); raw != r.URL.RawQuery {
			r2 := r.Clone(r.Context())
			r2.URL.RawQuery = raw
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}
