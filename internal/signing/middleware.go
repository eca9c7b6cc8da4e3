package signing

import (
	"log/slog"
	"net/http"
)

// Middleware rejects requests without a valid token with 403 and stores the
// verified claims in the request context.
func Middleware(s *Signer, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.Verify(r)
			if err != nil {
				logger.DebugContext(r.Context(), "rejected signed request",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}
