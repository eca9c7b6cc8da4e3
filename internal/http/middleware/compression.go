package middleware

import (
	"net/http"
	"strings"
)

// mediaPrefixes are routes whose bodies are audio, video or archives. They
// are never compressed: compression breaks byte ranges and delays flushes.
var mediaPrefixes = []string{"/stream", "/hls", "/download", "/ext/"}

// SkipCompressionForMedia wraps a compression middleware so that it only
// applies to API and documentation responses.
func SkipCompressionForMedia(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressed := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsMediaPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			compressed.ServeHTTP(w, r)
		})
	}
}

// IsMediaPath reports whether path is served by a media route.
func IsMediaPath(path string) bool {
	for _, p := range mediaPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
