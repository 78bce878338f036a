package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// parseAllowedOrigins turns a comma-separated origin list into a set.
func parseAllowedOrigins(list string) map[string]struct{} {
	origins := make(map[string]struct{})
	for o := range strings.SplitSeq(list, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

// isLocalhostOrigin returns true if the origin is http(s)://localhost with an optional port.
func isLocalhostOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "https://localhost"} {
		rest, ok := strings.CutPrefix(origin, prefix)
		if ok && (rest == "" || strings.HasPrefix(rest, ":")) {
			return true
		}
	}
	return false
}

// isOriginAllowed checks whether a request origin should receive CORS headers.
func isOriginAllowed(origin string, allowed map[string]struct{}) bool {
	if origin == "" {
		return false
	}
	// Always allow localhost for development.
	if isLocalhostOrigin(origin) {
		return true
	}
	_, ok := allowed[origin]
	return ok
}

// CORS returns middleware that handles CORS headers with an origin whitelist.
// allowedOrigins is a comma-separated list (WEB_ALLOWED_ORIGINS).
// Localhost origins are always permitted for development convenience.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	allowed := parseAllowedOrigins(allowedOrigins)

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return isOriginAllowed(origin, allowed)
		},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         86400,
	})
}

// SecurityHeaders returns middleware that sets headers appropriate for a JSON-only API.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	}
}
