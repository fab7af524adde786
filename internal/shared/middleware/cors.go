package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows cross-origin requests from the configured hosts. With no hosts
// configured every origin is allowed without credentials.
func CORS(allowedHosts []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         3600,
	}

	if len(allowedHosts) == 0 {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowCredentials = true
		opts.AllowOriginFunc = func(_ *http.Request, origin string) bool {
			return isOriginAllowed(origin, allowedHosts)
		}
	}

	return cors.Handler(opts)
}

// isOriginAllowed compares the origin's host against the allowed hosts. A
// host without a port matches any port.
func isOriginAllowed(origin string, allowedHosts []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	host := strings.ToLower(u.Host)
	hostname := strings.ToLower(u.Hostname())

	for _, allowed := range allowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == host || allowed == hostname {
			return true
		}
	}
	return false
}
