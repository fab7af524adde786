package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Telemetry wraps handlers with otelhttp, which records request duration,
// active requests and body sizes under the given operation name.
func Telemetry(operation string) func(http.Handler) http.Handler {
	return otelhttp.NewMiddleware(operation)
}
