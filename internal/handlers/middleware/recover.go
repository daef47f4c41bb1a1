package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/handlers/userctx"
)

type errorLogger interface {
	Error(msg string, args ...any)
}

// Recover turns handler panics into the uniform 500 answer. The panic value
// and stack go to the log keyed by request id, never to the client.
func Recover(l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					requestID := userctx.RequestID(r.Context())
					l.Error(
						"panic while serving request",
						"panic", rec,
						"method", r.Method,
						"uri", r.RequestURI,
						"request_id", requestID,
						"stack", string(debug.Stack()),
					)
					render.InternalError(w, requestID)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
