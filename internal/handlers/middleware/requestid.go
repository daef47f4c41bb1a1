package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/handlers/userctx"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with a correlation id: the client's own when
// provided, a fresh uuid otherwise. The id is stored in the context and
// echoed back in the response header.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, id)
			ctx := userctx.NewWithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
