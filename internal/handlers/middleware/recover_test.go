package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/handlers/userctx"
)

type errorLoggerFunc func(string, ...any)

func (f errorLoggerFunc) Error(msg string, v ...any) { f(msg, v...) }

func Test_RecoverMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("panic becomes uniform 500", func(t *testing.T) {
		var logged string
		l := errorLoggerFunc(func(msg string, v ...any) { logged = msg })

		panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
		handler := Recover(l)(panicky)

		req := httptest.NewRequest("GET", "/auth/me", nil)
		req = req.WithContext(userctx.NewWithRequestID(req.Context(), "req-1"))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "Internal server error",
				"request_id": "req-1"
			}`, rec.Body.String())
		require.Equal(t, "panic while serving request", logged)
	})

	t.Run("healthy handler untouched", func(t *testing.T) {
		var logged string
		l := errorLoggerFunc(func(msg string, v ...any) { logged = msg })

		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		handler := Recover(l)(ok)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Empty(t, logged, "nothing should be logged without a panic")
	})
}
