package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/handlers/userctx"
)

func Test_RequestIDMiddleware(t *testing.T) {
	t.Parallel()

	var seenID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = userctx.RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("generates id when missing", func(t *testing.T) {
		srv := httptest.NewServer(RequestID()(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		headerID := resp.Header.Get("X-Request-Id")
		require.NotEmpty(t, headerID, "response should carry the generated id")
		_, err = uuid.Parse(headerID)
		assert.NoError(t, err, "generated id should be a uuid")
		assert.Equal(t, headerID, seenID, "handler should see the same id")
	})

	t.Run("keeps client provided id", func(t *testing.T) {
		srv := httptest.NewServer(RequestID()(handler))
		defer srv.Close()

		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		req.Header.Set("X-Request-Id", "client-id-123")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		assert.Equal(t, "client-id-123", resp.Header.Get("X-Request-Id"))
		assert.Equal(t, "client-id-123", seenID)
	})
}
