package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/testutil"
)

func Test_AdminHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	adminSession := func(t *testing.T, deps serverDeps) (models.User, string) {
		t.Helper()
		u, err := deps.users.Create(t.Context(), "admin@example.com", "StrongEnoughPassword", true)
		require.NoError(t, err)
		pair, err := deps.auth.IssueSession(t.Context(), u)
		require.NoError(t, err)
		return u, pair.Access.Value
	}

	t.Run("admin routes closed for regular users", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)

			u, err := deps.auth.Register(t.Context(), "regular@example.com", "StrongEnoughPassword")
			require.NoError(t, err)
			pair, err := deps.auth.IssueSession(t.Context(), u)
			require.NoError(t, err)

			resp, body := doJSON(t, "GET", url+"/admin/users", pair.Access.Value, "")

			require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Admin access required"
				}`, body)
		})
	})

	t.Run("list users pages", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := adminSession(t, deps)

			for _, email := range []string{"u1@example.com", "u2@example.com"} {
				_, err := deps.auth.Register(t.Context(), email, "StrongEnoughPassword")
				require.NoError(t, err)
			}

			resp, body := doJSON(t, "GET", url+"/admin/users?page=1&limit=2", token, "")

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var res UserListResponse
			require.NoError(t, json.Unmarshal([]byte(body), &res))
			require.Equal(t, int64(3), res.Total, "admin included")
			require.Len(t, res.Items, 2)
			require.Equal(t, 1, res.Page)
			require.Equal(t, 2, res.Limit)
		})
	})

	t.Run("create user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := adminSession(t, deps)

			data := `{"email": "made@example.com", "password": "StrongEnoughPassword", "is_admin": true}`
			resp, body := doJSON(t, "POST", url+"/admin/users", token, data)

			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			var res UserResponse
			require.NoError(t, json.Unmarshal([]byte(body), &res))
			require.Equal(t, "made@example.com", res.Email)
			require.True(t, res.IsAdmin)

			// Duplicate email conflicts
			resp, body = doJSON(t, "POST", url+"/admin/users", token, data)
			require.Equalf(t, http.StatusConflict, resp.StatusCode, "not expected code. Body: %s", body)
		})
	})

	t.Run("deactivate and promote user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := adminSession(t, deps)

			target, err := deps.auth.Register(t.Context(), "target@example.com", "StrongEnoughPassword")
			require.NoError(t, err)

			data := `{"is_active": false, "is_admin": true}`
			resp, body := doJSON(t, "PATCH", url+"/admin/users/"+target.ID.String(), token, data)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var res UserResponse
			require.NoError(t, json.Unmarshal([]byte(body), &res))
			require.False(t, res.IsActive)
			require.True(t, res.IsAdmin)

			// The deactivated user cannot log in anymore
			login := `{"email": "target@example.com", "password": "StrongEnoughPassword"}`
			resp, _ = doJSON(t, "POST", url+"/auth/login", "", login)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	})

	t.Run("self demotion is forbidden", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			admin, token := adminSession(t, deps)

			data := `{"is_admin": false}`
			resp, body := doJSON(t, "PATCH", url+"/admin/users/"+admin.ID.String(), token, data)

			require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Cannot remove your own admin privileges"
				}`, body)
		})
	})

	t.Run("update unknown user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := adminSession(t, deps)

			resp, _ := doJSON(t, "PATCH", url+"/admin/users/6e8bc430-9c3a-11d9-9669-0800200c9a66", token, `{"is_active": false}`)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)

			resp, _ = doJSON(t, "PATCH", url+"/admin/users/not-a-uuid", token, `{"is_active": false}`)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})

	t.Run("audit logs filtered by query", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			admin, token := adminSession(t, deps)

			seed := []models.AuditRecord{
				{RequestID: "r1", UserID: &admin.ID, Method: "GET", Path: "/auth/me", StatusCode: 200},
				{RequestID: "r2", UserID: &admin.ID, Method: "POST", Path: "/auth/login", StatusCode: 200},
				{RequestID: "r3", Method: "POST", Path: "/auth/login", StatusCode: 401},
			}
			for _, rec := range seed {
				_, err := deps.storage.Audit().Create(t.Context(), rec)
				require.NoError(t, err)
			}

			resp, body := doJSON(t, "GET", url+"/admin/audit-logs?method=POST", token, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var res AuditLogListResponse
			require.NoError(t, json.Unmarshal([]byte(body), &res))
			require.Equal(t, int64(2), res.Total)

			query := fmt.Sprintf("user_email=%s&path=login", "admin@")
			resp, body = doJSON(t, "GET", url+"/admin/audit-logs?"+query, token, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)

			require.NoError(t, json.Unmarshal([]byte(body), &res))
			require.Equal(t, int64(1), res.Total)
			require.Len(t, res.Items, 1)
			require.Equal(t, "r2", res.Items[0].RequestID)
		})
	})

	t.Run("audit logs bad date filter", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := adminSession(t, deps)

			resp, body := doJSON(t, "GET", url+"/admin/audit-logs?from=yesterday", token, "")

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, "RFC3339")
		})
	})
}
