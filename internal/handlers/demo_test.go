package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/testutil"
)

func Test_DemoHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Register a user and open a session, returns the bearer token
	session := func(t *testing.T, deps serverDeps, email string) (models.User, string) {
		t.Helper()
		u, err := deps.auth.Register(t.Context(), email, "StrongEnoughPassword")
		require.NoError(t, err)
		pair, err := deps.auth.IssueSession(t.Context(), u)
		require.NoError(t, err)
		return u, pair.Access.Value
	}

	t.Run("create and list", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := session(t, deps, "nk@example.com")

			data := `{"title": "My item", "description": "something"}`
			resp, body := doJSON(t, "POST", url+"/demo/items", token, data)

			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			var created ItemResponse
			require.NoError(t, json.Unmarshal([]byte(body), &created))
			require.Equal(t, "My item", created.Title)
			require.NotNil(t, created.Description)

			resp, body = doJSON(t, "GET", url+"/demo/items", token, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var items []ItemResponse
			require.NoError(t, json.Unmarshal([]byte(body), &items))
			require.Len(t, items, 1)
			require.Equal(t, created.ID, items[0].ID)
		})
	})

	t.Run("create without title fails validation", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := session(t, deps, "nk@example.com")

			resp, body := doJSON(t, "POST", url+"/demo/items", token, `{"description": "no title"}`)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, "title")
		})
	})

	t.Run("get update delete own item", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := session(t, deps, "nk@example.com")

			_, body := doJSON(t, "POST", url+"/demo/items", token, `{"title": "Before"}`)
			var created ItemResponse
			require.NoError(t, json.Unmarshal([]byte(body), &created))

			resp, body := doJSON(t, "GET", url+"/demo/items/"+created.ID.String(), token, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "PUT", url+"/demo/items/"+created.ID.String(), token, `{"title": "After"}`)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var updated ItemResponse
			require.NoError(t, json.Unmarshal([]byte(body), &updated))
			require.Equal(t, "After", updated.Title)
			require.NotNil(t, updated.UpdatedAt)

			resp, _ = doJSON(t, "DELETE", url+"/demo/items/"+created.ID.String(), token, "")
			require.Equal(t, http.StatusNoContent, resp.StatusCode)

			resp, _ = doJSON(t, "GET", url+"/demo/items/"+created.ID.String(), token, "")
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	})

	t.Run("foreign item is forbidden", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, ownerToken := session(t, deps, "owner@example.com")
			_, strangerToken := session(t, deps, "stranger@example.com")

			_, body := doJSON(t, "POST", url+"/demo/items", ownerToken, `{"title": "Private"}`)
			var created ItemResponse
			require.NoError(t, json.Unmarshal([]byte(body), &created))

			resp, body := doJSON(t, "GET", url+"/demo/items/"+created.ID.String(), strangerToken, "")
			require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Not authorized to access this item"
				}`, body)

			resp, _ = doJSON(t, "DELETE", url+"/demo/items/"+created.ID.String(), strangerToken, "")
			require.Equal(t, http.StatusForbidden, resp.StatusCode)

			// The owner still sees it untouched
			resp, _ = doJSON(t, "GET", url+"/demo/items/"+created.ID.String(), ownerToken, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	})

	t.Run("missing item not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := session(t, deps, "nk@example.com")

			resp, body := doJSON(t, "GET", url+"/demo/items/"+uuid.NewString(), token, "")

			require.Equalf(t, http.StatusNotFound, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Item not found"
				}`, body)
		})
	})

	t.Run("malformed item id", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			url, deps := startTestServer(t, tx)
			_, token := session(t, deps, "nk@example.com")

			resp, _ := doJSON(t, "GET", url+"/demo/items/not-a-uuid", token, "")

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})
}
