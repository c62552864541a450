package middleware

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"podforge/internal/models"
	"podforge/internal/test"
)

func TestAuthMiddleware(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		_, mock := test.NewMockDB(t)
		pod := models.Podcast{ID: 1, Title: "Test Podcast", APIToken: "token-abc", RSSUUID: "feed-uuid", CreatedAt: time.Now()}
		mock.ExpectQuery(`SELECT \* FROM podcasts WHERE api_token = \$1`).
			WithArgs("token-abc").
			WillReturnRows(test.PodcastRows(pod))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer token-abc")
		rr := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxPod, ok := r.Context().Value(PodcastContextKey).(*models.Podcast)
			assert.True(t, ok)
			assert.Equal(t, int64(1), ctxPod.ID)
			w.WriteHeader(http.StatusOK)
		})
		AuthMiddleware(next).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no authorization header", func(t *testing.T) {
		test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		AuthMiddleware(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid authorization header format", func(t *testing.T) {
		test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "token-abc")
		rr := httptest.NewRecorder()
		AuthMiddleware(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Bearer <token>")
	})

	t.Run("unknown token", func(t *testing.T) {
		_, mock := test.NewMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM podcasts WHERE api_token = \$1`).
			WithArgs("bogus").
			WillReturnError(sql.ErrNoRows)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rr := httptest.NewRecorder()
		AuthMiddleware(nil).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid API token")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup failure", func(t *testing.T) {
		_, mock := test.NewMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM podcasts WHERE api_token = \$1`).
			WithArgs("token-abc").
			WillReturnError(errors.New("connection refused"))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer token-abc")
		rr := httptest.NewRecorder()
		AuthMiddleware(nil).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
