package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"podforge/internal/db"
)

type contextKey string

// PodcastContextKey is the key for the authenticated podcast in the
// request context.
const PodcastContextKey = contextKey("podcast")

// AuthMiddleware resolves the bearer token to the podcast it manages.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "Authorization header format must be 'Bearer <token>'", http.StatusUnauthorized)
			return
		}

		pod, err := db.GetPodcastByAPIToken(parts[1])
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "Invalid API token", http.StatusUnauthorized)
				return
			}
			log.Printf("Auth: token lookup failed: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), PodcastContextKey, pod)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
