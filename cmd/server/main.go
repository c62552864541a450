package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"podforge/internal/config"
	"podforge/internal/db"
	"podforge/internal/handlers"
	"podforge/internal/middleware"
	"podforge/internal/resolver"
	"podforge/internal/store"
)

// newRouter wires the HTTP surface. Podcast registration and the feed
// and media routes are public; everything else under /api requires a
// bearer token.
func newRouter(h *handlers.Handlers, limiter *middleware.RateLimiterMiddleware) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/rss/{uuid}", h.GetRSSFeed).Methods(http.MethodGet)
	r.HandleFunc("/media/{filename:.+}", h.ServeMediaFile).Methods(http.MethodGet)
	r.HandleFunc("/ops/status", h.GetOpsStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/podcasts", h.PostPodcast).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware)
	api.Use(limiter.Middleware)
	api.HandleFunc("/podcasts/{id}/episodes", h.PostEpisode).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}", h.GetEpisode).Methods(http.MethodGet)
	api.HandleFunc("/episodes/{id}", h.PatchEpisode).Methods(http.MethodPatch)
	api.HandleFunc("/episodes/{id}/assembly", h.PostAssembly).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/playback/{kind}", h.GetPlayback).Methods(http.MethodGet)
	return r
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db.InitDB()

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	st, local, err := store.NewFromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("could not set up artifact store: %v", err)
	}

	h := handlers.New(client, resolver.New(st), local, cfg.BaseURL)
	limiter := middleware.NewRateLimiterMiddleware(rate.Limit(5), 10)
	r := newRouter(h, limiter)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
