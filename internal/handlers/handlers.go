package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"podforge/internal/db"
	"podforge/internal/resolver"
	"podforge/internal/store"
	"podforge/pkg/tasks"
)

type Handlers struct {
	asynqClient tasks.TaskEnqueuer
	resolver    *resolver.Resolver
	local       *store.LocalBackend
	baseURL     string
}

func New(asynqClient tasks.TaskEnqueuer, res *resolver.Resolver, local *store.LocalBackend, baseURL string) *Handlers {
	return &Handlers{
		asynqClient: asynqClient,
		resolver:    res,
		local:       local,
		baseURL:     baseURL,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type createPodcastRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

// PostPodcast registers a show. The API token in the response is shown
// exactly once; callers must store it.
func (h *Handlers) PostPodcast(w http.ResponseWriter, r *http.Request) {
	var req createPodcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	podcast, err := db.CreatePodcast(req.Title, req.Description, req.Author)
	if err != nil {
		log.Printf("Error creating podcast: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, podcast)
}

// GetOpsStatus reports the last run of each scheduled job.
func (h *Handlers) GetOpsStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := db.ListJobRuns()
	if err != nil {
		log.Printf("Error listing job runs: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_runs": runs})
}
