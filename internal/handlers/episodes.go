package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"

	"podforge/internal/db"
	"podforge/internal/middleware"
	"podforge/internal/models"
	"podforge/internal/resolver"
	"podforge/pkg/tasks"
)

// assembleTaskUniqueTTL bounds how long a queued assembly task blocks a
// duplicate submission with the same input.
const assembleTaskUniqueTTL = time.Hour

type episodePointers struct {
	Local   *string `json:"local,omitempty"`
	Durable *string `json:"durable,omitempty"`
	Remote  *string `json:"remote,omitempty"`
}

type episodeResponse struct {
	ID              string          `json:"id"`
	PodcastID       int64           `json:"podcast_id"`
	Title           *string         `json:"title"`
	Description     *string         `json:"description"`
	Status          string          `json:"status"`
	PublishAt       *time.Time      `json:"publish_at,omitempty"`
	LastEditedAt    time.Time       `json:"last_edited_at"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	DurationSeconds *int64          `json:"duration_seconds,omitempty"`
	Audio           episodePointers `json:"audio"`
	Cover           episodePointers `json:"cover"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func episodeView(ep *models.Episode) episodeResponse {
	return episodeResponse{
		ID:              ep.ID,
		PodcastID:       ep.PodcastID,
		Title:           ep.Title,
		Description:     ep.Description,
		Status:          ep.Status,
		PublishAt:       ep.PublishAt,
		LastEditedAt:    ep.LastEditedAt,
		FailureReason:   ep.FailureReason,
		DurationSeconds: ep.DurationSeconds,
		Audio:           episodePointers{Local: ep.AudioLocal, Durable: ep.AudioDurable, Remote: ep.AudioRemote},
		Cover:           episodePointers{Local: ep.CoverLocal, Durable: ep.CoverDurable, Remote: ep.CoverRemote},
		CreatedAt:       ep.CreatedAt,
		UpdatedAt:       ep.UpdatedAt,
	}
}

// loadOwnedEpisode fetches the episode from the path and verifies it
// belongs to the authenticated podcast. Foreign episodes 404 rather
// than 403 so ids are not probeable.
func (h *Handlers) loadOwnedEpisode(w http.ResponseWriter, r *http.Request) (*models.Episode, bool) {
	pod := r.Context().Value(middleware.PodcastContextKey).(*models.Podcast)
	id := mux.Vars(r)["id"]

	episode, err := db.GetEpisode(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "episode not found")
			return nil, false
		}
		log.Printf("Error getting episode %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if episode.PodcastID != pod.ID {
		writeError(w, http.StatusNotFound, "episode not found")
		return nil, false
	}
	return &episode, true
}

type createEpisodeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *Handlers) PostEpisode(w http.ResponseWriter, r *http.Request) {
	pod := r.Context().Value(middleware.PodcastContextKey).(*models.Podcast)

	podcastID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid podcast ID")
		return
	}
	if podcastID != pod.ID {
		writeError(w, http.StatusNotFound, "podcast not found")
		return
	}

	var req createEpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	episode, err := db.CreateEpisode(pod.ID, req.Title, req.Description)
	if err != nil {
		log.Printf("Error creating episode: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, episodeView(&episode))
}

func (h *Handlers) GetEpisode(w http.ResponseWriter, r *http.Request) {
	episode, ok := h.loadOwnedEpisode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, episodeView(episode))
}

type updateEpisodeRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// PatchEpisode edits user-visible metadata. The edit bumps
// last_edited_at, which extends the retention grace window.
func (h *Handlers) PatchEpisode(w http.ResponseWriter, r *http.Request) {
	episode, ok := h.loadOwnedEpisode(w, r)
	if !ok {
		return
	}

	var req updateEpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == nil && req.Description == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	updated, err := db.UpdateEpisodeMetadata(episode.ID, req.Title, req.Description)
	if err != nil {
		log.Printf("Error updating episode %s: %v", episode.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, episodeView(&updated))
}

// PostAssembly submits an episode for assembly. Anything not in draft
// is rejected: the draft->processing transition is single-writer and a
// second assembly of the same episode must never run.
func (h *Handlers) PostAssembly(w http.ResponseWriter, r *http.Request) {
	episode, ok := h.loadOwnedEpisode(w, r)
	if !ok {
		return
	}
	if episode.Status != models.StatusDraft {
		writeError(w, http.StatusConflict, "episode is not in draft")
		return
	}

	input, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(input) == 0 {
		input = []byte("{}")
	}
	if !json.Valid(input) {
		writeError(w, http.StatusBadRequest, "input must be JSON")
		return
	}

	task, err := tasks.NewAssembleEpisodeTask(episode.ID, input)
	if err != nil {
		log.Printf("Error creating assembly task for episode %s: %v", episode.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	info, err := h.asynqClient.Enqueue(task, asynq.Queue(tasks.QueueAssembly), asynq.Unique(assembleTaskUniqueTTL))
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			writeError(w, http.StatusConflict, "assembly is already queued")
			return
		}
		log.Printf("Error enqueuing assembly for episode %s: %v", episode.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": info.ID,
		"status": "queued",
	})
}

// GetPlayback resolves the single best reachable URL for one artifact.
// When nothing resolves the client renders "no media available", never
// a synthesized link.
func (h *Handlers) GetPlayback(w http.ResponseWriter, r *http.Request) {
	episode, ok := h.loadOwnedEpisode(w, r)
	if !ok {
		return
	}
	kind := mux.Vars(r)["kind"]
	if kind != models.KindAudio && kind != models.KindCover {
		writeError(w, http.StatusBadRequest, "kind must be audio or cover")
		return
	}

	url, err := h.resolver.Resolve(r.Context(), episode, kind)
	if err != nil {
		if errors.Is(err, resolver.ErrUnavailable) {
			writeError(w, http.StatusNotFound, "no media available")
			return
		}
		log.Printf("Error resolving %s playback for episode %s: %v", kind, episode.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"kind": kind, "url": url})
}
