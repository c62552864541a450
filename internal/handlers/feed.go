package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"podforge/internal/db"
	"podforge/internal/feed"
)

func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	podcast, err := db.GetPodcastByRSSUUID(vars["uuid"])
	if err != nil {
		http.Error(w, "Podcast not found", http.StatusNotFound)
		return
	}

	episodes, err := db.ListPublishedByPodcast(podcast.ID)
	if err != nil {
		log.Printf("Error getting episodes: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(r.Context(), podcast, episodes, h.resolver, feed.BaseURL(r, h.baseURL))
	if err != nil {
		log.Printf("Error generating RSS: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

// ServeMediaFile serves ephemeral-local artifacts. Locators are
// validated against path traversal before hitting the filesystem.
func (h *Handlers) ServeMediaFile(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	filePath, err := h.local.FilePath(filename)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, filePath)
}
