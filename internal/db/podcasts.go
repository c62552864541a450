package db

import (
	"log"

	"github.com/google/uuid"

	"podforge/internal/models"
)

// CreatePodcast registers a show and mints its API token and feed UUID.
func CreatePodcast(title, description, author string) (*models.Podcast, error) {
	query := `
		INSERT INTO podcasts (title, description, author, api_token, rss_uuid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, title, description, author, api_token, rss_uuid, created_at
	`
	podcast := &models.Podcast{}
	err := DB.Get(podcast, query, title, description, author, uuid.NewString(), uuid.NewString())
	if err != nil {
		log.Printf("Error creating podcast %q: %v", title, err)
		return nil, err
	}
	return podcast, nil
}

// GetPodcastByID fetches one podcast by id.
func GetPodcastByID(id int64) (models.Podcast, error) {
	podcast := models.Podcast{}
	err := DB.Get(&podcast, "SELECT * FROM podcasts WHERE id = $1", id)
	return podcast, err
}

// GetPodcastByAPIToken resolves the bearer token used on the
// management surface.
func GetPodcastByAPIToken(token string) (*models.Podcast, error) {
	podcast := &models.Podcast{}
	err := DB.Get(podcast, "SELECT * FROM podcasts WHERE api_token = $1", token)
	if err != nil {
		return nil, err
	}
	return podcast, nil
}

// GetPodcastByRSSUUID resolves the feed path segment.
func GetPodcastByRSSUUID(rssUUID string) (*models.Podcast, error) {
	podcast := &models.Podcast{}
	err := DB.Get(podcast, "SELECT * FROM podcasts WHERE rss_uuid = $1", rssUUID)
	if err != nil {
		return nil, err
	}
	return podcast, nil
}
