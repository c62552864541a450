package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"podforge/internal/models"
)

// ErrAlreadyProcessing is returned when an assembly is requested for an
// episode that is not in draft. The draft->processing transition is a
// guarded single-row update, so concurrent submissions for the same
// episode cannot both win.
var ErrAlreadyProcessing = errors.New("episode is not in draft")

// ErrStaleEpisode is returned when an optimistic update lost the race
// against a concurrent writer. It is a serialization conflict: re-read
// the row and retry the mutation.
var ErrStaleEpisode = errors.New("episode was modified concurrently")

const episodeColumns = `id, podcast_id, title, description, status,
	audio_local, audio_durable, audio_remote,
	cover_local, cover_durable, cover_remote,
	publish_at, last_edited_at, failure_reason,
	audio_size_bytes, duration_seconds,
	lock_version, created_at, updated_at`

// CreateEpisode inserts a new draft episode for a podcast.
func CreateEpisode(podcastID int64, title, description string) (models.Episode, error) {
	episode := models.Episode{}
	query := `
		INSERT INTO episodes (id, podcast_id, title, description)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + episodeColumns
	err := DB.Get(&episode, query, uuid.NewString(), podcastID, title, description)
	return episode, err
}

// GetEpisode fetches one episode by id.
func GetEpisode(id string) (models.Episode, error) {
	episode := models.Episode{}
	err := DB.Get(&episode, `SELECT `+episodeColumns+` FROM episodes WHERE id = $1`, id)
	return episode, err
}

// BeginProcessing transitions an episode from draft to processing. The
// WHERE clause makes the transition single-writer: only one caller can
// move a given episode out of draft.
func BeginProcessing(id string) error {
	res, err := DB.Exec(`
		UPDATE episodes
		SET status = $1, updated_at = NOW(), lock_version = lock_version + 1
		WHERE id = $2 AND status = $3`,
		models.StatusProcessing, id, models.StatusDraft)
	if err != nil {
		return fmt.Errorf("begin processing: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("begin processing: %w", err)
	}
	if rows == 0 {
		if _, getErr := GetEpisode(id); getErr != nil {
			return getErr
		}
		return ErrAlreadyProcessing
	}
	return nil
}

// UpdateEpisode writes the lifecycle fields of an episode guarded by
// its lock version. A zero-row update means another writer got there
// first and the caller must re-read and retry.
func UpdateEpisode(ep *models.Episode) error {
	res, err := DB.Exec(`
		UPDATE episodes
		SET status = $1,
		    audio_local = $2, audio_durable = $3, audio_remote = $4,
		    cover_local = $5, cover_durable = $6, cover_remote = $7,
		    publish_at = $8, failure_reason = $9,
		    audio_size_bytes = $10, duration_seconds = $11,
		    lock_version = lock_version + 1, updated_at = NOW()
		WHERE id = $12 AND lock_version = $13`,
		ep.Status,
		ep.AudioLocal, ep.AudioDurable, ep.AudioRemote,
		ep.CoverLocal, ep.CoverDurable, ep.CoverRemote,
		ep.PublishAt, ep.FailureReason,
		ep.AudioSizeBytes, ep.DurationSeconds,
		ep.ID, ep.LockVersion)
	if err != nil {
		return fmt.Errorf("update episode %s: %w", ep.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update episode %s: %w", ep.ID, err)
	}
	if rows == 0 {
		return ErrStaleEpisode
	}
	ep.LockVersion++
	return nil
}

// UpdateEpisodeMetadata edits user-visible content and bumps
// last_edited_at, which extends the retention grace window.
func UpdateEpisodeMetadata(id string, title, description *string) (models.Episode, error) {
	episode := models.Episode{}
	query := `
		UPDATE episodes
		SET title = COALESCE($1, title),
		    description = COALESCE($2, description),
		    last_edited_at = NOW(), updated_at = NOW(),
		    lock_version = lock_version + 1
		WHERE id = $3
		RETURNING ` + episodeColumns
	err := DB.Get(&episode, query, title, description, id)
	return episode, err
}

// ListReclaimable returns published episodes that still hold a
// durable-temporary copy and whose publish and last-edit timestamps are
// both older than the cutoff.
func ListReclaimable(cutoff time.Time) ([]models.Episode, error) {
	var episodes []models.Episode
	query := `
		SELECT ` + episodeColumns + `
		FROM episodes
		WHERE status = $1
		  AND (audio_durable IS NOT NULL OR cover_durable IS NOT NULL)
		  AND publish_at < $2
		  AND last_edited_at < $2
		ORDER BY publish_at ASC`
	err := DB.Select(&episodes, query, models.StatusPublished, cutoff)
	return episodes, err
}

// ListProcessed returns episodes waiting for the publish workflow.
func ListProcessed() ([]models.Episode, error) {
	var episodes []models.Episode
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE status = $1 ORDER BY updated_at ASC`
	err := DB.Select(&episodes, query, models.StatusProcessed)
	return episodes, err
}

// ListStuckProcessing returns episodes that entered processing and have
// not been touched since the cutoff. These need an operator, not a
// retry.
func ListStuckProcessing(cutoff time.Time) ([]models.Episode, error) {
	var episodes []models.Episode
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC`
	err := DB.Select(&episodes, query, models.StatusProcessing, cutoff)
	return episodes, err
}

// ListPublishedByPodcast returns a podcast's published episodes, newest
// first, for the RSS feed.
func ListPublishedByPodcast(podcastID int64) ([]models.Episode, error) {
	var episodes []models.Episode
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE podcast_id = $1 AND status = $2 ORDER BY publish_at DESC`
	err := DB.Select(&episodes, query, podcastID, models.StatusPublished)
	return episodes, err
}
