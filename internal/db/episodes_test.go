package db

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podforge/internal/models"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}

	originalDB := DB
	DB = sqlx.NewDb(mockDb, "sqlmock")
	t.Cleanup(func() {
		DB = originalDB
		mockDb.Close()
	})
	return mock
}

var episodeTestColumns = []string{
	"id", "podcast_id", "title", "description", "status",
	"audio_local", "audio_durable", "audio_remote",
	"cover_local", "cover_durable", "cover_remote",
	"publish_at", "last_edited_at", "failure_reason",
	"audio_size_bytes", "duration_seconds",
	"lock_version", "created_at", "updated_at",
}

func episodeRow(id, status string, lockVersion int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(episodeTestColumns).
		AddRow(id, int64(1), "Title", "Desc", status,
			nil, nil, nil, nil, nil, nil,
			nil, now, nil, nil, nil,
			lockVersion, now, now)
}

func TestBeginProcessingClaimsDraft(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(`UPDATE episodes SET status = \$1, updated_at = NOW\(\), lock_version = lock_version \+ 1 WHERE id = \$2 AND status = \$3`).
		WithArgs(models.StatusProcessing, "ep-1", models.StatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := BeginProcessing("ep-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginProcessingRejectsNonDraft(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(`UPDATE episodes SET status = \$1, updated_at = NOW\(\)`).
		WithArgs(models.StatusProcessing, "ep-1", models.StatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM episodes WHERE id = \$1`).
		WithArgs("ep-1").
		WillReturnRows(episodeRow("ep-1", models.StatusProcessing, 2))

	err := BeginProcessing("ep-1")

	assert.ErrorIs(t, err, ErrAlreadyProcessing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginProcessingMissingEpisode(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(`UPDATE episodes SET status = \$1, updated_at = NOW\(\)`).
		WithArgs(models.StatusProcessing, "ep-gone", models.StatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM episodes WHERE id = \$1`).
		WithArgs("ep-gone").
		WillReturnError(sql.ErrNoRows)

	err := BeginProcessing("ep-gone")

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEpisodeBumpsLockVersion(t *testing.T) {
	mock := newMockDB(t)
	ep := models.Episode{ID: "ep-1", Status: models.StatusProcessed, LockVersion: 3}
	mock.ExpectExec(`UPDATE episodes SET status = \$1, audio_local = \$2`).
		WithArgs(ep.Status, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, "ep-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := UpdateEpisode(&ep)

	require.NoError(t, err)
	assert.Equal(t, int64(4), ep.LockVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEpisodeDetectsConcurrentWriter(t *testing.T) {
	mock := newMockDB(t)
	ep := models.Episode{ID: "ep-1", Status: models.StatusProcessed, LockVersion: 3}
	mock.ExpectExec(`UPDATE episodes SET status = \$1, audio_local = \$2`).
		WithArgs(ep.Status, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, "ep-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := UpdateEpisode(&ep)

	assert.ErrorIs(t, err, ErrStaleEpisode)
	assert.Equal(t, int64(3), ep.LockVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEpisodeMintsID(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO episodes \(id, podcast_id, title, description\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING`).
		WithArgs(sqlmock.AnyArg(), int64(42), "Title", "Desc").
		WillReturnRows(episodeRow("ep-new", models.StatusDraft, 1))

	ep, err := CreateEpisode(42, "Title", "Desc")

	require.NoError(t, err)
	assert.Equal(t, "ep-new", ep.ID)
	assert.Equal(t, models.StatusDraft, ep.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReclaimableBindsCutoffToBothTimestamps(t *testing.T) {
	mock := newMockDB(t)
	cutoff := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE status = \$1 AND \(audio_durable IS NOT NULL OR cover_durable IS NOT NULL\) AND publish_at < \$2 AND last_edited_at < \$2`).
		WithArgs(models.StatusPublished, cutoff).
		WillReturnRows(episodeRow("ep-old", models.StatusPublished, 5))

	episodes, err := ListReclaimable(cutoff)

	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "ep-old", episodes[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEpisodeMetadataKeepsUnsetFields(t *testing.T) {
	mock := newMockDB(t)
	title := "New title"
	mock.ExpectQuery(`UPDATE episodes SET title = COALESCE\(\$1, title\), description = COALESCE\(\$2, description\), last_edited_at = NOW\(\)`).
		WithArgs(&title, nil, "ep-1").
		WillReturnRows(episodeRow("ep-1", models.StatusDraft, 2))

	ep, err := UpdateEpisodeMetadata("ep-1", &title, nil)

	require.NoError(t, err)
	assert.Equal(t, "ep-1", ep.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
