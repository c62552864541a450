package test

import (
	"bytes"
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"podforge/internal/db"
	"podforge/internal/models"
	"podforge/internal/store"
)

// MockTaskEnqueuer is a mock implementation of tasks.TaskEnqueuer.
// Set Err to exercise enqueue failure paths.
type MockTaskEnqueuer struct {
	EnqueuedTasks []*asynq.Task
	Err           error
}

func (m *MockTaskEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.EnqueuedTasks = append(m.EnqueuedTasks, task)
	return &asynq.TaskInfo{ID: "test-task-id", Queue: "default"}, nil
}

// NewMockDB swaps the package-global database handle for a sqlmock one
// for the duration of the test.
func NewMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	sqlxDB := sqlx.NewDb(mockDb, "sqlmock")

	originalDB := db.DB
	db.DB = sqlxDB
	t.Cleanup(func() {
		db.DB = originalDB
		mockDb.Close()
	})

	return sqlxDB, mock
}

// RecordingNotifier captures notifications for assertions.
type RecordingNotifier struct {
	mu     sync.Mutex
	Events []NotifyEvent
}

type NotifyEvent struct {
	EpisodeID string
	Outcome   string
}

func (n *RecordingNotifier) Notify(ctx context.Context, episodeID, outcome string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, NotifyEvent{EpisodeID: episodeID, Outcome: outcome})
}

// MemBackend is an in-memory store.Backend. Error fields inject
// failures; Deleted records every delete call, including repeats.
type MemBackend struct {
	mu      sync.Mutex
	Objects map[string][]byte
	URLBase string
	Deleted []string

	PutErr    error
	URLErr    error
	DeleteErr error
}

func NewMemBackend(urlBase string) *MemBackend {
	return &MemBackend{Objects: make(map[string][]byte), URLBase: urlBase}
}

func (b *MemBackend) Put(ctx context.Context, name string, src io.Reader, size int64, contentType string) error {
	if b.PutErr != nil {
		return b.PutErr
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Objects[name] = data
	return nil
}

func (b *MemBackend) URLFor(ctx context.Context, name string) (string, error) {
	if b.URLErr != nil {
		return "", b.URLErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.Objects[name]; !ok {
		return "", store.ErrNotFound
	}
	return fmt.Sprintf("%s/%s", b.URLBase, name), nil
}

func (b *MemBackend) Delete(ctx context.Context, name string) error {
	if b.DeleteErr != nil {
		return b.DeleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Deleted = append(b.Deleted, name)
	delete(b.Objects, name)
	return nil
}

func (b *MemBackend) Exists(ctx context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.Objects[name]
	return ok, nil
}

// Seed puts an object without going through Put's error injection.
func (b *MemBackend) Seed(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Objects[name] = bytes.Clone(data)
}

var episodeColumns = []string{
	"id", "podcast_id", "title", "description", "status",
	"audio_local", "audio_durable", "audio_remote",
	"cover_local", "cover_durable", "cover_remote",
	"publish_at", "last_edited_at", "failure_reason",
	"audio_size_bytes", "duration_seconds",
	"lock_version", "created_at", "updated_at",
}

// EpisodeRows builds the sqlmock result set for queries selecting the
// full episode column list.
func EpisodeRows(episodes ...models.Episode) *sqlmock.Rows {
	rows := sqlmock.NewRows(episodeColumns)
	for i := range episodes {
		ep := &episodes[i]
		rows.AddRow(ep.ID, ep.PodcastID, orNil(ep.Title), orNil(ep.Description), ep.Status,
			orNil(ep.AudioLocal), orNil(ep.AudioDurable), orNil(ep.AudioRemote),
			orNil(ep.CoverLocal), orNil(ep.CoverDurable), orNil(ep.CoverRemote),
			orNil(ep.PublishAt), ep.LastEditedAt, orNil(ep.FailureReason),
			orNil(ep.AudioSizeBytes), orNil(ep.DurationSeconds),
			ep.LockVersion, ep.CreatedAt, ep.UpdatedAt)
	}
	return rows
}

// PodcastRows builds the sqlmock result set for SELECT * podcast
// queries.
func PodcastRows(podcasts ...models.Podcast) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "description", "author", "api_token", "rss_uuid", "created_at"})
	for i := range podcasts {
		p := &podcasts[i]
		rows.AddRow(p.ID, p.Title, p.Description, p.Author, p.APIToken, p.RSSUUID, p.CreatedAt)
	}
	return rows
}

func orNil[T any](p *T) driver.Value {
	if p == nil {
		return nil
	}
	return *p
}
