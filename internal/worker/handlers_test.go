package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podforge/internal/db"
	"podforge/internal/models"
	"podforge/internal/pipeline"
	"podforge/internal/producer"
	"podforge/internal/publish"
	"podforge/internal/store"
	"podforge/internal/sweeper"
	"podforge/internal/test"
	"podforge/pkg/tasks"
)

type stubProducer struct {
	err error
}

func (p *stubProducer) Produce(ctx context.Context, episodeID string, input []byte) (*producer.Result, error) {
	return nil, p.err
}

type stubIntegration struct {
	calls int
}

func (s *stubIntegration) RemoteArtifacts(ctx context.Context, episodeID string) (*publish.RemoteArtifacts, error) {
	s.calls++
	return nil, publish.ErrNotYetPublished
}

func newTaskHandler(t *testing.T) (*TaskHandler, sqlmock.Sqlmock, *test.MockTaskEnqueuer, *stubIntegration) {
	_, mock := test.NewMockDB(t)
	local, err := store.NewLocalBackend(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	st := store.New(local, test.NewMemBackend("https://objects.example.com"), store.NewRemoteBackend())

	notifier := &test.RecordingNotifier{}
	enqueuer := &test.MockTaskEnqueuer{}
	integration := &stubIntegration{}
	handler := NewTaskHandler(enqueuer,
		pipeline.New(st, &stubProducer{err: errors.New("producer must not run")}, notifier),
		publish.NewWorkflow(integration, notifier),
		sweeper.NewSweeper(st, notifier, 7*24*time.Hour, time.Hour))
	return handler, mock, enqueuer, integration
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	return data
}

func TestHandleAssembleEpisodeTaskTerminalFailureSkipsRetry(t *testing.T) {
	handler, mock, _, _ := newTaskHandler(t)

	// The episode already left draft, so the claim loses and the run
	// ends terminally.
	ep := models.Episode{ID: "ep-1", PodcastID: 1, Status: models.StatusProcessed, LockVersion: 3}
	mock.ExpectQuery(`SELECT (.+) FROM episodes WHERE id = \$1`).
		WithArgs("ep-1").
		WillReturnRows(test.EpisodeRows(ep))
	mock.ExpectExec(`UPDATE episodes SET status = \$1, updated_at = NOW\(\)`).
		WithArgs(models.StatusProcessing, "ep-1", models.StatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM episodes WHERE id = \$1`).
		WithArgs("ep-1").
		WillReturnRows(test.EpisodeRows(ep))

	payload := mustMarshal(t, tasks.AssembleEpisodeTaskPayload{EpisodeID: "ep-1", Input: json.RawMessage("{}")})
	err := handler.HandleAssembleEpisodeTask(context.Background(), asynq.NewTask(tasks.TypeAssembleEpisode, payload))

	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleAssembleEpisodeTaskTransientFailureIsRetryable(t *testing.T) {
	handler, mock, _, _ := newTaskHandler(t)
	mock.ExpectQuery(`SELECT (.+) FROM episodes WHERE id = \$1`).
		WithArgs("ep-1").
		WillReturnError(errors.New("connection refused"))

	payload := mustMarshal(t, tasks.AssembleEpisodeTaskPayload{EpisodeID: "ep-1", Input: json.RawMessage("{}")})
	err := handler.HandleAssembleEpisodeTask(context.Background(), asynq.NewTask(tasks.TypeAssembleEpisode, payload))

	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleAssembleEpisodeTaskBadPayload(t *testing.T) {
	handler, mock, _, _ := newTaskHandler(t)

	err := handler.HandleAssembleEpisodeTask(context.Background(), asynq.NewTask(tasks.TypeAssembleEpisode, []byte("not json")))

	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlePublishEpisodeTaskSkipsUnpublishable(t *testing.T) {
	handler, mock, _, integration := newTaskHandler(t)
	ep := models.Episode{ID: "ep-1", PodcastID: 1, Status: models.StatusDraft, LockVersion: 1}
	mock.ExpectQuery(`SELECT (.+) FROM episodes WHERE id = \$1`).
		WithArgs("ep-1").
		WillReturnRows(test.EpisodeRows(ep))

	payload := mustMarshal(t, tasks.PublishEpisodeTaskPayload{EpisodeID: "ep-1"})
	err := handler.HandlePublishEpisodeTask(context.Background(), asynq.NewTask(tasks.TypePublishEpisode, payload))

	assert.NoError(t, err)
	assert.Zero(t, integration.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlePublishEpisodeTaskBadPayload(t *testing.T) {
	handler, mock, _, _ := newTaskHandler(t)

	err := handler.HandlePublishEpisodeTask(context.Background(), asynq.NewTask(tasks.TypePublishEpisode, []byte("{")))

	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlePublishScanTaskEnqueuesProcessedEpisodes(t *testing.T) {
	handler, mock, enqueuer, _ := newTaskHandler(t)
	ep := models.Episode{ID: "ep-1", PodcastID: 1, Status: models.StatusProcessed, LockVersion: 3}
	mock.ExpectQuery(`FROM episodes WHERE status = \$1 ORDER BY updated_at ASC`).
		WithArgs(models.StatusProcessed).
		WillReturnRows(test.EpisodeRows(ep))
	mock.ExpectExec(`INSERT INTO job_runs`).
		WithArgs(models.JobPublishScan, sqlmock.AnyArg(), int64(1), int64(0), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	task, err := tasks.NewPublishScanTask()
	require.NoError(t, err)
	err = handler.HandlePublishScanTask(context.Background(), task)

	assert.NoError(t, err)
	require.Len(t, enqueuer.EnqueuedTasks, 1)
	assert.Equal(t, tasks.TypePublishEpisode, enqueuer.EnqueuedTasks[0].Type())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleSweepRetentionTaskRunsBothScans(t *testing.T) {
	handler, mock, _, _ := newTaskHandler(t)

	// The sweep itself yields to another instance holding the lock; the
	// stuck-processing scan still runs.
	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(db.LockKey(models.JobRetentionSweep)).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))
	mock.ExpectQuery(`FROM episodes WHERE status = \$1 AND updated_at < \$2`).
		WithArgs(models.StatusProcessing, sqlmock.AnyArg()).
		WillReturnRows(test.EpisodeRows())

	task, err := tasks.NewSweepRetentionTask()
	require.NoError(t, err)
	err = handler.HandleSweepRetentionTask(context.Background(), task)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
