// Package publish owns the single transition from processed to
// published: it asks the external publishing integration for the
// permanent artifact URLs and commits them together with the status.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"podforge/internal/commit"
	"podforge/internal/db"
	"podforge/internal/metrics"
	"podforge/internal/models"
	"podforge/internal/notify"
	"podforge/pkg/tasks"
)

// publishTaskUniqueTTL keeps repeated scans from piling up duplicate
// publish tasks for the same episode.
const publishTaskUniqueTTL = 30 * time.Minute

type Workflow struct {
	Integration Integration
	Notifier    notify.Notifier
	Retrier     *commit.Retrier
}

func NewWorkflow(integration Integration, notifier notify.Notifier) *Workflow {
	return &Workflow{
		Integration: integration,
		Notifier:    notifier,
		Retrier:     commit.NewRetrier(),
	}
}

// PublishEpisode moves one processed episode to published once the
// integration reports it hosted. Not-yet-hosted episodes are left
// untouched for a later scan. The commit gates irreversible behavior
// downstream: the sweeper deletes durable copies on the assumption it
// succeeded.
func (w *Workflow) PublishEpisode(ctx context.Context, episodeID string) error {
	ep, err := db.GetEpisode(episodeID)
	if err != nil {
		return fmt.Errorf("load episode %s: %w", episodeID, err)
	}
	switch ep.Status {
	case models.StatusProcessed:
	case models.StatusPublished:
		log.Printf("Episode %s is already published", episodeID)
		return nil
	default:
		log.Printf("Episode %s is %s, not publishable; skipping", episodeID, ep.Status)
		metrics.PublishesTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	remote, err := w.Integration.RemoteArtifacts(ctx, episodeID)
	if err != nil {
		if errors.Is(err, ErrNotYetPublished) {
			log.Printf("Episode %s is not hosted remotely yet, leaving processed", episodeID)
			metrics.PublishesTotal.WithLabelValues("pending").Inc()
			return nil
		}
		return fmt.Errorf("episode %s: %w", episodeID, err)
	}

	now := time.Now().UTC()
	commitCtx := context.WithoutCancel(ctx)
	err = w.commitWithRetry(commitCtx, episodeID, func(e *models.Episode) {
		e.SetRemotePointer(models.KindAudio, remote.AudioURL)
		e.SetRemotePointer(models.KindCover, remote.CoverURL)
		e.Status = models.StatusPublished
		if e.PublishAt == nil {
			e.PublishAt = &now
		}
	})
	if err != nil {
		metrics.PublishesTotal.WithLabelValues("exhausted").Inc()
		// The episode stays processed with nothing recorded; the next
		// scan picks it up again.
		return fmt.Errorf("episode %s: publish commit: %w", episodeID, err)
	}

	metrics.PublishesTotal.WithLabelValues("published").Inc()
	w.Notifier.Notify(commitCtx, episodeID, notify.OutcomePublished)
	log.Printf("Episode %s published: audio=%s cover=%s", episodeID, remote.AudioURL, remote.CoverURL)
	return nil
}

// ScanProcessed enqueues a publish task for every processed episode.
// Returns how many tasks were enqueued.
func (w *Workflow) ScanProcessed(ctx context.Context, enqueuer tasks.TaskEnqueuer) (int, error) {
	episodes, err := db.ListProcessed()
	if err != nil {
		return 0, fmt.Errorf("listing processed episodes: %w", err)
	}

	var enqueued, failed int64
	for _, ep := range episodes {
		task, err := tasks.NewPublishEpisodeTask(ep.ID)
		if err != nil {
			failed++
			log.Printf("Failed to build publish task for episode %s: %v", ep.ID, err)
			continue
		}
		_, err = enqueuer.Enqueue(task, asynq.Queue(tasks.QueueMaintenance), asynq.Unique(publishTaskUniqueTTL))
		if err != nil {
			if errors.Is(err, asynq.ErrDuplicateTask) {
				continue
			}
			failed++
			log.Printf("Failed to enqueue publish task for episode %s: %v", ep.ID, err)
			continue
		}
		enqueued++
	}

	if err := db.RecordJobRun(models.JobPublishScan, time.Now().UTC(), enqueued, failed, ""); err != nil {
		log.Printf("Failed to record publish scan run: %v", err)
	}
	log.Printf("Publish scan: %d processed episodes, %d publish tasks enqueued", len(episodes), enqueued)
	return int(enqueued), nil
}

func (w *Workflow) commitWithRetry(ctx context.Context, episodeID string, apply func(*models.Episode)) error {
	retrier := *w.Retrier
	retrier.OnAttempt = func(attempt int, err error) {
		if err != nil {
			metrics.CommitAttemptsTotal.WithLabelValues("retried").Inc()
			log.Printf("Episode %s: publish commit attempt %d/%d failed: %v", episodeID, attempt, retrier.MaxAttempts, err)
			return
		}
		metrics.CommitAttemptsTotal.WithLabelValues("ok").Inc()
	}
	err := retrier.Do(ctx, func(ctx context.Context) error {
		ep, err := db.GetEpisode(episodeID)
		if err != nil {
			return err
		}
		apply(&ep)
		return db.UpdateEpisode(&ep)
	})
	if err != nil {
		metrics.CommitAttemptsTotal.WithLabelValues("exhausted").Inc()
	}
	return err
}
