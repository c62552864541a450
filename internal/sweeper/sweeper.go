// Package sweeper reclaims durable-temporary artifacts once their
// retention window has elapsed. It deletes the object first and clears
// the pointer second, so a crash anywhere in between is repaired by the
// next run re-attempting an idempotent delete.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"podforge/internal/commit"
	"podforge/internal/db"
	"podforge/internal/metrics"
	"podforge/internal/models"
	"podforge/internal/notify"
	"podforge/internal/store"
)

// Report summarizes one sweep run for job-run bookkeeping and the ops
// endpoint.
type Report struct {
	Skipped   bool
	Examined  int
	Reclaimed int64
	Kept      int64
	Failed    int64
}

type Sweeper struct {
	Store    *store.Store
	Notifier notify.Notifier
	Retrier  *commit.Retrier

	// Window is the grace period after publish, extended by edits,
	// before a durable copy may be reclaimed.
	Window time.Duration
	// StuckAfter is how long an episode may sit in processing without
	// an update before it is escalated.
	StuckAfter time.Duration
}

func NewSweeper(s *store.Store, notifier notify.Notifier, window, stuckAfter time.Duration) *Sweeper {
	return &Sweeper{
		Store:      s,
		Notifier:   notifier,
		Retrier:    commit.NewRetrier(),
		Window:     window,
		StuckAfter: stuckAfter,
	}
}

// Run executes one sweep. It is a singleton across all workers: an
// advisory lock guards the run, and a second concurrent sweep skips
// instead of doubling load on the object store.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	lock, acquired, err := db.TryAdvisoryLock(ctx, db.LockKey(models.JobRetentionSweep))
	if err != nil {
		return nil, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	if !acquired {
		log.Printf("Retention sweep is already running elsewhere, skipping")
		return &Report{Skipped: true}, nil
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Printf("Failed to release sweep lock: %v", err)
		}
	}()

	cutoff := time.Now().UTC().Add(-s.Window)
	episodes, err := db.ListReclaimable(cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing reclaimable episodes: %w", err)
	}

	report := &Report{Examined: len(episodes)}
	for i := range episodes {
		if ctx.Err() != nil {
			log.Printf("Retention sweep cancelled after %d of %d episodes", i, len(episodes))
			break
		}
		// One episode's failure never blocks the others.
		s.sweepEpisode(ctx, &episodes[i], report)
	}

	if err := db.RecordJobRun(models.JobRetentionSweep, time.Now().UTC(), report.Reclaimed, report.Failed, ""); err != nil {
		log.Printf("Failed to record retention sweep run: %v", err)
	}
	log.Printf("Retention sweep: %d episodes examined, %d artifacts reclaimed, %d kept, %d failed",
		report.Examined, report.Reclaimed, report.Kept, report.Failed)
	return report, nil
}

func (s *Sweeper) sweepEpisode(ctx context.Context, ep *models.Episode, report *Report) {
	var reclaimed int
	for _, kind := range []string{models.KindAudio, models.KindCover} {
		locator := ep.DurablePointer(kind)
		if locator == nil {
			continue
		}
		// The durable copy is the only surviving copy until a
		// permanent pointer exists. Never delete it before then.
		if ep.RemotePointer(kind) == nil {
			log.Printf("Retention sweep: episode %s has no permanent %s copy, keeping durable object %s", ep.ID, kind, *locator)
			metrics.SweepArtifactsTotal.WithLabelValues("kept").Inc()
			report.Kept++
			continue
		}

		if err := s.Store.Delete(ctx, store.TierDurableTemporary, *locator); err != nil {
			log.Printf("Retention sweep: deleting durable %s of episode %s failed: %v", kind, ep.ID, err)
			metrics.SweepArtifactsTotal.WithLabelValues("failed").Inc()
			report.Failed++
			continue
		}

		if err := s.clearDurablePointer(context.WithoutCancel(ctx), ep.ID, kind); err != nil {
			// Leave the stale pointer in place: the resolver's
			// dangling-pointer path covers reads and the next sweep
			// re-attempts the idempotent delete plus clear.
			log.Printf("Retention sweep: episode %s: clearing %s pointer exhausted, leaving it for the next run: %v", ep.ID, kind, err)
			metrics.SweepArtifactsTotal.WithLabelValues("failed").Inc()
			report.Failed++
			continue
		}

		log.Printf("Retention sweep: reclaimed %s artifact of episode %s (%s)", kind, ep.ID, *locator)
		metrics.SweepArtifactsTotal.WithLabelValues("reclaimed").Inc()
		report.Reclaimed++
		reclaimed++
	}
	if reclaimed > 0 {
		s.Notifier.Notify(context.WithoutCancel(ctx), ep.ID, notify.OutcomeReclaimed)
	}
}

// ScanStuckProcessing escalates episodes that entered processing and
// were never finished. There is no automatic retry: re-running
// production blind risks duplicate cost without knowing why the prior
// attempt froze.
func (s *Sweeper) ScanStuckProcessing(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.StuckAfter)
	episodes, err := db.ListStuckProcessing(cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stuck episodes: %w", err)
	}

	metrics.StuckProcessing.Set(float64(len(episodes)))
	for i := range episodes {
		ep := &episodes[i]
		log.Printf("CRITICAL: episode %s has been processing since %s with no progress; operator intervention required",
			ep.ID, ep.UpdatedAt.UTC().Format(time.RFC3339))
		s.Notifier.Notify(ctx, ep.ID, notify.OutcomeStuck)
	}
	return len(episodes), nil
}

func (s *Sweeper) clearDurablePointer(ctx context.Context, episodeID, kind string) error {
	retrier := *s.Retrier
	retrier.OnAttempt = func(attempt int, err error) {
		if err != nil {
			metrics.CommitAttemptsTotal.WithLabelValues("retried").Inc()
			log.Printf("Episode %s: pointer-clear attempt %d/%d failed: %v", episodeID, attempt, retrier.MaxAttempts, err)
			return
		}
		metrics.CommitAttemptsTotal.WithLabelValues("ok").Inc()
	}
	err := retrier.Do(ctx, func(ctx context.Context) error {
		ep, err := db.GetEpisode(episodeID)
		if err != nil {
			return err
		}
		if ep.DurablePointer(kind) == nil {
			return nil
		}
		ep.ClearDurablePointer(kind)
		return db.UpdateEpisode(&ep)
	})
	if err != nil {
		metrics.CommitAttemptsTotal.WithLabelValues("exhausted").Inc()
	}
	return err
}
