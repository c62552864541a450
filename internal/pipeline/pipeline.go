// Package pipeline turns raw episode input into two durably stored
// artifacts and a committed processed status, or fails loudly into
// error. It is the only writer of the processed status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"podforge/internal/commit"
	"podforge/internal/db"
	"podforge/internal/metrics"
	"podforge/internal/models"
	"podforge/internal/notify"
	"podforge/internal/producer"
	"podforge/internal/store"
)

// FallbackFailureReason is recorded when the processed commit exhausted
// its retries and the pipeline fell back to an error commit.
const FallbackFailureReason = "status commit failed after retries"

// TerminalError marks a failure whose outcome is already recorded on
// the episode (or deliberately left for an operator). The task queue
// must not retry it: re-running production without knowing why the
// last attempt died only duplicates cost.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }
func (e *TerminalError) Unwrap() error { return e.Err }

// Pipeline assembles one episode at a time. Instances are safe for
// concurrent use across episodes; the draft->processing guard in the
// database keeps two runs off the same episode.
type Pipeline struct {
	Store    *store.Store
	Producer producer.Producer
	Notifier notify.Notifier
	Retrier  *commit.Retrier
}

// New builds a pipeline with the default commit retry policy.
func New(s *store.Store, prod producer.Producer, notifier notify.Notifier) *Pipeline {
	return &Pipeline{
		Store:    s,
		Producer: prod,
		Notifier: notifier,
		Retrier:  commit.NewRetrier(),
	}
}

// Run executes the assembly for one episode: claim it, produce the
// artifacts, store them durably, and commit processed. Cancellation is
// honored between steps but never once the final status commit has
// started.
func (p *Pipeline) Run(ctx context.Context, episodeID string, input []byte) error {
	ep, err := db.GetEpisode(episodeID)
	if err != nil {
		return fmt.Errorf("load episode %s: %w", episodeID, err)
	}

	if err := db.BeginProcessing(episodeID); err != nil {
		if errors.Is(err, db.ErrAlreadyProcessing) {
			return &TerminalError{Err: fmt.Errorf("episode %s: %w", episodeID, err)}
		}
		// The job never started; it is safe to resubmit.
		return fmt.Errorf("claim episode %s: %w", episodeID, err)
	}
	log.Printf("Assembling episode %s", episodeID)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("assembly of episode %s cancelled before production: %w", episodeID, err)
	}

	result, err := p.Producer.Produce(ctx, episodeID, input)
	if err != nil {
		return p.failEpisode(ctx, episodeID, fmt.Sprintf("production failed: %v", err), nil, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("assembly of episode %s cancelled before upload: %w", episodeID, err)
	}

	// Local copies first: if the durable upload dies, the error commit
	// still records where the produced bytes live.
	audioKey := store.Key{PodcastID: ep.PodcastID, EpisodeID: ep.ID, Kind: models.KindAudio}
	coverKey := store.Key{PodcastID: ep.PodcastID, EpisodeID: ep.ID, Kind: models.KindCover}

	localAudio, err := p.Store.PutFile(ctx, audioKey, store.TierEphemeralLocal, result.AudioPath)
	if err != nil {
		return p.failEpisode(ctx, episodeID, fmt.Sprintf("staging audio artifact failed: %v", err), nil, err)
	}
	localCover, err := p.Store.PutFile(ctx, coverKey, store.TierEphemeralLocal, result.CoverPath)
	if err != nil {
		audioOnly := func(e *models.Episode) { e.SetLocalPointer(models.KindAudio, localAudio) }
		return p.failEpisode(ctx, episodeID, fmt.Sprintf("staging cover artifact failed: %v", err), audioOnly, err)
	}
	locals := func(e *models.Episode) {
		e.SetLocalPointer(models.KindAudio, localAudio)
		e.SetLocalPointer(models.KindCover, localCover)
	}

	// An episode without durable artifacts cannot be processed; a
	// failed upload is as terminal as a failed production.
	durableAudio, err := p.Store.PutFile(ctx, audioKey, store.TierDurableTemporary, result.AudioPath)
	if err != nil {
		return p.failEpisode(ctx, episodeID, fmt.Sprintf("durable upload of audio failed: %v", err), locals, err)
	}
	durableCover, err := p.Store.PutFile(ctx, coverKey, store.TierDurableTemporary, result.CoverPath)
	if err != nil {
		// The audio object already landed durably; losing its pointer
		// here would orphan it past the sweeper's reach.
		withAudio := func(e *models.Episode) {
			locals(e)
			e.SetDurablePointer(models.KindAudio, durableAudio)
		}
		return p.failEpisode(ctx, episodeID, fmt.Sprintf("durable upload of cover failed: %v", err), withAudio, err)
	}

	var audioSize *int64
	if info, statErr := os.Stat(result.AudioPath); statErr == nil {
		size := info.Size()
		audioSize = &size
	}
	var duration *int64
	if result.DurationSeconds > 0 {
		d := int64(result.DurationSeconds)
		duration = &d
	}

	// The single most critical commit in the system: the only write
	// that marks work done. Shielded from cancellation so a shutdown
	// cannot leave durably stored artifacts behind a processing status.
	commitCtx := context.WithoutCancel(ctx)
	err = p.commitWithRetry(commitCtx, episodeID, func(e *models.Episode) {
		locals(e)
		e.SetDurablePointer(models.KindAudio, durableAudio)
		e.SetDurablePointer(models.KindCover, durableCover)
		e.Status = models.StatusProcessed
		e.FailureReason = nil
		e.AudioSizeBytes = audioSize
		e.DurationSeconds = duration
	})
	if err != nil {
		return p.fallbackToError(commitCtx, episodeID, locals, durableAudio, durableCover, err)
	}

	metrics.AssembliesTotal.WithLabelValues("processed").Inc()
	p.Notifier.Notify(commitCtx, episodeID, notify.OutcomeProcessed)
	p.cleanupStaging(result)
	log.Printf("Episode %s processed: audio=%s cover=%s", episodeID, durableAudio, durableCover)
	return nil
}

// commitWithRetry applies one mutation of the episode record under the
// retry policy, re-reading the row on every attempt.
func (p *Pipeline) commitWithRetry(ctx context.Context, episodeID string, apply func(*models.Episode)) error {
	retrier := *p.Retrier
	retrier.OnAttempt = func(attempt int, err error) {
		if err != nil {
			metrics.CommitAttemptsTotal.WithLabelValues("retried").Inc()
			log.Printf("Episode %s: commit attempt %d/%d failed: %v", episodeID, attempt, retrier.MaxAttempts, err)
			return
		}
		metrics.CommitAttemptsTotal.WithLabelValues("ok").Inc()
		if attempt > 1 {
			log.Printf("Episode %s: commit succeeded on attempt %d", episodeID, attempt)
		}
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

// failEpisode records a terminal assembly failure. The produced bytes
// are never deleted here: whatever pointers exist go into the commit so
// nothing is orphaned.
func (p *Pipeline) failEpisode(ctx context.Context, episodeID, reason string, pointers func(*models.Episode), cause error) error {
	commitCtx := context.WithoutCancel(ctx)
	err := p.commitWithRetry(commitCtx, episodeID, func(e *models.Episode) {
		if pointers != nil {
			pointers(e)
		}
		e.Status = models.StatusError
		e.FailureReason = &reason
	})
	if err != nil {
		log.Printf("CRITICAL: episode %s is stuck in processing: failed to commit error status (%s): %v", episodeID, reason, err)
		metrics.AssembliesTotal.WithLabelValues("stuck").Inc()
		p.Notifier.Notify(commitCtx, episodeID, notify.OutcomeStuck)
		return &TerminalError{Err: fmt.Errorf("episode %s: %s; error commit also failed: %w", episodeID, reason, err)}
	}

	metrics.AssembliesTotal.WithLabelValues("error").Inc()
	p.Notifier.Notify(commitCtx, episodeID, notify.OutcomeFailed)
	log.Printf("Episode %s failed: %s", episodeID, reason)
	return &TerminalError{Err: fmt.Errorf("episode %s: %s: %w", episodeID, reason, cause)}
}

// fallbackToError handles exhaustion of the processed commit: exactly
// one more commit attempt, this time to error. If even that fails the
// episode stays in processing and the condition is escalated; there is
// no further recovery.
func (p *Pipeline) fallbackToError(ctx context.Context, episodeID string, locals func(*models.Episode), durableAudio, durableCover string, commitErr error) error {
	reason := FallbackFailureReason
	ep, err := db.GetEpisode(episodeID)
	if err == nil {
		locals(&ep)
		ep.SetDurablePointer(models.KindAudio, durableAudio)
		ep.SetDurablePointer(models.KindCover, durableCover)
		ep.Status = models.StatusError
		ep.FailureReason = &reason
		err = db.UpdateEpisode(&ep)
	}
	if err != nil {
		log.Printf("CRITICAL: episode %s is stuck in processing: processed commit exhausted (%v) and the error fallback failed: %v", episodeID, commitErr, err)
		metrics.AssembliesTotal.WithLabelValues("stuck").Inc()
		p.Notifier.Notify(ctx, episodeID, notify.OutcomeStuck)
		return &TerminalError{Err: fmt.Errorf("episode %s: processed commit exhausted and error fallback failed: %w", episodeID, commitErr)}
	}

	metrics.AssembliesTotal.WithLabelValues("error").Inc()
	p.Notifier.Notify(ctx, episodeID, notify.OutcomeFailed)
	log.Printf("Episode %s moved to error after exhausted status commit: %v", episodeID, commitErr)
	return &TerminalError{Err: fmt.Errorf("episode %s: %w", episodeID, commitErr)}
}

// cleanupStaging removes the producer's staging files once both
// artifacts are durably stored and committed. The canonical local-tier
// copies remain as a resolution cache.
func (p *Pipeline) cleanupStaging(result *producer.Result) {
	for _, path := range []string{result.AudioPath, result.CoverPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("cleanup: remove staging file %s: %v", path, err)
		}
	}
	// Drop the per-episode staging dir if it is empty now.
	os.Remove(filepath.Dir(result.AudioPath))
}
