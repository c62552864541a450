package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"podforge/internal/pipeline"
	"podforge/internal/publish"
	"podforge/internal/sweeper"
	"podforge/pkg/tasks"
)

// TaskHandler binds the lifecycle components to the task queue. All
// heavy work happens here, in the worker process, never in the API
// process.
type TaskHandler struct {
	asynqClient tasks.TaskEnqueuer
	pipeline    *pipeline.Pipeline
	workflow    *publish.Workflow
	sweeper     *sweeper.Sweeper
}

func NewTaskHandler(client tasks.TaskEnqueuer, p *pipeline.Pipeline, w *publish.Workflow, s *sweeper.Sweeper) *TaskHandler {
	return &TaskHandler{
		asynqClient: client,
		pipeline:    p,
		workflow:    w,
		sweeper:     s,
	}
}

func (h *TaskHandler) HandleAssembleEpisodeTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.AssembleEpisodeTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal assemble payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Assembling episode: %s", p.EpisodeID)
	err := h.pipeline.Run(ctx, p.EpisodeID, p.Input)
	if err == nil {
		return nil
	}

	// Terminal failures are already recorded on the episode record (or
	// escalated to an operator); re-running production for them only
	// duplicates cost.
	var terminal *pipeline.TerminalError
	if errors.As(err, &terminal) {
		log.Printf("Assembly of episode %s ended terminally: %v", p.EpisodeID, err)
		return fmt.Errorf("assembly of episode %s: %v: %w", p.EpisodeID, err, asynq.SkipRetry)
	}
	return fmt.Errorf("assembly of episode %s: %w", p.EpisodeID, err)
}

func (h *TaskHandler) HandlePublishEpisodeTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.PublishEpisodeTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal publish payload: %v: %w", err, asynq.SkipRetry)
	}
	return h.workflow.PublishEpisode(ctx, p.EpisodeID)
}

func (h *TaskHandler) HandlePublishScanTask(ctx context.Context, t *asynq.Task) error {
	_, err := h.workflow.ScanProcessed(ctx, h.asynqClient)
	return err
}

func (h *TaskHandler) HandleSweepRetentionTask(ctx context.Context, t *asynq.Task) error {
	if _, err := h.sweeper.Run(ctx); err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}
	if _, err := h.sweeper.ScanStuckProcessing(ctx); err != nil {
		return fmt.Errorf("stuck-processing scan: %w", err)
	}
	return nil
}
