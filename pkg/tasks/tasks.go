package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeAssembleEpisode = "episode:assemble"
	TypePublishEpisode  = "episode:publish"
	TypePublishScan     = "episodes:publish_scan"
	TypeSweepRetention  = "episodes:sweep_retention"
)

// Queue names. Assembly is heavy and must not starve the cheap
// maintenance jobs, so the two run in separate queues.
const (
	QueueAssembly    = "assembly"
	QueueMaintenance = "maintenance"
)

type AssembleEpisodeTaskPayload struct {
	EpisodeID string
	Input     json.RawMessage
}

func NewAssembleEpisodeTask(episodeID string, input json.RawMessage) (*asynq.Task, error) {
	payload, err := json.Marshal(AssembleEpisodeTaskPayload{
		EpisodeID: episodeID,
		Input:     input,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAssembleEpisode, payload), nil
}

type PublishEpisodeTaskPayload struct {
	EpisodeID string
}

func NewPublishEpisodeTask(episodeID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PublishEpisodeTaskPayload{EpisodeID: episodeID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePublishEpisode, payload), nil
}

func NewPublishScanTask() (*asynq.Task, error) {
	return asynq.NewTask(TypePublishScan, nil), nil
}

func NewSweepRetentionTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeSweepRetention, nil), nil
}
