// Package notify delivers best-effort episode outcome notifications to
// an HTTP sink. Delivery failures are logged and dropped; nothing in
// the pipeline ever rolls back because a notification was lost.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

// Outcomes reported to the sink.
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
	OutcomePublished = "published"
	OutcomeReclaimed = "reclaimed"
	OutcomeStuck     = "stuck"
)

// Notifier is the outcome sink consumed by the pipeline, publish
// workflow and sweeper.
type Notifier interface {
	Notify(ctx context.Context, episodeID, outcome string)
}

// New returns an HTTP notifier for the endpoint, or a noop when no
// endpoint is configured.
func New(endpoint string) Notifier {
	if endpoint == "" {
		return noopNotifier{}
	}
	return &httpNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, episodeID, outcome string) {}

type httpNotifier struct {
	endpoint string
	client   *http.Client
}

type notification struct {
	EpisodeID string `json:"episode_id"`
	Outcome   string `json:"outcome"`
}

func (n *httpNotifier) Notify(ctx context.Context, episodeID, outcome string) {
	body, err := json.Marshal(notification{EpisodeID: episodeID, Outcome: outcome})
	if err != nil {
		log.Printf("notify: marshal notification for episode %s: %v", episodeID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("notify: build request for episode %s: %v", episodeID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("notify: deliver %s outcome for episode %s: %v", outcome, episodeID, err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		log.Printf("notify: sink returned %d for episode %s outcome %s", resp.StatusCode, episodeID, outcome)
	}
}
