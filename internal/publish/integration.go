package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNotYetPublished reports that the publishing integration does not
// host the episode yet, e.g. because it is scheduled for later. The
// episode stays processed and is picked up by a later scan.
var ErrNotYetPublished = errors.New("episode is not yet published remotely")

// RemoteArtifacts are the permanent externally-hosted URLs for an
// episode's artifacts.
type RemoteArtifacts struct {
	AudioURL string
	CoverURL string
}

// Integration answers whether the external publishing system hosts an
// episode and where.
type Integration interface {
	RemoteArtifacts(ctx context.Context, episodeID string) (*RemoteArtifacts, error)
}

// HTTPIntegration queries the publishing system's status endpoint.
type HTTPIntegration struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPIntegration(endpoint string) *HTTPIntegration {
	return &HTTPIntegration{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type remoteStatusResponse struct {
	Published bool   `json:"published"`
	AudioURL  string `json:"audio_url"`
	CoverURL  string `json:"cover_url"`
}

func (i *HTTPIntegration) RemoteArtifacts(ctx context.Context, episodeID string) (*RemoteArtifacts, error) {
	statusURL := fmt.Sprintf("%s/episodes/%s", i.Endpoint, url.PathEscape(episodeID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building publish status request: %w", err)
	}

	resp, err := i.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying publish status for episode %s: %w", episodeID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// The integration has never heard of the episode; same as
		// not yet published.
		return nil, ErrNotYetPublished
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("publish status for episode %s: unexpected status %d", episodeID, resp.StatusCode)
	}

	var status remoteStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding publish status for episode %s: %w", episodeID, err)
	}
	if !status.Published {
		return nil, ErrNotYetPublished
	}
	if status.AudioURL == "" || status.CoverURL == "" {
		return nil, fmt.Errorf("publish status for episode %s reports published without both artifact URLs", episodeID)
	}
	return &RemoteArtifacts{AudioURL: status.AudioURL, CoverURL: status.CoverURL}, nil
}
