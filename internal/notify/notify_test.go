package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPNotifierPostsOutcome(t *testing.T) {
	var got notification
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	New(server.URL).Notify(context.Background(), "ep-1", OutcomeProcessed)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "ep-1", got.EpisodeID)
	assert.Equal(t, OutcomeProcessed, got.Outcome)
}

func TestHTTPNotifierDropsDeliveryFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sink on fire", http.StatusInternalServerError)
	}))
	defer server.Close()

	// Must return without surfacing the failure.
	New(server.URL).Notify(context.Background(), "ep-1", OutcomeFailed)
}

func TestHTTPNotifierSurvivesUnreachableSink(t *testing.T) {
	New("http://127.0.0.1:1").Notify(context.Background(), "ep-1", OutcomeReclaimed)
}

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	notifier := New("")
	assert.IsType(t, noopNotifier{}, notifier)
	notifier.Notify(context.Background(), "ep-1", OutcomePublished)
}
