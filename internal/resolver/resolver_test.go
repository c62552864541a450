package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podforge/internal/models"
	"podforge/internal/store"
	"podforge/internal/test"
)

func newTestResolver() (*Resolver, *test.MemBackend, *test.MemBackend) {
	local := test.NewMemBackend("http://localhost:8080/media")
	durable := test.NewMemBackend("https://objects.example.com")
	st := store.New(local, durable, store.NewRemoteBackend())
	return New(st), local, durable
}

func str(s string) *string { return &s }

func TestResolvePublishedPrefersRemote(t *testing.T) {
	r, _, durable := newTestResolver()
	durable.Seed("1/ep-1/audio.m4a", []byte("audio"))

	ep := &models.Episode{
		ID:           "ep-1",
		Status:       models.StatusPublished,
		AudioDurable: str("1/ep-1/audio.m4a"),
		AudioRemote:  str("https://cdn.example.com/ep-1/audio.m4a"),
	}

	url, err := r.Resolve(context.Background(), ep, models.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/ep-1/audio.m4a", url)
}

func TestResolveProcessedIgnoresRemotePointer(t *testing.T) {
	r, _, durable := newTestResolver()
	durable.Seed("1/ep-2/audio.m4a", []byte("audio"))

	// A remote pointer on a non-published episode is never served.
	ep := &models.Episode{
		ID:           "ep-2",
		Status:       models.StatusProcessed,
		AudioDurable: str("1/ep-2/audio.m4a"),
		AudioRemote:  str("https://cdn.example.com/ep-2/audio.m4a"),
	}

	url, err := r.Resolve(context.Background(), ep, models.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, "https://objects.example.com/1/ep-2/audio.m4a", url)
}

func TestResolvePublishedWithoutRemoteFallsBack(t *testing.T) {
	r, _, durable := newTestResolver()
	durable.Seed("1/ep-3/audio.m4a", []byte("audio"))

	ep := &models.Episode{
		ID:           "ep-3",
		Status:       models.StatusPublished,
		AudioDurable: str("1/ep-3/audio.m4a"),
	}

	url, err := r.Resolve(context.Background(), ep, models.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, "https://objects.example.com/1/ep-3/audio.m4a", url)
}

func TestResolveDanglingDurableFallsThroughToLocal(t *testing.T) {
	r, local, _ := newTestResolver()
	local.Seed("1/ep-4/audio.m4a", []byte("audio"))

	// Durable pointer set but the object has expired out from under it.
	ep := &models.Episode{
		ID:           "ep-4",
		Status:       models.StatusProcessed,
		AudioLocal:   str("1/ep-4/audio.m4a"),
		AudioDurable: str("1/ep-4/audio.m4a"),
	}

	url, err := r.Resolve(context.Background(), ep, models.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/1/ep-4/audio.m4a", url)
}

func TestResolveDanglingDurableWithoutLocalIsUnavailable(t *testing.T) {
	r, _, _ := newTestResolver()

	ep := &models.Episode{
		ID:           "ep-5",
		Status:       models.StatusProcessed,
		AudioDurable: str("1/ep-5/audio.m4a"),
	}

	_, err := r.Resolve(context.Background(), ep, models.KindAudio)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveLocalRequiresLiveFile(t *testing.T) {
	r, _, _ := newTestResolver()

	// Local copies vanish on restart; a pointer alone is not enough.
	ep := &models.Episode{
		ID:         "ep-6",
		Status:     models.StatusDraft,
		AudioLocal: str("1/ep-6/audio.m4a"),
	}

	_, err := r.Resolve(context.Background(), ep, models.KindAudio)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveNoPointers(t *testing.T) {
	r, _, _ := newTestResolver()

	ep := &models.Episode{ID: "ep-7", Status: models.StatusDraft}

	_, err := r.Resolve(context.Background(), ep, models.KindAudio)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveCoverKind(t *testing.T) {
	r, _, durable := newTestResolver()
	durable.Seed("1/ep-8/cover.jpg", []byte("img"))

	ep := &models.Episode{
		ID:           "ep-8",
		Status:       models.StatusProcessed,
		AudioDurable: str("1/ep-8/audio.m4a"),
		CoverDurable: str("1/ep-8/cover.jpg"),
	}

	url, err := r.Resolve(context.Background(), ep, models.KindCover)
	require.NoError(t, err)
	assert.Equal(t, "https://objects.example.com/1/ep-8/cover.jpg", url)

	// The audio object is absent, so the same episode's audio is not.
	_, err = r.Resolve(context.Background(), ep, models.KindAudio)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveDurableBackendError(t *testing.T) {
	r, _, durable := newTestResolver()
	durable.URLErr = errors.New("object store unreachable")

	ep := &models.Episode{
		ID:           "ep-9",
		Status:       models.StatusProcessed,
		AudioDurable: str("1/ep-9/audio.m4a"),
	}

	_, err := r.Resolve(context.Background(), ep, models.KindAudio)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
