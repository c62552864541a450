// Package store is a uniform interface over the three artifact storage
// tiers. Tiers form a closed set: ephemeral local disk, a
// durable-temporary object store with per-object expiry and signed
// read URLs, and the permanent external host an episode is published
// to. Locators are opaque strings; only the tier that minted a locator
// can interpret it.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
)

// Tier identifies one of the three storage tiers.
type Tier string

const (
	TierEphemeralLocal   Tier = "ephemeral_local"
	TierDurableTemporary Tier = "durable_temporary"
	TierPermanentRemote  Tier = "permanent_remote"
)

// ErrNotFound reports that a locator points at no live object. Callers
// treat this as an expected condition, not a failure.
var ErrNotFound = errors.New("artifact not found")

// ErrReadOnlyTier reports a write against the permanent-remote tier,
// which is owned by the external publishing host.
var ErrReadOnlyTier = errors.New("tier does not accept writes")

// Key addresses an artifact: one artifact kind of one episode of one
// podcast.
type Key struct {
	PodcastID int64
	EpisodeID string
	Kind      string
}

// Name renders the canonical object name for a key.
func (k Key) Name(ext string) string {
	return fmt.Sprintf("%d/%s/%s%s", k.PodcastID, k.EpisodeID, k.Kind, ext)
}

// Backend is the per-tier contract. Put overwrites on repeat; Delete of
// an absent object succeeds, so reclamation is safe to retry.
type Backend interface {
	Put(ctx context.Context, name string, src io.Reader, size int64, contentType string) error
	URLFor(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

// Store dispatches operations to the backend for a tier.
type Store struct {
	backends map[Tier]Backend
}

// New assembles a store from the three tier backends.
func New(local, durable, remote Backend) *Store {
	return &Store{backends: map[Tier]Backend{
		TierEphemeralLocal:   local,
		TierDurableTemporary: durable,
		TierPermanentRemote:  remote,
	}}
}

func (s *Store) backend(tier Tier) (Backend, error) {
	b, ok := s.backends[tier]
	if !ok || b == nil {
		return nil, fmt.Errorf("unknown storage tier %q", tier)
	}
	return b, nil
}

// Put stores src under the canonical name for key and returns the
// locator. Repeating a Put for the same key and tier overwrites.
func (s *Store) Put(ctx context.Context, key Key, tier Tier, src io.Reader, size int64, contentType string) (string, error) {
	b, err := s.backend(tier)
	if err != nil {
		return "", err
	}
	locator := key.Name(extensionFor(contentType))
	if err := b.Put(ctx, locator, src, size, contentType); err != nil {
		return "", fmt.Errorf("put %s to %s: %w", locator, tier, err)
	}
	return locator, nil
}

// PutFile uploads a local file, deriving size and content type from the
// file itself.
func (s *Store) PutFile(ctx context.Context, key Key, tier Tier, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open artifact file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact file: %w", err)
	}
	return s.Put(ctx, key, tier, f, info.Size(), contentTypeFor(path.Ext(filePath)))
}

// URLFor resolves a locator to a readable URL. The durable-temporary
// tier returns a time-limited signed URL; the permanent-remote tier
// returns the stored URL unchanged. Absent objects yield ErrNotFound.
func (s *Store) URLFor(ctx context.Context, tier Tier, locator string) (string, error) {
	b, err := s.backend(tier)
	if err != nil {
		return "", err
	}
	return b.URLFor(ctx, locator)
}

// Delete removes the object behind a locator. Deleting an object that
// is already gone is a success.
func (s *Store) Delete(ctx context.Context, tier Tier, locator string) error {
	b, err := s.backend(tier)
	if err != nil {
		return err
	}
	return b.Delete(ctx, locator)
}

// Exists reports whether the object behind a locator is present.
func (s *Store) Exists(ctx context.Context, tier Tier, locator string) (bool, error) {
	b, err := s.backend(tier)
	if err != nil {
		return false, err
	}
	return b.Exists(ctx, locator)
}

// Content types the producer emits. mime.TypeByExtension covers the
// rest; these are pinned because m4a is missing from some mime tables.
var contentTypes = map[string]string{
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

func contentTypeFor(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func extensionFor(contentType string) string {
	for ext, ct := range contentTypes {
		if ct == contentType && ext != ".jpeg" {
			return ext
		}
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
