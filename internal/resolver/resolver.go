// Package resolver picks the single best reachable URL for an
// episode's artifact. Tier priority is fixed: the permanent remote copy
// of a published episode, then the durable-temporary copy, then a
// still-present local copy. A URL is never synthesized for an object
// that was not verified to exist.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"

	"podforge/internal/models"
	"podforge/internal/store"
)

// ErrUnavailable means no tier holds a reachable copy. Callers render
// "no media available" instead of a broken link.
var ErrUnavailable = errors.New("no media available")

// Resolver resolves playback URLs against the artifact store.
type Resolver struct {
	store *store.Store
}

// New builds a resolver over the given store.
func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the playback URL for one artifact kind of an episode,
// or ErrUnavailable. A durable pointer whose object is gone is logged
// as a dangling pointer and skipped rather than returned as a dead
// link.
func (r *Resolver) Resolve(ctx context.Context, ep *models.Episode, kind string) (string, error) {
	if ep.Status == models.StatusPublished {
		if loc := ep.RemotePointer(kind); loc != nil {
			url, err := r.store.URLFor(ctx, store.TierPermanentRemote, *loc)
			if err == nil {
				return url, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return "", fmt.Errorf("resolve remote %s for episode %s: %w", kind, ep.ID, err)
			}
		}
	}

	if loc := ep.DurablePointer(kind); loc != nil {
		url, err := r.store.URLFor(ctx, store.TierDurableTemporary, *loc)
		switch {
		case err == nil:
			return url, nil
		case errors.Is(err, store.ErrNotFound):
			log.Printf("dangling pointer: episode %s has durable %s locator %q but the object is gone", ep.ID, kind, *loc)
		default:
			return "", fmt.Errorf("resolve durable %s for episode %s: %w", kind, ep.ID, err)
		}
	}

	if loc := ep.LocalPointer(kind); loc != nil {
		url, err := r.store.URLFor(ctx, store.TierEphemeralLocal, *loc)
		switch {
		case err == nil:
			return url, nil
		case errors.Is(err, store.ErrNotFound):
			// Local copies vanish on restart; silent fall-through.
		default:
			return "", fmt.Errorf("resolve local %s for episode %s: %w", kind, ep.ID, err)
		}
	}

	return "", ErrUnavailable
}
