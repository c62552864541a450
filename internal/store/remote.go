package store

import (
	"context"
	"io"
)

// RemoteBackend is the permanent-remote tier. The external publishing
// host owns the objects; locators are full URLs recorded by the publish
// workflow, so every operation here is a thin passthrough.
type RemoteBackend struct{}

// NewRemoteBackend returns the permanent-remote tier backend.
func NewRemoteBackend() *RemoteBackend {
	return &RemoteBackend{}
}

// Put always fails: publishing uploads happen on the external host.
func (b *RemoteBackend) Put(ctx context.Context, name string, src io.Reader, size int64, contentType string) error {
	return ErrReadOnlyTier
}

// URLFor returns the stored URL unchanged; the locator is the URL.
func (b *RemoteBackend) URLFor(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", ErrNotFound
	}
	return name, nil
}

// Delete is a no-op: this tier is externally owned and never reclaimed
// from here.
func (b *RemoteBackend) Delete(ctx context.Context, name string) error {
	return nil
}

// Exists treats any recorded URL as present; the remote host is
// authoritative once set.
func (b *RemoteBackend) Exists(ctx context.Context, name string) (bool, error) {
	return name != "", nil
}
