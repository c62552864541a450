package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend keeps artifacts on local disk under a root directory.
// Contents survive process restarts but not host replacement, so
// locators from this tier are advisory only.
type LocalBackend struct {
	root    string
	baseURL string
}

// NewLocalBackend creates the root directory if needed. baseURL is the
// server origin that serves /media/ from the same directory.
func NewLocalBackend(root, baseURL string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalBackend{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// path maps a locator onto the root, rejecting anything that would
// escape it.
func (b *LocalBackend) path(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid local locator %q", name)
	}
	return filepath.Join(b.root, cleaned), nil
}

func (b *LocalBackend) Put(ctx context.Context, name string, src io.Reader, size int64, contentType string) error {
	target, err := b.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(target)
		return fmt.Errorf("write artifact file: %w", err)
	}
	return f.Close()
}

func (b *LocalBackend) URLFor(ctx context.Context, name string) (string, error) {
	target, err := b.path(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat local artifact: %w", err)
	}
	return b.baseURL + "/media/" + name, nil
}

func (b *LocalBackend) Delete(ctx context.Context, name string) error {
	target, err := b.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove local artifact: %w", err)
	}
	return nil
}

func (b *LocalBackend) Exists(ctx context.Context, name string) (bool, error) {
	target, err := b.path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat local artifact: %w", err)
	}
	return true, nil
}

// FilePath exposes the on-disk location for a locator so the HTTP
// layer can serve it directly.
func (b *LocalBackend) FilePath(name string) (string, error) {
	return b.path(name)
}
