package store

import (
	"context"

	"podforge/internal/config"
)

// NewFromConfig wires the three tiers from runtime configuration. The
// local backend is returned separately because the HTTP layer also
// serves its files directly.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Store, *LocalBackend, error) {
	local, err := NewLocalBackend(cfg.MediaDir, cfg.BaseURL)
	if err != nil {
		return nil, nil, err
	}
	durable, err := NewS3Backend(ctx, S3Options{
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		UseSSL:        cfg.S3UseSSL,
		URLTTL:        cfg.S3URLTTL,
		ObjectTTLDays: cfg.S3ObjectTTLDays,
	})
	if err != nil {
		return nil, nil, err
	}
	return New(local, durable, NewRemoteBackend()), local, nil
}
