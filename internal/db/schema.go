package db

import "fmt"

// Schema statements are idempotent so every binary can apply them at
// startup without coordination.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS podcasts (
		id          BIGSERIAL PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		author      TEXT NOT NULL DEFAULT '',
		api_token   TEXT NOT NULL UNIQUE,
		rss_uuid    TEXT NOT NULL UNIQUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS episodes (
		id             TEXT PRIMARY KEY,
		podcast_id     BIGINT NOT NULL REFERENCES podcasts(id) ON DELETE CASCADE,
		title          TEXT,
		description    TEXT,
		status         TEXT NOT NULL DEFAULT 'draft',
		audio_local    TEXT,
		audio_durable  TEXT,
		audio_remote   TEXT,
		cover_local    TEXT,
		cover_durable  TEXT,
		cover_remote   TEXT,
		publish_at     TIMESTAMPTZ,
		last_edited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		failure_reason TEXT,
		audio_size_bytes BIGINT,
		duration_seconds BIGINT,
		lock_version   BIGINT NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS episodes_podcast_status_idx ON episodes (podcast_id, status)`,
	`CREATE INDEX IF NOT EXISTS episodes_status_publish_at_idx ON episodes (status, publish_at)`,
	`CREATE TABLE IF NOT EXISTS job_runs (
		name        TEXT PRIMARY KEY,
		last_run_at TIMESTAMPTZ NOT NULL,
		succeeded   BIGINT NOT NULL DEFAULT 0,
		failed      BIGINT NOT NULL DEFAULT 0,
		notes       TEXT
	)`,
}

// Migrate applies the schema statements in order.
func Migrate() error {
	for _, stmt := range schemaStatements {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
