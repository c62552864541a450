package models

import "time"

// Episode statuses. Status only moves forward: draft -> processing ->
// {processed | error}, and processed -> published. A published episode
// never returns to processing.
const (
	StatusDraft      = "draft"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusPublished  = "published"
	StatusError      = "error"
)

// Artifact kinds produced for every episode.
const (
	KindAudio = "audio"
	KindCover = "cover"
)

// Episode is the authoritative record for one episode's artifacts and
// lifecycle. The six pointer columns hold one locator per artifact kind
// and storage tier; a nil pointer means no copy exists in that tier.
type Episode struct {
	ID          string  `db:"id"`
	PodcastID   int64   `db:"podcast_id"`
	Title       *string `db:"title"`
	Description *string `db:"description"`
	Status      string  `db:"status"`

	AudioLocal   *string `db:"audio_local"`
	AudioDurable *string `db:"audio_durable"`
	AudioRemote  *string `db:"audio_remote"`
	CoverLocal   *string `db:"cover_local"`
	CoverDurable *string `db:"cover_durable"`
	CoverRemote  *string `db:"cover_remote"`

	PublishAt     *time.Time `db:"publish_at"`
	LastEditedAt  time.Time  `db:"last_edited_at"`
	FailureReason *string    `db:"failure_reason"`

	AudioSizeBytes  *int64 `db:"audio_size_bytes"`
	DurationSeconds *int64 `db:"duration_seconds"`

	// LockVersion guards every update against lost writes. See
	// db.UpdateEpisode.
	LockVersion int64     `db:"lock_version"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// LocalPointer returns the ephemeral-local locator for kind, or nil.
func (e *Episode) LocalPointer(kind string) *string {
	if kind == KindCover {
		return e.CoverLocal
	}
	return e.AudioLocal
}

// DurablePointer returns the durable-temporary locator for kind, or nil.
func (e *Episode) DurablePointer(kind string) *string {
	if kind == KindCover {
		return e.CoverDurable
	}
	return e.AudioDurable
}

// RemotePointer returns the permanent-remote locator for kind, or nil.
func (e *Episode) RemotePointer(kind string) *string {
	if kind == KindCover {
		return e.CoverRemote
	}
	return e.AudioRemote
}

// SetLocalPointer records an ephemeral-local locator for kind.
func (e *Episode) SetLocalPointer(kind string, locator string) {
	if kind == KindCover {
		e.CoverLocal = &locator
		return
	}
	e.AudioLocal = &locator
}

// SetDurablePointer records a durable-temporary locator for kind.
func (e *Episode) SetDurablePointer(kind string, locator string) {
	if kind == KindCover {
		e.CoverDurable = &locator
		return
	}
	e.AudioDurable = &locator
}

// SetRemotePointer records a permanent-remote locator for kind.
func (e *Episode) SetRemotePointer(kind string, locator string) {
	if kind == KindCover {
		e.CoverRemote = &locator
		return
	}
	e.AudioRemote = &locator
}

// ClearDurablePointer drops the durable-temporary locator for kind.
func (e *Episode) ClearDurablePointer(kind string) {
	if kind == KindCover {
		e.CoverDurable = nil
		return
	}
	e.AudioDurable = nil
}
