package models

import "time"

// Podcast is a show owning episodes. APIToken authenticates the
// management surface; RSSUUID is the unguessable feed path segment.
type Podcast struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Author      string    `db:"author" json:"author"`
	APIToken    string    `db:"api_token" json:"api_token"`
	RSSUUID     string    `db:"rss_uuid" json:"rss_uuid"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
