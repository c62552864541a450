package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/eduncan911/podcast"

	"podforge/internal/models"
	"podforge/internal/resolver"
)

// BaseURL picks the externally visible base URL: the configured one if
// set, otherwise reconstructed from the request.
func BaseURL(r *http.Request, configured string) string {
	if configured != "" {
		return configured
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateRSS renders the feed of a podcast's published episodes. Every
// enclosure URL comes from the resolver; episodes whose audio does not
// resolve are skipped so the feed never carries a dead link.
func GenerateRSS(ctx context.Context, pod *models.Podcast, episodes []models.Episode, res *resolver.Resolver, baseURL string) (string, error) {
	now := time.Now()
	p := podcast.New(
		pod.Title,
		fmt.Sprintf("%s/rss/%s", baseURL, pod.RSSUUID),
		pod.Description,
		&pod.CreatedAt, &now,
	)
	if pod.Author != "" {
		p.IAuthor = pod.Author
	}

	for i := range episodes {
		ep := &episodes[i]

		audioURL, err := res.Resolve(ctx, ep, models.KindAudio)
		if err != nil {
			if errors.Is(err, resolver.ErrUnavailable) {
				log.Printf("Feed: episode %s has no playable audio, skipping", ep.ID)
				continue
			}
			return "", fmt.Errorf("resolving audio for episode %s: %w", ep.ID, err)
		}

		title := "Untitled episode"
		if ep.Title != nil && *ep.Title != "" {
			title = *ep.Title
		}
		description := title
		if ep.Description != nil && *ep.Description != "" {
			description = *ep.Description
		}

		item := podcast.Item{
			Title:       title,
			Description: description,
			PubDate:     ep.PublishAt,
		}
		var size int64
		if ep.AudioSizeBytes != nil {
			size = *ep.AudioSizeBytes
		}
		item.AddEnclosure(audioURL, enclosureType(audioURL), size)
		if ep.DurationSeconds != nil {
			item.AddDuration(*ep.DurationSeconds)
		}
		if coverURL, err := res.Resolve(ctx, ep, models.KindCover); err == nil {
			item.AddImage(coverURL)
		}

		if _, err := p.AddItem(item); err != nil {
			return "", fmt.Errorf("adding episode %s to feed: %w", ep.ID, err)
		}
	}

	return p.String(), nil
}

// enclosureType maps the URL's path extension to an RSS enclosure type.
// Signed URLs carry query strings, so those are stripped first.
func enclosureType(u string) podcast.EnclosureType {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if strings.HasSuffix(u, ".mp3") {
		return podcast.MP3
	}
	return podcast.M4A
}
