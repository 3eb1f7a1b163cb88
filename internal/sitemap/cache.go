package sitemap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"pressflow/internal/domain"
)

// Freshness is how long a snapshot is served without a refresh attempt.
const Freshness = 24 * time.Hour

// Fetcher retrieves the raw sitemap document for a site.
type Fetcher interface {
	Fetch(ctx context.Context, siteURL string) (io.ReadCloser, error)
}

// Store persists snapshots per project.
type Store interface {
	GetSnapshot(ctx context.Context, projectID string) (domain.SitemapSnapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap domain.SitemapSnapshot) error
}

// Cache serves project snapshots, refreshing stale ones opportunistically.
// Refresh failures fall back to the stale copy, or an empty snapshot when
// none exists; duplicate detection fails open on an empty snapshot. That is a
// product choice, not an oversight: occasional duplicate content is preferred
// over blocking generation entirely.
type Cache struct {
	store   Store
	fetcher Fetcher
	now     func() time.Time
}

func NewCache(store Store, fetcher Fetcher) *Cache {
	return &Cache{store: store, fetcher: fetcher, now: time.Now}
}

// Snapshot returns the freshest snapshot available for the project. A
// non-empty warning reports a degraded result (stale or empty after a failed
// refresh); it never blocks the caller.
func (c *Cache) Snapshot(ctx context.Context, project domain.Project) (domain.SitemapSnapshot, string) {
	cached, found, err := c.store.GetSnapshot(ctx, project.ID)
	if err != nil {
		log.Warn().Err(err).Str("project_id", project.ID).Msg("snapshot lookup failed")
		found = false
	}
	if found && c.now().Sub(cached.ScannedAt) < Freshness {
		return cached, ""
	}

	fresh, err := c.refresh(ctx, project)
	if err != nil {
		log.Warn().Err(err).Str("project_id", project.ID).Str("site_url", project.SiteURL).
			Msg("sitemap refresh failed, falling back")
		if found {
			return cached, fmt.Sprintf("sitemap refresh failed, using stale snapshot: %v", err)
		}
		return domain.SitemapSnapshot{ProjectID: project.ID}, fmt.Sprintf("sitemap unavailable: %v", err)
	}

	if err := c.store.SaveSnapshot(ctx, fresh); err != nil {
		// Last writer wins; the data is advisory, so a lost write only costs
		// a re-fetch next time.
		log.Warn().Err(err).Str("project_id", project.ID).Msg("snapshot save failed")
	}
	return fresh, ""
}

func (c *Cache) refresh(ctx context.Context, project domain.Project) (domain.SitemapSnapshot, error) {
	body, err := c.fetcher.Fetch(ctx, project.SiteURL)
	if err != nil {
		return domain.SitemapSnapshot{}, err
	}
	defer body.Close()

	entries, err := Parse(body)
	if err != nil {
		return domain.SitemapSnapshot{}, fmt.Errorf("parse sitemap: %w", err)
	}
	log.Debug().Str("project_id", project.ID).Int("urls", len(entries)).Msg("sitemap refreshed")
	return domain.SitemapSnapshot{ProjectID: project.ID, Entries: entries, ScannedAt: c.now()}, nil
}
