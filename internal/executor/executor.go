// Package executor drives due queue items through generation, duplicate
// checking and publication.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pressflow/internal/dedupe"
	"pressflow/internal/domain"
	"pressflow/internal/metrics"
	"pressflow/internal/queue"
)

// GenerationRequest is the input handed to the generation collaborator.
type GenerationRequest struct {
	Title    string
	Keywords []string
	Category string
}

// Generator produces article content for a queue item.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (domain.GeneratedContent, error)
}

// Publisher pushes generated content to the project's target site.
type Publisher interface {
	Publish(ctx context.Context, project domain.Project, content domain.GeneratedContent) (domain.PublishReceipt, error)
}

// SocialPoster cross-posts a published article to social platforms. It is a
// best-effort side task: failures become warnings, never item failures.
type SocialPoster interface {
	CrossPost(ctx context.Context, project domain.Project, receipt domain.PublishReceipt, content domain.GeneratedContent) error
}

// SnapshotSource serves the project's sitemap snapshot for duplicate checks.
// A non-empty warning marks a degraded (stale or empty) snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context, project domain.Project) (domain.SitemapSnapshot, string)
}

type Config struct {
	BatchLimit     int           // max items claimed per pass
	ItemDelay      time.Duration // throttle between items
	GenTimeout     time.Duration
	PublishTimeout time.Duration
}

func (c *Config) fillDefaults() {
	if c.BatchLimit <= 0 {
		c.BatchLimit = 50
	}
	if c.GenTimeout <= 0 {
		c.GenTimeout = 60 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 30 * time.Second
	}
}

// Executor processes claimed items sequentially. Sequential processing keeps
// ordering of log entries aligned with real time and avoids concurrent writes
// against the store; the per-item claim in the store keeps overlapping passes
// from sharing work.
type Executor struct {
	store     queue.Store
	generator Generator
	publisher Publisher
	social    SocialPoster
	snapshots SnapshotSource
	cfg       Config
	now       func() time.Time
}

func New(store queue.Store, gen Generator, pub Publisher, social SocialPoster, snapshots SnapshotSource, cfg Config) *Executor {
	cfg.fillDefaults()
	return &Executor{
		store:     store,
		generator: gen,
		publisher: pub,
		social:    social,
		snapshots: snapshots,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run executes one pass over the due queue. Per-item errors are isolated into
// the summary; only a store failure fetching the batch aborts the pass so the
// trigger can retry it.
func (e *Executor) Run(ctx context.Context) (domain.RunSummary, error) {
	started := e.now()
	items, err := e.store.ClaimDue(ctx, started, e.cfg.BatchLimit)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("claim due items: %w", err)
	}
	summary := e.process(ctx, items)
	summary.StartedAt = started
	summary.FinishedAt = e.now()
	metrics.RunDuration.Observe(summary.FinishedAt.Sub(started).Seconds())

	log.Info().
		Int("published", summary.Published).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("took", summary.FinishedAt.Sub(started)).
		Msg("executor pass finished")
	return summary, nil
}

// RunItems is the bulk fast path: it claims the named items directly instead
// of waiting for the periodic scan. Items already claimed elsewhere are
// silently left alone.
func (e *Executor) RunItems(ctx context.Context, ids []string) domain.RunSummary {
	started := e.now()
	var items []domain.QueueItem
	for _, id := range ids {
		it, ok, err := e.store.ClaimItem(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("item_id", id).Msg("claim failed")
			continue
		}
		if ok {
			items = append(items, it)
		}
	}
	summary := e.process(ctx, items)
	summary.StartedAt = started
	summary.FinishedAt = e.now()
	return summary
}

func (e *Executor) process(ctx context.Context, items []domain.QueueItem) domain.RunSummary {
	var summary domain.RunSummary
	for i, it := range items {
		if i > 0 && e.cfg.ItemDelay > 0 {
			select {
			case <-ctx.Done():
				return summary
			case <-time.After(e.cfg.ItemDelay):
			}
		}
		res := e.processItem(ctx, it)
		summary.Results = append(summary.Results, res)
		switch res.Outcome {
		case domain.OutcomePublished:
			summary.Published++
		case domain.OutcomeFailed:
			summary.Failed++
		case domain.OutcomeSkipped:
			summary.Skipped++
		}
		metrics.ItemOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	}
	return summary
}

func (e *Executor) processItem(ctx context.Context, it domain.QueueItem) domain.ItemResult {
	logger := log.With().Str("item_id", it.ID).Str("title", it.Title).Logger()

	project, err := e.store.GetProject(ctx, it.ProjectID)
	if err != nil {
		return e.fail(ctx, it, nil, fmt.Sprintf("load project: %v", err))
	}

	// Prerequisites: configuration gaps are expected in normal operation and
	// never count as item errors.
	if reason := missingPrerequisite(project, it); reason != "" {
		logger.Info().Str("reason", reason).Msg("item skipped")
		return e.skip(ctx, it, nil, reason)
	}

	gctx, cancel := context.WithTimeout(ctx, e.cfg.GenTimeout)
	content, err := e.generator.Generate(gctx, GenerationRequest{
		Title:    it.Title,
		Keywords: it.Keywords,
		Category: it.Category,
	})
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("generation failed")
		return e.fail(ctx, it, nil, fmt.Sprintf("generate: %v", err))
	}

	var warnings []string
	snapshot, warn := e.snapshots.Snapshot(ctx, project)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	keyword := content.Keyword
	if keyword == "" && len(it.Keywords) > 0 {
		keyword = it.Keywords[0]
	}
	if verdict := dedupe.Check(content.Title, keyword, snapshot); verdict.IsDuplicate {
		reason := fmt.Sprintf("duplicate content (%s): %s", verdict.Reason, verdict.MatchedURL)
		logger.Info().Str("matched_url", verdict.MatchedURL).Msg("duplicate, discarding generated content")
		return e.skip(ctx, it, warnings, reason)
	}

	if err := e.store.UpdateItemStatus(ctx, it.ID, domain.StatusReady, queue.ItemFields{}); err != nil {
		logger.Error().Err(err).Msg("status update failed")
	}

	pctx, cancel := context.WithTimeout(ctx, e.cfg.PublishTimeout)
	receipt, err := e.publisher.Publish(pctx, project, content)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("publication failed")
		return e.fail(ctx, it, warnings, fmt.Sprintf("publish: %v", err))
	}

	if err := e.store.UpdateItemStatus(ctx, it.ID, domain.StatusPublished, queue.ItemFields{
		ExternalID:  receipt.ExternalID,
		ExternalURL: receipt.URL,
	}); err != nil {
		logger.Error().Err(err).Msg("status update failed")
	}
	e.appendLog(ctx, it.ID, domain.OutcomePublished, receipt.URL)
	logger.Info().Str("url", receipt.URL).Msg("item published")

	if project.SocialEnabled && e.social != nil {
		if err := e.social.CrossPost(ctx, project, receipt, content); err != nil {
			logger.Warn().Err(err).Msg("social cross-post failed")
			warnings = append(warnings, fmt.Sprintf("social cross-post failed: %v", err))
		}
	}

	return domain.ItemResult{
		ItemID:   it.ID,
		Title:    it.Title,
		Outcome:  domain.OutcomePublished,
		Detail:   receipt.URL,
		Warnings: warnings,
	}
}

func missingPrerequisite(project domain.Project, it domain.QueueItem) string {
	switch {
	case !project.AutomationEnabled:
		return "automation disabled for project"
	case project.PublishCredential == "":
		return "no publish credentials configured"
	case !it.AutoPublish:
		return "auto-publish disabled for item"
	}
	return ""
}

func (e *Executor) skip(ctx context.Context, it domain.QueueItem, warnings []string, reason string) domain.ItemResult {
	if err := e.store.UpdateItemStatus(ctx, it.ID, domain.StatusSkipped, queue.ItemFields{ErrorMessage: reason}); err != nil {
		log.Error().Err(err).Str("item_id", it.ID).Msg("status update failed")
	}
	e.appendLog(ctx, it.ID, domain.OutcomeSkipped, reason)
	return domain.ItemResult{ItemID: it.ID, Title: it.Title, Outcome: domain.OutcomeSkipped, Detail: reason, Warnings: warnings}
}

func (e *Executor) fail(ctx context.Context, it domain.QueueItem, warnings []string, msg string) domain.ItemResult {
	if err := e.store.UpdateItemStatus(ctx, it.ID, domain.StatusFailed, queue.ItemFields{ErrorMessage: msg}); err != nil {
		log.Error().Err(err).Str("item_id", it.ID).Msg("status update failed")
	}
	e.appendLog(ctx, it.ID, domain.OutcomeFailed, msg)
	return domain.ItemResult{ItemID: it.ID, Title: it.Title, Outcome: domain.OutcomeFailed, Detail: msg, Warnings: warnings}
}

func (e *Executor) appendLog(ctx context.Context, itemID string, outcome domain.Outcome, detail string) {
	if err := e.store.AppendLog(ctx, domain.ExecutionLogEntry{ItemID: itemID, Outcome: outcome, Detail: detail}); err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("execution log append failed")
	}
}
