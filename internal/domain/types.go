// Package domain holds the shared types of the scheduling and publication engine.
package domain

import "time"

type RecurrenceKind string

const (
	KindOnce        RecurrenceKind = "once"
	KindDaily       RecurrenceKind = "daily"
	KindTwiceDaily  RecurrenceKind = "twice-daily"
	KindThreeWeekly RecurrenceKind = "three-weekly"
	KindCustomDays  RecurrenceKind = "custom-days"
	KindWeekly      RecurrenceKind = "weekly"
	KindMonthly     RecurrenceKind = "monthly"
)

// RecurrencePolicy describes when a schedule fires again. Exactly one of
// WeekdaySet/DayOfWeek/DayOfMonth is meaningful per Kind; the cadence
// calculator ignores the irrelevant fields.
type RecurrencePolicy struct {
	Kind       RecurrenceKind
	TimesOfDay []string // "HH:MM"; second entry used only by twice-daily
	WeekdaySet []time.Weekday
	DayOfWeek  time.Weekday
	DayOfMonth int
}

type SelectionMode string

const (
	SelectExplicit SelectionMode = "explicit-list"
	SelectAuto     SelectionMode = "auto-select"
)

// ScheduleConfig is a named recurring job bound to a project. NextRunAt is
// recomputed on every create/update and after every successful fire.
type ScheduleConfig struct {
	ID            string
	ProjectID     string
	Name          string
	Recurrence    RecurrencePolicy
	Enabled       bool
	NextRunAt     time.Time
	LastRunAt     *time.Time
	SelectionMode SelectionMode
	DraftIDs      []string // explicit-list only, in firing order
	ItemsPerRun   int
	AutoPublish   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ItemStatus string

const (
	StatusQueued     ItemStatus = "queued"
	StatusScheduled  ItemStatus = "scheduled"
	StatusGenerating ItemStatus = "generating"
	StatusReady      ItemStatus = "ready"
	StatusPublished  ItemStatus = "published"
	StatusFailed     ItemStatus = "failed"
	StatusSkipped    ItemStatus = "skipped"
)

// QueueItem is one unit of content to be generated and published. Within one
// distribution batch, ScheduledFor never decreases as Position increases.
type QueueItem struct {
	ID           string
	ProjectID    string
	Title        string
	Keywords     []string
	Category     string
	Priority     int
	ScheduledFor time.Time
	Position     int
	Status       ItemStatus
	AutoPublish  bool
	ErrorMessage string
	ExternalID   string
	ExternalURL  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContentDraft is a backlog entry waiting to be picked up by a schedule or a
// manual distribution.
type ContentDraft struct {
	ID        string
	ProjectID string
	Title     string
	Keywords  []string
	Category  string
	Priority  int
	Scheduled bool
	CreatedAt time.Time
}

type SitemapEntry struct {
	URL          string
	LastModified time.Time
}

// SitemapSnapshot is the cached sitemap of a project's target site. It is
// advisory data for duplicate avoidance, fresh for 24 hours.
type SitemapSnapshot struct {
	ProjectID string
	Entries   []SitemapEntry
	ScannedAt time.Time
}

type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ExecutionLogEntry records one executor attempt on a queue item. The log is
// append-only.
type ExecutionLogEntry struct {
	ID        int64
	ItemID    string
	Outcome   Outcome
	Detail    string
	CreatedAt time.Time
}

// Project is the owning website a schedule publishes to.
type Project struct {
	ID                string
	Name              string
	SiteURL           string
	AutomationEnabled bool
	PublishCredential string
	SocialEnabled     bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// GeneratedContent is what the generation collaborator returns. The engine
// does not validate quality.
type GeneratedContent struct {
	Title    string
	Body     string
	Keyword  string
	Metadata map[string]string
}

// PublishReceipt identifies a successfully published post on the target site.
type PublishReceipt struct {
	ExternalID string
	URL        string
}

// ItemResult is the per-item outcome of one executor pass. Warnings carry
// non-critical degradations (stale sitemap, failed cross-post) that do not
// change the outcome.
type ItemResult struct {
	ItemID   string
	Title    string
	Outcome  Outcome
	Detail   string
	Warnings []string
}

// RunSummary aggregates one executor pass.
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Published  int
	Failed     int
	Skipped    int
	Results    []ItemResult
}
