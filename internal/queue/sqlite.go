// Package queue is the SQLite-backed store for projects, drafts, schedules,
// queue items, sitemap snapshots and the execution log.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pressflow/internal/domain"
)

var ErrNotFound = errors.New("not found")

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  site_url TEXT NOT NULL,
  automation_enabled INTEGER NOT NULL DEFAULT 1,
  publish_credential TEXT NOT NULL DEFAULT '',
  social_enabled INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS drafts (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL,
  title TEXT NOT NULL,
  keywords TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  priority INTEGER NOT NULL DEFAULT 5,
  scheduled INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  FOREIGN KEY(project_id) REFERENCES projects(id)
);
CREATE INDEX IF NOT EXISTS idx_drafts_pick ON drafts(project_id, scheduled, priority DESC, created_at);
CREATE TABLE IF NOT EXISTS schedules (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  times_of_day TEXT NOT NULL,
  weekday_set TEXT NOT NULL DEFAULT '',
  day_of_week INTEGER NOT NULL DEFAULT 0,
  day_of_month INTEGER NOT NULL DEFAULT 0,
  enabled INTEGER NOT NULL DEFAULT 1,
  next_run_at DATETIME NOT NULL,
  last_run_at DATETIME,
  selection_mode TEXT NOT NULL DEFAULT 'auto-select',
  draft_ids TEXT NOT NULL DEFAULT '',
  items_per_run INTEGER NOT NULL DEFAULT 1,
  auto_publish INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL,
  FOREIGN KEY(project_id) REFERENCES projects(id)
);
CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules(enabled, next_run_at);
CREATE TABLE IF NOT EXISTS queue_items (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL,
  title TEXT NOT NULL,
  keywords TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  priority INTEGER NOT NULL DEFAULT 5,
  scheduled_for DATETIME NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL CHECK(status IN ('queued','scheduled','generating','ready','published','failed','skipped')) DEFAULT 'queued',
  auto_publish INTEGER NOT NULL DEFAULT 0,
  error_message TEXT NOT NULL DEFAULT '',
  external_id TEXT NOT NULL DEFAULT '',
  external_url TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL,
  FOREIGN KEY(project_id) REFERENCES projects(id)
);
CREATE INDEX IF NOT EXISTS idx_items_due ON queue_items(status, scheduled_for, position);
CREATE TABLE IF NOT EXISTS snapshots (
  project_id TEXT PRIMARY KEY,
  entries BLOB NOT NULL,
  scanned_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS execution_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  item_id TEXT NOT NULL,
  outcome TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_log_item ON execution_log(item_id, created_at);
`
	_, err := db.Exec(schema)
	return err
}

// ItemFields carries the optional columns written together with a status
// transition.
type ItemFields struct {
	ErrorMessage string
	ExternalID   string
	ExternalURL  string
}

type Store interface {
	// Projects
	CreateProject(ctx context.Context, p domain.Project) (string, error)
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	UpdateProject(ctx context.Context, p domain.Project) error

	// Drafts
	CreateDraft(ctx context.Context, d domain.ContentDraft) (string, error)
	ListDrafts(ctx context.Context, projectID string) ([]domain.ContentDraft, error)
	NextDrafts(ctx context.Context, projectID string, limit int) ([]domain.ContentDraft, error)
	GetDrafts(ctx context.Context, ids []string) ([]domain.ContentDraft, error)
	MarkDraftsScheduled(ctx context.Context, ids []string) error

	// Schedules
	CreateSchedule(ctx context.Context, s domain.ScheduleConfig) (string, error)
	GetSchedule(ctx context.Context, id string) (domain.ScheduleConfig, error)
	ListSchedules(ctx context.Context, projectID string) ([]domain.ScheduleConfig, error)
	UpdateSchedule(ctx context.Context, s domain.ScheduleConfig) error
	DeleteSchedule(ctx context.Context, id string) error
	DueSchedules(ctx context.Context, now time.Time) ([]domain.ScheduleConfig, error)
	MarkScheduleFired(ctx context.Context, id string, lastRun, nextRun time.Time) error
	DisableSchedule(ctx context.Context, id string) error

	// Queue items
	CreateItems(ctx context.Context, items []domain.QueueItem) ([]string, error)
	GetItem(ctx context.Context, id string) (domain.QueueItem, error)
	ListItems(ctx context.Context, projectID string, limit int) ([]domain.QueueItem, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.QueueItem, error)
	ClaimItem(ctx context.Context, id string) (domain.QueueItem, bool, error)
	UpdateItemStatus(ctx context.Context, id string, status domain.ItemStatus, fields ItemFields) error
	PromoteItem(ctx context.Context, id string, scheduledFor time.Time) error
	RecoverStale(ctx context.Context, now time.Time, visibility time.Duration) (int, error)

	// Sitemap snapshots
	GetSnapshot(ctx context.Context, projectID string) (domain.SitemapSnapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap domain.SitemapSnapshot) error

	// Execution log (append-only)
	AppendLog(ctx context.Context, e domain.ExecutionLogEntry) error
	ListLog(ctx context.Context, itemID string, limit int) ([]domain.ExecutionLogEntry, error)
}

type sqliteStore struct{ db *sql.DB }

func NewSQLiteStore(db *sql.DB) Store { return &sqliteStore{db: db} }

func (s *sqliteStore) CreateProject(ctx context.Context, p domain.Project) (string, error) {
	id := p.ID
	if id == "" {
		id = "prj_" + uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO projects (id,name,site_url,automation_enabled,publish_credential,social_enabled,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?)`,
		id, p.Name, p.SiteURL, p.AutomationEnabled, p.PublishCredential, p.SocialEnabled, now, now)
	return id, err
}

func (s *sqliteStore) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id,name,site_url,automation_enabled,publish_credential,social_enabled,created_at,updated_at
FROM projects WHERE id=?`, id)
	var p domain.Project
	err := row.Scan(&p.ID, &p.Name, &p.SiteURL, &p.AutomationEnabled, &p.PublishCredential, &p.SocialEnabled, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Project{}, ErrNotFound
	}
	return p, err
}

func (s *sqliteStore) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,name,site_url,automation_enabled,publish_credential,social_enabled,created_at,updated_at
FROM projects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.SiteURL, &p.AutomationEnabled, &p.PublishCredential, &p.SocialEnabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE projects SET name=?,site_url=?,automation_enabled=?,publish_credential=?,social_enabled=?,updated_at=?
WHERE id=?`,
		p.Name, p.SiteURL, p.AutomationEnabled, p.PublishCredential, p.SocialEnabled, time.Now().UTC(), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) CreateDraft(ctx context.Context, d domain.ContentDraft) (string, error) {
	id := d.ID
	if id == "" {
		id = "drf_" + uuid.NewString()
	}
	if d.Priority == 0 {
		d.Priority = 5
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO drafts (id,project_id,title,keywords,category,priority,scheduled,created_at)
VALUES (?,?,?,?,?,?,?,?)`,
		id, d.ProjectID, d.Title, joinList(d.Keywords), d.Category, d.Priority, d.Scheduled, time.Now().UTC())
	return id, err
}

func (s *sqliteStore) ListDrafts(ctx context.Context, projectID string) ([]domain.ContentDraft, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,project_id,title,keywords,category,priority,scheduled,created_at
FROM drafts WHERE project_id=? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDrafts(rows)
}

// NextDrafts returns unscheduled drafts for auto-select, highest priority
// first, oldest first within a priority.
func (s *sqliteStore) NextDrafts(ctx context.Context, projectID string, limit int) ([]domain.ContentDraft, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,project_id,title,keywords,category,priority,scheduled,created_at
FROM drafts WHERE project_id=? AND scheduled=0
ORDER BY priority DESC, created_at ASC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDrafts(rows)
}

// GetDrafts returns the drafts for the given ids, preserving the id order.
// Missing ids are silently dropped.
func (s *sqliteStore) GetDrafts(ctx context.Context, ids []string) ([]domain.ContentDraft, error) {
	out := make([]domain.ContentDraft, 0, len(ids))
	for _, id := range ids {
		row := s.db.QueryRowContext(ctx, `
SELECT id,project_id,title,keywords,category,priority,scheduled,created_at
FROM drafts WHERE id=?`, id)
		d, err := scanDraft(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *sqliteStore) MarkDraftsScheduled(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `UPDATE drafts SET scheduled=1 WHERE id=?`, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) CreateSchedule(ctx context.Context, c domain.ScheduleConfig) (string, error) {
	id := c.ID
	if id == "" {
		id = "sch_" + uuid.NewString()
	}
	if c.ItemsPerRun == 0 {
		c.ItemsPerRun = 1
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO schedules (id,project_id,name,kind,times_of_day,weekday_set,day_of_week,day_of_month,enabled,next_run_at,last_run_at,selection_mode,draft_ids,items_per_run,auto_publish,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, c.ProjectID, c.Name, string(c.Recurrence.Kind), joinList(c.Recurrence.TimesOfDay),
		joinWeekdays(c.Recurrence.WeekdaySet), int(c.Recurrence.DayOfWeek), c.Recurrence.DayOfMonth,
		c.Enabled, c.NextRunAt, c.LastRunAt, string(c.SelectionMode), joinList(c.DraftIDs),
		c.ItemsPerRun, c.AutoPublish, now, now)
	return id, err
}

const scheduleCols = `id,project_id,name,kind,times_of_day,weekday_set,day_of_week,day_of_month,enabled,next_run_at,last_run_at,selection_mode,draft_ids,items_per_run,auto_publish,created_at,updated_at`

func (s *sqliteStore) GetSchedule(ctx context.Context, id string) (domain.ScheduleConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM schedules WHERE id=?`, id)
	c, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return domain.ScheduleConfig{}, ErrNotFound
	}
	return c, err
}

func (s *sqliteStore) ListSchedules(ctx context.Context, projectID string) ([]domain.ScheduleConfig, error) {
	query := `SELECT ` + scheduleCols + ` FROM schedules ORDER BY name`
	args := []any{}
	if projectID != "" {
		query = `SELECT ` + scheduleCols + ` FROM schedules WHERE project_id=? ORDER BY name`
		args = append(args, projectID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScheduleConfig
	for rows.Next() {
		c, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateSchedule(ctx context.Context, c domain.ScheduleConfig) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE schedules SET name=?,kind=?,times_of_day=?,weekday_set=?,day_of_week=?,day_of_month=?,enabled=?,next_run_at=?,selection_mode=?,draft_ids=?,items_per_run=?,auto_publish=?,updated_at=?
WHERE id=?`,
		c.Name, string(c.Recurrence.Kind), joinList(c.Recurrence.TimesOfDay),
		joinWeekdays(c.Recurrence.WeekdaySet), int(c.Recurrence.DayOfWeek), c.Recurrence.DayOfMonth,
		c.Enabled, c.NextRunAt, string(c.SelectionMode), joinList(c.DraftIDs),
		c.ItemsPerRun, c.AutoPublish, time.Now().UTC(), c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteSchedule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id=?`, id)
	return err
}

func (s *sqliteStore) DueSchedules(ctx context.Context, now time.Time) ([]domain.ScheduleConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+scheduleCols+` FROM schedules WHERE enabled=1 AND next_run_at <= ? ORDER BY next_run_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScheduleConfig
	for rows.Next() {
		c, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) MarkScheduleFired(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE schedules SET last_run_at=?,next_run_at=?,updated_at=? WHERE id=?`, lastRun, nextRun, time.Now().UTC(), id)
	return err
}

func (s *sqliteStore) DisableSchedule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE schedules SET enabled=0,updated_at=? WHERE id=?`, time.Now().UTC(), id)
	return err
}

const itemCols = `id,project_id,title,keywords,category,priority,scheduled_for,position,status,auto_publish,error_message,external_id,external_url,created_at,updated_at`

func (s *sqliteStore) CreateItems(ctx context.Context, items []domain.QueueItem) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id := it.ID
		if id == "" {
			id = "itm_" + uuid.NewString()
		}
		if it.Priority == 0 {
			it.Priority = 5
		}
		if it.Status == "" {
			it.Status = domain.StatusQueued
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO queue_items (`+itemCols+`)
VALUES (?,?,?,?,?,?,?,?,?,?,'','','',?,?)`,
			id, it.ProjectID, it.Title, joinList(it.Keywords), it.Category, it.Priority,
			it.ScheduledFor, it.Position, string(it.Status), it.AutoPublish, now, now)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *sqliteStore) GetItem(ctx context.Context, id string) (domain.QueueItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemCols+` FROM queue_items WHERE id=?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return domain.QueueItem{}, ErrNotFound
	}
	return it, err
}

func (s *sqliteStore) ListItems(ctx context.Context, projectID string, limit int) ([]domain.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+itemCols+` FROM queue_items WHERE project_id=? ORDER BY scheduled_for, position LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QueueItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ClaimDue returns due scheduled items in (scheduled_for, position) order,
// atomically transitioning each to generating. A row a concurrent pass
// already claimed is left out, so two overlapping passes never share an item.
func (s *sqliteStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.QueueItem, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
SELECT `+itemCols+` FROM queue_items
WHERE status='scheduled' AND scheduled_for <= ?
ORDER BY scheduled_for, position LIMIT ?`, now, limit)
	if err != nil {
		return nil, err
	}
	candidates := make([]domain.QueueItem, 0, limit)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	claimed := make([]domain.QueueItem, 0, len(candidates))
	for _, it := range candidates {
		res, err := tx.ExecContext(ctx, `
UPDATE queue_items SET status='generating', updated_at=? WHERE id=? AND status='scheduled'`,
			time.Now().UTC(), it.ID)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			it.Status = domain.StatusGenerating
			claimed = append(claimed, it)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claimed, nil
}

// ClaimItem claims one specific item out of the queued or scheduled states.
// Used by the bulk fast path; returns false when another pass got there first
// or the item is past that point of its lifecycle.
func (s *sqliteStore) ClaimItem(ctx context.Context, id string) (domain.QueueItem, bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE queue_items SET status='generating', updated_at=?
WHERE id=? AND status IN ('queued','scheduled')`, time.Now().UTC(), id)
	if err != nil {
		return domain.QueueItem{}, false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.QueueItem{}, false, nil
	}
	it, err := s.GetItem(ctx, id)
	if err != nil {
		return domain.QueueItem{}, false, err
	}
	return it, true, nil
}

func (s *sqliteStore) UpdateItemStatus(ctx context.Context, id string, status domain.ItemStatus, fields ItemFields) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE queue_items SET status=?, error_message=?, external_id=?, external_url=?, updated_at=?
WHERE id=?`,
		string(status), fields.ErrorMessage, fields.ExternalID, fields.ExternalURL, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PromoteItem moves a parked (queued) item into the scheduled state.
func (s *sqliteStore) PromoteItem(ctx context.Context, id string, scheduledFor time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE queue_items SET status='scheduled', scheduled_for=?, updated_at=?
WHERE id=? AND status='queued'`, scheduledFor, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecoverStale re-schedules items stuck in generating longer than the
// visibility window (a crashed executor pass).
func (s *sqliteStore) RecoverStale(ctx context.Context, now time.Time, visibility time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE queue_items SET status='scheduled', updated_at=?
WHERE status='generating' AND updated_at <= ?`, now.UTC(), now.UTC().Add(-visibility))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *sqliteStore) GetSnapshot(ctx context.Context, projectID string) (domain.SitemapSnapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT entries, scanned_at FROM snapshots WHERE project_id=?`, projectID)
	var blob []byte
	snap := domain.SitemapSnapshot{ProjectID: projectID}
	err := row.Scan(&blob, &snap.ScannedAt)
	if err == sql.ErrNoRows {
		return domain.SitemapSnapshot{}, false, nil
	}
	if err != nil {
		return domain.SitemapSnapshot{}, false, err
	}
	if err := json.Unmarshal(blob, &snap.Entries); err != nil {
		return domain.SitemapSnapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap domain.SitemapSnapshot) error {
	blob, err := json.Marshal(snap.Entries)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots (project_id, entries, scanned_at) VALUES (?,?,?)
ON CONFLICT(project_id) DO UPDATE SET entries=excluded.entries, scanned_at=excluded.scanned_at`,
		snap.ProjectID, blob, snap.ScannedAt)
	return err
}

func (s *sqliteStore) AppendLog(ctx context.Context, e domain.ExecutionLogEntry) error {
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO execution_log (item_id, outcome, detail, created_at) VALUES (?,?,?,?)`,
		e.ItemID, string(e.Outcome), e.Detail, ts)
	return err
}

func (s *sqliteStore) ListLog(ctx context.Context, itemID string, limit int) ([]domain.ExecutionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, item_id, outcome, detail, created_at FROM execution_log
WHERE item_id=? ORDER BY id DESC LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExecutionLogEntry
	for rows.Next() {
		var e domain.ExecutionLogEntry
		var outcome string
		if err := rows.Scan(&e.ID, &e.ItemID, &outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Outcome = domain.Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanDraft(row rowScanner) (domain.ContentDraft, error) {
	var d domain.ContentDraft
	var keywords string
	err := row.Scan(&d.ID, &d.ProjectID, &d.Title, &keywords, &d.Category, &d.Priority, &d.Scheduled, &d.CreatedAt)
	if err != nil {
		return domain.ContentDraft{}, err
	}
	d.Keywords = splitList(keywords)
	return d, nil
}

func scanDrafts(rows *sql.Rows) ([]domain.ContentDraft, error) {
	var out []domain.ContentDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanSchedule(row rowScanner) (domain.ScheduleConfig, error) {
	var c domain.ScheduleConfig
	var kind, times, weekdays, mode, draftIDs string
	var dayOfWeek int
	var lastRun sql.NullTime
	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &kind, &times, &weekdays, &dayOfWeek, &c.Recurrence.DayOfMonth,
		&c.Enabled, &c.NextRunAt, &lastRun, &mode, &draftIDs, &c.ItemsPerRun, &c.AutoPublish, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.ScheduleConfig{}, err
	}
	c.Recurrence.Kind = domain.RecurrenceKind(kind)
	c.Recurrence.TimesOfDay = splitList(times)
	c.Recurrence.WeekdaySet = splitWeekdays(weekdays)
	c.Recurrence.DayOfWeek = time.Weekday(dayOfWeek)
	c.SelectionMode = domain.SelectionMode(mode)
	c.DraftIDs = splitList(draftIDs)
	if lastRun.Valid {
		t := lastRun.Time
		c.LastRunAt = &t
	}
	return c, nil
}

func scanItem(row rowScanner) (domain.QueueItem, error) {
	var it domain.QueueItem
	var keywords, status string
	err := row.Scan(&it.ID, &it.ProjectID, &it.Title, &keywords, &it.Category, &it.Priority,
		&it.ScheduledFor, &it.Position, &status, &it.AutoPublish, &it.ErrorMessage,
		&it.ExternalID, &it.ExternalURL, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return domain.QueueItem{}, err
	}
	it.Keywords = splitList(keywords)
	it.Status = domain.ItemStatus(status)
	return it, nil
}

func joinList(vals []string) string { return strings.Join(vals, ",") }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func splitWeekdays(s string) []time.Weekday {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, time.Weekday(n))
	}
	return out
}
