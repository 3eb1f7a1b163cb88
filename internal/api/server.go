// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"pressflow/internal/cadence"
	"pressflow/internal/distribute"
	"pressflow/internal/domain"
	"pressflow/internal/metrics"
	"pressflow/internal/queue"
)

// Runner is the executor surface the API needs: a full pass and the bulk
// fast path.
type Runner interface {
	Run(ctx context.Context) (domain.RunSummary, error)
	RunItems(ctx context.Context, ids []string) domain.RunSummary
}

type Server struct {
	r         *chi.Mux
	store     queue.Store
	runner    Runner
	runSecret string
}

func NewServer(store queue.Store, runner Runner, runSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, store: store, runner: runner, runSecret: runSecret}

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/api/projects", s.createProject)
	r.Get("/api/projects", s.listProjects)
	r.Get("/api/projects/{id}", s.getProject)
	r.Put("/api/projects/{id}", s.updateProject)
	r.Post("/api/projects/{id}/drafts", s.createDraft)
	r.Get("/api/projects/{id}/drafts", s.listDrafts)
	r.Post("/api/projects/{id}/distribute", s.distributeDrafts)
	r.Get("/api/projects/{id}/items", s.listItems)

	r.Post("/api/schedules", s.createSchedule)
	r.Get("/api/schedules", s.listSchedules)
	r.Get("/api/schedules/{id}", s.getSchedule)
	r.Put("/api/schedules/{id}", s.updateSchedule)
	r.Delete("/api/schedules/{id}", s.deleteSchedule)

	r.Get("/api/items/{id}", s.getItem)
	r.Post("/api/items/{id}/promote", s.promoteItem)
	r.Get("/api/items/{id}/log", s.listItemLog)

	r.Post("/api/run", s.triggerRun)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Projects

type projectReq struct {
	Name              string `json:"name"`
	SiteURL           string `json:"site_url"`
	AutomationEnabled bool   `json:"automation_enabled"`
	PublishCredential string `json:"publish_credential"`
	SocialEnabled     bool   `json:"social_enabled"`
}

type idResp struct {
	ID string `json:"id"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name == "" || req.SiteURL == "" {
		http.Error(w, "name and site_url are required", 400)
		return
	}
	id, err := s.store.CreateProject(r.Context(), domain.Project{
		Name:              req.Name,
		SiteURL:           req.SiteURL,
		AutomationEnabled: req.AutomationEnabled,
		PublishCredential: req.PublishCredential,
		SocialEnabled:     req.SocialEnabled,
	})
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, idResp{ID: id})
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	out := make([]projectView, len(projects))
	for i, p := range projects {
		out[i] = viewProject(p)
	}
	writeJSON(w, 200, out)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, 200, viewProject(p))
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	var req projectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.SiteURL != "" {
		p.SiteURL = req.SiteURL
	}
	if req.PublishCredential != "" {
		p.PublishCredential = req.PublishCredential
	}
	p.AutomationEnabled = req.AutomationEnabled
	p.SocialEnabled = req.SocialEnabled
	if err := s.store.UpdateProject(r.Context(), p); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, 200, viewProject(p))
}

// projectView hides the publish credential from API responses.
type projectView struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	SiteURL           string `json:"site_url"`
	AutomationEnabled bool   `json:"automation_enabled"`
	HasCredential     bool   `json:"has_credential"`
	SocialEnabled     bool   `json:"social_enabled"`
	CreatedAt         string `json:"created_at"`
}

func viewProject(p domain.Project) projectView {
	return projectView{
		ID:                p.ID,
		Name:              p.Name,
		SiteURL:           p.SiteURL,
		AutomationEnabled: p.AutomationEnabled,
		HasCredential:     p.PublishCredential != "",
		SocialEnabled:     p.SocialEnabled,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
	}
}

// Drafts

type draftReq struct {
	Title    string   `json:"title"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
	Priority int      `json:"priority"`
}

func (s *Server) createDraft(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.storeError(w, err)
		return
	}
	var req draftReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", 400)
		return
	}
	id, err := s.store.CreateDraft(r.Context(), domain.ContentDraft{
		ProjectID: projectID,
		Title:     req.Title,
		Keywords:  req.Keywords,
		Category:  req.Category,
		Priority:  req.Priority,
	})
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, idResp{ID: id})
}

func (s *Server) listDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.store.ListDrafts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, drafts)
}

// Distribution

type distributeReq struct {
	Mode            string   `json:"mode"`
	DraftIDs        []string `json:"draft_ids"`
	AutoPublish     bool     `json:"auto_publish"`
	StartFrom       string   `json:"start_from"` // RFC3339, defaults to now
	ImmediateBatch  int      `json:"immediate_batch"`
	Quota           int      `json:"quota"`
	TimeOfDay       string   `json:"time_of_day"`
	SubSlotMinutes  int      `json:"sub_slot_minutes"`
	AllowedWeekdays []int    `json:"allowed_weekdays"`
}

type distributeResp struct {
	ItemIDs []string `json:"item_ids"`
}

func (s *Server) distributeDrafts(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.storeError(w, err)
		return
	}

	var req distributeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if len(req.DraftIDs) == 0 {
		http.Error(w, "draft_ids is required", 400)
		return
	}

	policy, err := buildPolicy(req)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	startFrom := time.Now().UTC()
	if req.StartFrom != "" {
		startFrom, err = time.Parse(time.RFC3339, req.StartFrom)
		if err != nil {
			http.Error(w, "invalid start_from: "+err.Error(), 400)
			return
		}
	}

	drafts, err := s.store.GetDrafts(r.Context(), req.DraftIDs)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if len(drafts) == 0 {
		http.Error(w, "no matching drafts", 400)
		return
	}

	items, err := distribute.Distribute(drafts, policy, startFrom)
	if err != nil {
		if errors.Is(err, distribute.ErrInvalidPolicy) {
			http.Error(w, err.Error(), 400)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	for i := range items {
		items[i].AutoPublish = req.AutoPublish
	}

	ids, err := s.store.CreateItems(r.Context(), items)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	draftIDs := make([]string, len(drafts))
	for i, d := range drafts {
		draftIDs[i] = d.ID
	}
	if err := s.store.MarkDraftsScheduled(r.Context(), draftIDs); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	// Bulk mode hands the leading batch to the executor right away. The run
	// is detached: its outcome lands in the execution log, not this response.
	if bulk, ok := policy.(distribute.Bulk); ok && bulk.ImmediateBatch > 0 && s.runner != nil {
		batch := ids
		if len(batch) > bulk.ImmediateBatch {
			batch = batch[:bulk.ImmediateBatch]
		}
		go func(ids []string) {
			summary := s.runner.RunItems(context.Background(), ids)
			log.Info().Int("published", summary.Published).Int("failed", summary.Failed).
				Int("skipped", summary.Skipped).Msg("immediate batch finished")
		}(batch)
	}

	writeJSON(w, http.StatusCreated, distributeResp{ItemIDs: ids})
}

func buildPolicy(req distributeReq) (distribute.Policy, error) {
	switch req.Mode {
	case "bulk":
		return distribute.Bulk{ImmediateBatch: req.ImmediateBatch}, nil
	case "daily":
		return distribute.Daily{
			Quota:          req.Quota,
			TimeOfDay:      req.TimeOfDay,
			SubSlotMinutes: req.SubSlotMinutes,
		}, nil
	case "weekly":
		days := make([]time.Weekday, len(req.AllowedWeekdays))
		for i, d := range req.AllowedWeekdays {
			days[i] = time.Weekday(d)
		}
		return distribute.Weekly{
			Quota:           req.Quota,
			AllowedWeekdays: days,
			TimeOfDay:       req.TimeOfDay,
		}, nil
	default:
		return nil, errors.New("mode must be bulk, daily or weekly")
	}
}

// Schedules

type scheduleReq struct {
	ProjectID     string        `json:"project_id"`
	Name          string        `json:"name"`
	Recurrence    recurrenceReq `json:"recurrence"`
	Enabled       *bool         `json:"enabled"`
	SelectionMode string        `json:"selection_mode"`
	DraftIDs      []string      `json:"draft_ids"`
	ItemsPerRun   int           `json:"items_per_run"`
	AutoPublish   bool          `json:"auto_publish"`
}

type recurrenceReq struct {
	Kind       string   `json:"kind"`
	TimesOfDay []string `json:"times_of_day"`
	WeekdaySet []int    `json:"weekday_set"`
	DayOfWeek  int      `json:"day_of_week"`
	DayOfMonth int      `json:"day_of_month"`
}

func (r recurrenceReq) toPolicy() domain.RecurrencePolicy {
	set := make([]time.Weekday, len(r.WeekdaySet))
	for i, d := range r.WeekdaySet {
		set[i] = time.Weekday(d)
	}
	return domain.RecurrencePolicy{
		Kind:       domain.RecurrenceKind(r.Kind),
		TimesOfDay: r.TimesOfDay,
		WeekdaySet: set,
		DayOfWeek:  time.Weekday(r.DayOfWeek),
		DayOfMonth: r.DayOfMonth,
	}
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	if req.ProjectID == "" {
		http.Error(w, "project_id is required", 400)
		return
	}
	if _, err := s.store.GetProject(r.Context(), req.ProjectID); err != nil {
		s.storeError(w, err)
		return
	}

	policy := req.Recurrence.toPolicy()
	if err := cadence.Validate(policy); err != nil {
		http.Error(w, "invalid recurrence: "+err.Error(), 400)
		return
	}
	nextRun, err := cadence.NextRunForConfig(policy, time.Now().UTC())
	if err != nil {
		http.Error(w, "invalid recurrence: "+err.Error(), 400)
		return
	}

	mode := domain.SelectionMode(req.SelectionMode)
	if mode == "" {
		mode = domain.SelectAuto
	}
	if mode == domain.SelectExplicit && len(req.DraftIDs) == 0 {
		http.Error(w, "draft_ids is required for explicit selection", 400)
		return
	}

	itemsPerRun := req.ItemsPerRun
	if itemsPerRun <= 0 {
		itemsPerRun = 1
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	id, err := s.store.CreateSchedule(r.Context(), domain.ScheduleConfig{
		ProjectID:     req.ProjectID,
		Name:          req.Name,
		Recurrence:    policy,
		Enabled:       enabled,
		NextRunAt:     nextRun,
		SelectionMode: mode,
		DraftIDs:      req.DraftIDs,
		ItemsPerRun:   itemsPerRun,
		AutoPublish:   req.AutoPublish,
	})
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, idResp{ID: id})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.store.ListSchedules(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, schedules)
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	sch, err := s.store.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, 200, sch)
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	sch, err := s.store.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	if req.Name != "" {
		sch.Name = req.Name
	}
	if req.Recurrence.Kind != "" {
		policy := req.Recurrence.toPolicy()
		if err := cadence.Validate(policy); err != nil {
			http.Error(w, "invalid recurrence: "+err.Error(), 400)
			return
		}
		nextRun, err := cadence.NextRunForConfig(policy, time.Now().UTC())
		if err != nil {
			http.Error(w, "invalid recurrence: "+err.Error(), 400)
			return
		}
		sch.Recurrence = policy
		sch.NextRunAt = nextRun
	}
	if req.SelectionMode != "" {
		sch.SelectionMode = domain.SelectionMode(req.SelectionMode)
	}
	if req.DraftIDs != nil {
		sch.DraftIDs = req.DraftIDs
	}
	if req.ItemsPerRun > 0 {
		sch.ItemsPerRun = req.ItemsPerRun
	}
	if req.Enabled != nil {
		sch.Enabled = *req.Enabled
	}
	sch.AutoPublish = req.AutoPublish

	if err := s.store.UpdateSchedule(r.Context(), sch); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, 200, sch)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Items

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.store.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, 200, it)
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context(), chi.URLParam(r, "id"), 200)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, items)
}

type promoteReq struct {
	ScheduledFor string `json:"scheduled_for"` // RFC3339, defaults to now
}

func (s *Server) promoteItem(w http.ResponseWriter, r *http.Request) {
	var req promoteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), 400)
		return
	}
	when := time.Now().UTC()
	if req.ScheduledFor != "" {
		var err error
		when, err = time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			http.Error(w, "invalid scheduled_for: "+err.Error(), 400)
			return
		}
	}
	if err := s.store.PromoteItem(r.Context(), chi.URLParam(r, "id"), when); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listItemLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListLog(r.Context(), chi.URLParam(r, "id"), 100)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, entries)
}

// Manual run trigger

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	if s.runSecret != "" {
		got := r.Header.Get("X-Run-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.runSecret)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}
	summary, err := s.runner.Run(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, summary)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, queue.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	http.Error(w, err.Error(), 500)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
