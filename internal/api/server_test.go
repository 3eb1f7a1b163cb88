package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"pressflow/internal/domain"
	"pressflow/internal/queue"
)

type stubRunner struct {
	ran     int
	itemIDs chan []string
}

func (r *stubRunner) Run(ctx context.Context) (domain.RunSummary, error) {
	r.ran++
	return domain.RunSummary{Published: 1}, nil
}

func (r *stubRunner) RunItems(ctx context.Context, ids []string) domain.RunSummary {
	if r.itemIDs != nil {
		r.itemIDs <- ids
	}
	return domain.RunSummary{}
}

func newTestServer(t *testing.T, secret string) (*httptest.Server, queue.Store, *stubRunner) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, queue.EnsureSchema(db))
	store := queue.NewSQLiteStore(db)

	runner := &stubRunner{itemIDs: make(chan []string, 1)}
	srv := httptest.NewServer(NewServer(store, runner, secret))
	t.Cleanup(srv.Close)
	return srv, store, runner
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createProject(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/projects", map[string]any{
		"name":               "recepten site",
		"site_url":           "https://recepten.example",
		"automation_enabled": true,
		"publish_credential": "app-password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[idResp](t, resp).ID
}

func TestProjectLifecycleHidesCredential(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	id := createProject(t, srv)

	resp, err := http.Get(srv.URL + "/api/projects/" + id)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	view := decode[projectView](t, resp)
	assert.Equal(t, "recepten site", view.Name)
	assert.True(t, view.HasCredential)

	raw, err := http.Get(srv.URL + "/api/projects/" + id)
	require.NoError(t, err)
	var asMap map[string]any
	require.NoError(t, json.NewDecoder(raw.Body).Decode(&asMap))
	raw.Body.Close()
	_, leaked := asMap["publish_credential"]
	assert.False(t, leaked)
}

func TestGetMissingProjectIs404(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	resp, err := http.Get(srv.URL + "/api/projects/prj_missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateScheduleValidatesRecurrence(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	projectID := createProject(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schedules", map[string]any{
		"project_id": projectID,
		"name":       "bad cadence",
		"recurrence": map[string]any{
			"kind":         "custom-days",
			"times_of_day": []string{"09:00"},
			"weekday_set":  []int{},
		},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateScheduleComputesNextRun(t *testing.T) {
	srv, store, _ := newTestServer(t, "")
	projectID := createProject(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/schedules", map[string]any{
		"project_id": projectID,
		"name":       "daily posts",
		"recurrence": map[string]any{
			"kind":         "daily",
			"times_of_day": []string{"09:00"},
		},
		"items_per_run": 2,
		"auto_publish":  true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[idResp](t, resp).ID

	sch, err := store.GetSchedule(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, sch.Enabled)
	assert.True(t, sch.NextRunAt.After(time.Now().Add(-time.Minute)))
	assert.Equal(t, domain.SelectAuto, sch.SelectionMode)
}

func TestDistributeDailyCreatesScheduledItems(t *testing.T) {
	srv, store, _ := newTestServer(t, "")
	projectID := createProject(t, srv)

	var draftIDs []string
	for _, title := range []string{"een", "twee", "drie"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/projects/"+projectID+"/drafts", map[string]any{
			"title":    title,
			"keywords": []string{title},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		draftIDs = append(draftIDs, decode[idResp](t, resp).ID)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/projects/"+projectID+"/distribute", map[string]any{
		"mode":        "daily",
		"draft_ids":   draftIDs,
		"quota":       2,
		"time_of_day": "10:00",
		"start_from":  "2024-01-01T08:00:00Z",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode[distributeResp](t, resp)
	require.Len(t, out.ItemIDs, 3)

	items, err := store.ListItems(context.Background(), projectID, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, domain.StatusScheduled, it.Status)
	}
	// Third item overflows the daily quota of 2 into the next day.
	assert.True(t, items[2].ScheduledFor.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))

	// Distributed drafts leave the backlog.
	remaining, err := store.NextDrafts(context.Background(), projectID, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDistributeBulkTriggersImmediateBatch(t *testing.T) {
	srv, _, runner := newTestServer(t, "")
	projectID := createProject(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/projects/"+projectID+"/drafts", map[string]any{
		"title": "direct",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	draftID := decode[idResp](t, resp).ID

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/projects/"+projectID+"/distribute", map[string]any{
		"mode":            "bulk",
		"draft_ids":       []string{draftID},
		"immediate_batch": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode[distributeResp](t, resp)

	select {
	case got := <-runner.itemIDs:
		assert.Equal(t, out.ItemIDs, got)
	case <-time.After(2 * time.Second):
		t.Fatal("immediate batch never reached the runner")
	}
}

func TestDistributeRejectsUnknownMode(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	projectID := createProject(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/projects/"+projectID+"/distribute", map[string]any{
		"mode":      "hourly",
		"draft_ids": []string{"drf_x"},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPromoteItem(t *testing.T) {
	srv, store, _ := newTestServer(t, "")
	projectID := createProject(t, srv)

	ids, err := store.CreateItems(context.Background(), []domain.QueueItem{{
		ProjectID:    projectID,
		Title:        "parked",
		ScheduledFor: time.Now().Add(time.Hour),
		Status:       domain.StatusQueued,
	}})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/items/"+ids[0]+"/promote", map[string]any{})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	it, err := store.GetItem(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, it.Status)
}

func TestTriggerRunRequiresSecret(t *testing.T) {
	srv, _, runner := newTestServer(t, "hunter2")

	resp, err := http.Post(srv.URL+"/api/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, runner.ran)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/run", nil)
	require.NoError(t, err)
	req.Header.Set("X-Run-Secret", "hunter2")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	summary := decode[domain.RunSummary](t, resp)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, 1, runner.ran)
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
