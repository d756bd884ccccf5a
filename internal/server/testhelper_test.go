package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/searchai/api/internal/handler"
	"github.com/searchai/api/internal/middleware"
	"github.com/searchai/api/internal/model"
	"github.com/searchai/api/internal/service"
	"github.com/searchai/api/internal/store"
	ws "github.com/searchai/api/internal/websocket"
)

const testJWTSecret = "test-secret"

// memJobs keeps job records in memory in place of Redis
type memJobs struct {
	mu   sync.Mutex
	jobs map[string]model.SearchJob
}

func (m *memJobs) Create(_ context.Context, job *model.SearchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) Get(_ context.Context, id string) (*model.SearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &job, nil
}

func (m *memJobs) Update(_ context.Context, id string, fn func(*model.SearchJob) error) (*model.SearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := fn(&job); err != nil {
		return nil, err
	}
	m.jobs[id] = job
	return &job, nil
}

// idleQueue accepts tasks but never runs them
type idleQueue struct{}

func (idleQueue) EnqueueSearch(context.Context, model.SearchTaskPayload) error { return nil }
func (idleQueue) Cancel(context.Context, string) (bool, error)                 { return false, nil }

type testApp struct {
	app      *fiber.App
	searches *service.SearchService
	results  *service.ResultService
	healthy  bool
}

type appOption func(*Deps)

func withAuth(d *Deps) {
	d.Auth = middleware.NewAuthMiddleware(testJWTSecret)
}

// setupApp builds the app on in-memory jobs, a temp SQLite store and no
// LLM, so every service takes its fallback path.
func setupApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()

	db, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)

	ta := &testApp{healthy: true}
	ta.results = service.NewResultService(store.NewResultStore(db), nil)
	ta.searches = service.NewSearchService(&memJobs{jobs: make(map[string]model.SearchJob)}, idleQueue{}, hub, ta.results)
	ta.searches.SetWaitInterval(10 * time.Millisecond)

	health := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"sqlite": db.PingContext,
		"redis": func(context.Context) error {
			if !ta.healthy {
				return errors.New("connection refused")
			}
			return nil
		},
	}, map[string]bool{"llm": false, "archive": false, "auth": false})

	deps := Deps{
		Searches:    ta.searches,
		Results:     ta.results,
		Contexts:    service.NewContextService(ta.results, nil),
		Hub:         hub,
		Health:      health,
		Auth:        middleware.NewAuthMiddleware(""),
		SyncTimeout: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	ta.app = New(deps)
	return ta
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// request performs a request that must not fail at the transport level
func request(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(app, method, path, body, nil)
	require.NoError(t, err)
	return resp
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(b, &result), "body: %s", b)
	return result
}

// errorCode extracts error.code from the error envelope
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ := envelope["code"].(string)
	return code
}

func saveResult(t *testing.T, ta *testApp, id, query string, urls ...string) {
	t.Helper()
	r := &model.SearchResult{
		ID:        id,
		SearchID:  "job-" + id,
		Query:     query,
		Summary:   "Summary for " + query,
		Status:    model.JobStatusCompleted,
		CreatedAt: time.Now(),
	}
	for _, u := range urls {
		r.Sources = append(r.Sources, model.Source{URL: u, Content: "content of " + u, ScrapedAt: time.Now()})
	}
	require.NoError(t, ta.results.Save(context.Background(), r))
}
