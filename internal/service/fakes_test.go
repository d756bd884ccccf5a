package service

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/searchai/api/internal/model"
	"github.com/searchai/api/internal/store"
)

// memJobs is an in-memory JobRepository
type memJobs struct {
	mu   sync.Mutex
	jobs map[string][]byte
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string][]byte)}
}

func (m *memJobs) Create(_ context.Context, job *model.SearchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := json.Marshal(job)
	m.jobs[job.ID] = data
	return nil
}

func (m *memJobs) Get(_ context.Context, id string) (*model.SearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	var job model.SearchJob
	_ = json.Unmarshal(data, &job)
	return &job, nil
}

func (m *memJobs) Update(_ context.Context, id string, fn func(*model.SearchJob) error) (*model.SearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	var job model.SearchJob
	_ = json.Unmarshal(data, &job)
	if err := fn(&job); err != nil {
		return nil, err
	}
	data, _ = json.Marshal(&job)
	m.jobs[id] = data
	return &job, nil
}

func (m *memJobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// fakeQueue records enqueued tasks
type fakeQueue struct {
	mu        sync.Mutex
	enqueued  []model.SearchTaskPayload
	cancelled []string
	dequeue   bool
	onEnqueue func(model.SearchTaskPayload)
}

func (q *fakeQueue) EnqueueSearch(_ context.Context, p model.SearchTaskPayload) error {
	q.mu.Lock()
	q.enqueued = append(q.enqueued, p)
	hook := q.onEnqueue
	q.mu.Unlock()
	if hook != nil {
		go hook(p)
	}
	return nil
}

func (q *fakeQueue) Cancel(_ context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = append(q.cancelled, jobID)
	return q.dequeue, nil
}

// eventRecorder collects published events
type eventRecorder struct {
	mu     sync.Mutex
	events []model.JobEvent
}

func (r *eventRecorder) Publish(_ context.Context, e model.JobEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) last() model.JobEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// fakeLLM returns a canned answer and records prompts
type fakeLLM struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeLLM) ChatCompletion(_ context.Context, _, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, user)
	return f.answer, f.err
}

func (f *fakeLLM) ChatCompletionJSON(ctx context.Context, system, user string) (string, error) {
	return f.ChatCompletion(ctx, system, user)
}

func (f *fakeLLM) IsConfigured() bool { return true }

// fakeArchive signs every key
type fakeArchive struct{}

func (fakeArchive) Upload(context.Context, string, io.Reader, string) error { return nil }
func (fakeArchive) Delete(context.Context, string) error                    { return nil }
func (fakeArchive) GetSignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://archive.example/" + key + "?sig=1", nil
}

// recordingArchive remembers which keys were deleted
type recordingArchive struct {
	fakeArchive
	mu      sync.Mutex
	deleted []string
}

func (a *recordingArchive) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, key)
	return nil
}

func newTestResultService(t *testing.T) *ResultService {
	t.Helper()
	db, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewResultService(store.NewResultStore(db), fakeArchive{})
}

func storedResult(query string, createdAt time.Time, urls ...string) *model.SearchResult {
	r := &model.SearchResult{
		ID:        "res-" + query + "-" + createdAt.Format("150405.000"),
		SearchID:  "job-" + query,
		Query:     query,
		Summary:   "Laptops cost between $500 and $2000.",
		Status:    model.JobStatusCompleted,
		CreatedAt: createdAt,
	}
	for _, u := range urls {
		r.Sources = append(r.Sources, model.Source{URL: u, Content: "content of " + u, ScrapedAt: createdAt})
	}
	return r
}
