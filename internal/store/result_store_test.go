package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchai/api/internal/model"
)

func newTestResultStore(t *testing.T) *ResultStore {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewResultStore(db)
}

func newResult(query string, createdAt time.Time, urls ...string) *model.SearchResult {
	r := &model.SearchResult{
		ID:        uuid.New().String(),
		SearchID:  uuid.New().String(),
		Query:     query,
		Summary:   "summary of " + query,
		Status:    model.JobStatusCompleted,
		CreatedAt: createdAt,
	}
	for _, u := range urls {
		r.Sources = append(r.Sources, model.Source{URL: u, Content: "content of " + u, ScrapedAt: createdAt})
	}
	return r
}

func TestResultStore_SaveAndList(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Save(ctx, newResult("older", now.Add(-time.Hour), "https://a.example", "https://b.example")))
	require.NoError(t, s.Save(ctx, newResult("newer", now)))

	results, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "newer", results[0].Query)
	assert.Empty(t, results[0].Sites)
	assert.Equal(t, "older", results[1].Query)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, results[1].Sites)
	assert.Nil(t, results[1].Sources)
}

func TestResultStore_LatestByQuery(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Save(ctx, newResult("laptops", now.Add(-time.Hour), "https://old.example")))
	require.NoError(t, s.Save(ctx, newResult("laptops", now, "https://new.example")))

	r, err := s.LatestByQuery(ctx, "laptops")
	require.NoError(t, err)
	require.Len(t, r.Sources, 1)
	assert.Equal(t, "https://new.example", r.Sources[0].URL)
	assert.Equal(t, "content of https://new.example", r.Sources[0].Content)

	_, err = s.LatestByQuery(ctx, "phones")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResultStore_DeleteByQueryRemovesExactMatchesOnly(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Save(ctx, newResult("gpu prices", now, "https://x.example")))
	require.NoError(t, s.Save(ctx, newResult("gpu prices", now.Add(time.Second))))
	require.NoError(t, s.Save(ctx, newResult("gpu prices 2024", now)))
	require.NoError(t, s.Save(ctx, newResult("GPU prices", now)))

	n, _, err := s.DeleteByQuery(ctx, "gpu prices")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	results, err := s.List(ctx)
	require.NoError(t, err)
	var queries []string
	for _, r := range results {
		queries = append(queries, r.Query)
	}
	assert.ElementsMatch(t, []string{"gpu prices 2024", "GPU prices"}, queries)

	_, err = s.SourceByURL(ctx, "https://x.example")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResultStore_SourceByURLAndDeleteByID(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()

	r := newResult("coffee", time.Now(), "https://coffee.example")
	require.NoError(t, s.Save(ctx, r))

	src, err := s.SourceByURL(ctx, "https://coffee.example")
	require.NoError(t, err)
	assert.Equal(t, "content of https://coffee.example", src.Content)

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://coffee.example"}, got.Sites)

	n, _, err := s.DeleteByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, _, err = s.DeleteByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Get(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResultStore_DeleteOlderThan(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Save(ctx, newResult("stale", now.Add(-48*time.Hour))))
	require.NoError(t, s.Save(ctx, newResult("fresh", now)))

	n, _, err := s.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	results, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fresh", results[0].Query)
}

func TestResultStore_DeleteReturnsArchiveKeys(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()
	now := time.Now()

	archived := newResult("tea", now, "https://a.example", "https://b.example", "https://c.example")
	archived.Sources[0].ArchiveKey = "sources/" + archived.ID + "/0.txt"
	archived.Sources[2].ArchiveKey = "sources/" + archived.ID + "/2.txt"
	require.NoError(t, s.Save(ctx, archived))
	require.NoError(t, s.Save(ctx, newResult("coffee", now, "https://d.example")))

	n, keys, err := s.DeleteByQuery(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.ElementsMatch(t, []string{
		"sources/" + archived.ID + "/0.txt",
		"sources/" + archived.ID + "/2.txt",
	}, keys)

	n, keys, err = s.DeleteByQuery(ctx, "coffee")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, keys)
}
