package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchai/api/internal/model"
	"github.com/searchai/api/internal/store"
)

func TestResultService_DeleteByQuery(t *testing.T) {
	svc := newTestResultService(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.Save(ctx, storedResult("laptops", now.Add(-time.Minute), "https://a.example")))
	require.NoError(t, svc.Save(ctx, storedResult("laptops", now, "https://b.example")))
	require.NoError(t, svc.Save(ctx, storedResult("laptops 2024", now, "https://c.example")))

	resp, err := svc.DeleteByQuery(ctx, "laptops")
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, int64(2), resp.Deleted)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "laptops 2024", list.Data[0].Query)

	_, err = svc.DeleteByQuery(ctx, "laptops")
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestResultService_DeleteByID(t *testing.T) {
	svc := newTestResultService(t)
	ctx := context.Background()

	r := storedResult("tea", time.Now(), "https://tea.example")
	require.NoError(t, svc.Save(ctx, r))

	resp, err := svc.DeleteByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Deleted)

	_, err = svc.DeleteByID(ctx, r.ID)
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestResultService_SourceDetail(t *testing.T) {
	svc := newTestResultService(t)
	ctx := context.Background()

	r := storedResult("tea", time.Now(), "https://tea.example", "https://herbal.example")
	r.Sources[0].ArchiveKey = "sources/" + r.ID + "/0.txt"
	require.NoError(t, svc.Save(ctx, r))

	detail, err := svc.SourceDetail(ctx, "https://tea.example")
	require.NoError(t, err)
	assert.Equal(t, "content of https://tea.example", detail.Content)
	assert.Equal(t, "https://archive.example/sources/"+r.ID+"/0.txt?sig=1", detail.ArchiveURL)

	detail, err = svc.SourceDetail(ctx, "https://herbal.example")
	require.NoError(t, err)
	assert.Empty(t, detail.ArchiveURL)

	_, err = svc.SourceDetail(ctx, "https://unknown.example")
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestResultService_Sweep(t *testing.T) {
	svc := newTestResultService(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.Save(ctx, storedResult("old", now.Add(-72*time.Hour), "https://old.example")))
	require.NoError(t, svc.Save(ctx, storedResult("new", now, "https://new.example")))

	n, err := svc.Sweep(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "new", list.Data[0].Query)
}

func TestResultService_DeletesArchivedSources(t *testing.T) {
	db, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	archive := &recordingArchive{}
	svc := NewResultService(store.NewResultStore(db), archive)
	ctx := context.Background()
	now := time.Now()

	archived := func(query string, createdAt time.Time) *model.SearchResult {
		r := storedResult(query, createdAt, "https://"+query+".example")
		r.Sources[0].ArchiveKey = "sources/" + r.ID + "/0.txt"
		require.NoError(t, svc.Save(ctx, r))
		return r
	}

	byQuery := archived("tea", now)
	byID := archived("coffee", now)
	stale := archived("cocoa", now.Add(-72*time.Hour))

	_, err = svc.DeleteByQuery(ctx, "tea")
	require.NoError(t, err)
	_, err = svc.DeleteByID(ctx, byID.ID)
	require.NoError(t, err)
	_, err = svc.Sweep(ctx, 48*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, []string{
		byQuery.Sources[0].ArchiveKey,
		byID.Sources[0].ArchiveKey,
		stale.Sources[0].ArchiveKey,
	}, archive.deleted)
}
