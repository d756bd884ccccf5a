package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchai/api/internal/model"
)

type searchFixture struct {
	svc     *SearchService
	jobs    *memJobs
	queue   *fakeQueue
	events  *eventRecorder
	results *ResultService
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	f := &searchFixture{
		jobs:    newMemJobs(),
		queue:   &fakeQueue{},
		events:  &eventRecorder{},
		results: newTestResultService(t),
	}
	f.svc = NewSearchService(f.jobs, f.queue, f.events, f.results)
	f.svc.SetWaitInterval(10 * time.Millisecond)
	return f
}

func TestSearchService_SubmitEmptyQueryIsNoop(t *testing.T) {
	f := newSearchFixture(t)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := f.svc.Submit(context.Background(), q)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
	assert.Zero(t, f.jobs.count())
	assert.Empty(t, f.queue.enqueued)
}

func TestSearchService_SubmitQueuesTaskUnderJobID(t *testing.T) {
	f := newSearchFixture(t)

	resp, err := f.svc.Submit(context.Background(), "  best laptops ")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SearchID)
	assert.Equal(t, "best laptops", resp.Query)
	assert.Equal(t, model.JobStatusProcessing, resp.Status)

	require.Len(t, f.queue.enqueued, 1)
	assert.Equal(t, resp.SearchID, f.queue.enqueued[0].JobID)

	status, err := f.svc.GetStatus(context.Background(), resp.SearchID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, status.Status)
}

func TestSearchService_GetStatusUnknownJob(t *testing.T) {
	f := newSearchFixture(t)

	_, err := f.svc.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSearchService_CancelQueuedJob(t *testing.T) {
	f := newSearchFixture(t)
	f.queue.dequeue = true
	ctx := context.Background()

	resp, err := f.svc.Submit(ctx, "coffee")
	require.NoError(t, err)

	cancelResp, err := f.svc.Cancel(ctx, resp.SearchID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, cancelResp.Status)
	assert.Equal(t, []string{resp.SearchID}, f.queue.cancelled)

	job, err := f.jobs.Get(ctx, resp.SearchID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, job.Status)
	assert.True(t, job.CancelRequested)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, model.JobStatusCancelled, f.events.last().Status)
}

func TestSearchService_CancelRunningJob(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Submit(ctx, "coffee")
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, resp.SearchID)
	require.NoError(t, err)

	cancelResp, err := f.svc.Cancel(ctx, resp.SearchID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelling, cancelResp.Status)

	// Progress from the worker no longer moves a cancelling job
	job, err := f.svc.UpdateProgress(ctx, resp.SearchID, 45, "Scraped 1/3")
	require.NoError(t, err)
	assert.True(t, job.CancelRequested)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, "Cancelling...", job.CurrentStep)

	requested, err := f.svc.IsCancelRequested(ctx, resp.SearchID)
	require.NoError(t, err)
	assert.True(t, requested)

	require.NoError(t, f.svc.MarkCancelled(ctx, resp.SearchID))
	status, err := f.svc.GetStatus(ctx, resp.SearchID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, status.Status)
}

func TestSearchService_CancelTwiceIsIdempotentWhileCancelling(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Submit(ctx, "coffee")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, resp.SearchID)
	require.NoError(t, err)
	again, err := f.svc.Cancel(ctx, resp.SearchID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelling, again.Status)
}

func TestSearchService_CancelTerminalAndUnknownJobs(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Submit(ctx, "coffee")
	require.NoError(t, err)
	require.NoError(t, f.svc.Fail(ctx, resp.SearchID, "No websites found"))

	_, err = f.svc.Cancel(ctx, resp.SearchID)
	assert.ErrorIs(t, err, ErrJobTerminal)

	_, err = f.svc.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSearchService_TerminalJobsDoNotTransition(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Submit(ctx, "coffee")
	require.NoError(t, err)
	require.NoError(t, f.svc.Complete(ctx, resp.SearchID, &model.SearchResult{ID: "r1"}))

	assert.ErrorIs(t, f.svc.Fail(ctx, resp.SearchID, "late"), ErrJobTerminal)
	assert.ErrorIs(t, f.svc.MarkCancelled(ctx, resp.SearchID), ErrJobTerminal)
	_, err = f.svc.Start(ctx, resp.SearchID)
	assert.ErrorIs(t, err, ErrJobTerminal)

	status, err := f.svc.GetStatus(ctx, resp.SearchID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
}

func TestSearchService_RunWaitsForCompletion(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	f.queue.onEnqueue = func(p model.SearchTaskPayload) {
		result := storedResult(p.Query, time.Now(), "https://a.example", "https://b.example")
		result.SearchID = p.JobID
		if err := f.results.Save(ctx, result); err != nil {
			t.Error(err)
			return
		}
		time.Sleep(30 * time.Millisecond)
		if err := f.svc.Complete(ctx, p.JobID, result); err != nil {
			t.Error(err)
		}
	}

	resp, err := f.svc.Run(ctx, "laptops", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, resp.Status)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, resp.Sites)
	assert.Equal(t, "Laptops cost between $500 and $2000.", resp.Summary)
}

func TestSearchService_RunReportsFailure(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	f.queue.onEnqueue = func(p model.SearchTaskPayload) {
		_ = f.svc.Fail(ctx, p.JobID, "No websites found")
	}

	resp, err := f.svc.Run(ctx, "laptops", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, resp.Status)
	assert.Equal(t, "No websites found", resp.Error)
}

func TestSearchService_RunTimesOutAsProcessing(t *testing.T) {
	f := newSearchFixture(t)

	resp, err := f.svc.Run(context.Background(), "slow query", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, resp.Status)
	assert.NotEmpty(t, resp.SearchID)
}
