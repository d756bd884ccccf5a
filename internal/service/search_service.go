package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/searchai/api/internal/metrics"
	"github.com/searchai/api/internal/model"
	"github.com/searchai/api/internal/store"
)

var (
	ErrEmptyQuery  = errors.New("query is required")
	ErrJobNotFound = errors.New("job not found")
	ErrJobTerminal = errors.New("job already finished")
)

// JobRepository stores search job records
type JobRepository interface {
	Create(ctx context.Context, job *model.SearchJob) error
	Get(ctx context.Context, id string) (*model.SearchJob, error)
	Update(ctx context.Context, id string, fn func(*model.SearchJob) error) (*model.SearchJob, error)
}

// TaskQueue hands search jobs to the background workers
type TaskQueue interface {
	EnqueueSearch(ctx context.Context, payload model.SearchTaskPayload) error
	// Cancel removes a queued task, or interrupts it if it is already running.
	// dequeued is true when the task never started.
	Cancel(ctx context.Context, jobID string) (dequeued bool, err error)
}

// EventPublisher fans job events out to live subscribers
type EventPublisher interface {
	Publish(ctx context.Context, event model.JobEvent)
}

// SearchService manages the search job lifecycle
type SearchService struct {
	jobs         JobRepository
	queue        TaskQueue
	events       EventPublisher
	results      *ResultService
	waitInterval time.Duration
}

func NewSearchService(jobs JobRepository, queue TaskQueue, events EventPublisher, results *ResultService) *SearchService {
	return &SearchService{
		jobs:         jobs,
		queue:        queue,
		events:       events,
		results:      results,
		waitInterval: 250 * time.Millisecond,
	}
}

// SetWaitInterval changes how often Wait re-reads the job record
func (s *SearchService) SetWaitInterval(d time.Duration) {
	s.waitInterval = d
}

// Submit creates a job with a server-issued id and queues it
func (s *SearchService) Submit(ctx context.Context, query string) (*model.SearchSubmitResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	now := time.Now().UTC()
	job := &model.SearchJob{
		ID:        uuid.New().String(),
		Query:     query,
		Status:    model.JobStatusProcessing,
		Progress:  0,
		CreatedAt: now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.queue.EnqueueSearch(ctx, model.SearchTaskPayload{JobID: job.ID, Query: query}); err != nil {
		_ = s.Fail(context.WithoutCancel(ctx), job.ID, "Failed to queue search")
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	metrics.SearchesSubmitted.Inc()
	slog.InfoContext(ctx, "search submitted", "job_id", job.ID, "query", query)

	return &model.SearchSubmitResponse{
		SearchID:  job.ID,
		Query:     query,
		Status:    job.Status,
		CreatedAt: now,
	}, nil
}

// Run submits a search and blocks until it finishes or ctx expires. On
// expiry the still-processing status is returned without an error.
func (s *SearchService) Run(ctx context.Context, query string, timeout time.Duration) (*model.SearchRunResponse, error) {
	submitted, err := s.Submit(ctx, query)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	job, err := s.Wait(waitCtx, submitted.SearchID)
	if err != nil && job == nil {
		return nil, err
	}

	resp := &model.SearchRunResponse{
		Status:   job.Status,
		SearchID: job.ID,
		Query:    job.Query,
	}

	switch job.Status {
	case model.JobStatusCompleted:
		result, err := s.results.Get(ctx, job.ResultID)
		if err != nil {
			return nil, fmt.Errorf("failed to load result: %w", err)
		}
		resp.Sites = result.Sites
		resp.Summary = result.Summary
	case model.JobStatusFailed:
		if job.Error != nil {
			resp.Error = *job.Error
		}
	}

	return resp, nil
}

// Wait polls the job record until it reaches a terminal status. When ctx
// ends first, the last observed job is returned along with ctx's error.
func (s *SearchService) Wait(ctx context.Context, jobID string) (*model.SearchJob, error) {
	ticker := time.NewTicker(s.waitInterval)
	defer ticker.Stop()

	var last *model.SearchJob
	for {
		job, err := s.getJob(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil && last != nil {
				return last, ctx.Err()
			}
			return nil, err
		}
		last = job
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetStatus returns the current status of a search job
func (s *SearchService) GetStatus(ctx context.Context, jobID string) (*model.SearchStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return model.NewStatusResponse(job), nil
}

// Cancel requests cancellation. A job that never started is cancelled at
// once; a running one moves to cancelling until the worker stops.
func (s *SearchService) Cancel(ctx context.Context, jobID string) (*model.SearchCancelResponse, error) {
	job, err := s.update(ctx, jobID, func(job *model.SearchJob) error {
		if job.Status == model.JobStatusCancelling {
			return nil
		}
		if !job.Status.CanTransition(model.JobStatusCancelling) {
			return ErrJobTerminal
		}
		job.Status = model.JobStatusCancelling
		job.CancelRequested = true
		job.Progress = 0
		job.CurrentStep = "Cancelling..."
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishProgress(ctx, job)

	dequeued, err := s.queue.Cancel(ctx, jobID)
	if err != nil {
		// The worker still sees the cancel flag between steps
		slog.WarnContext(ctx, "failed to interrupt search task", "job_id", jobID, "error", err)
	}

	if dequeued {
		if err := s.MarkCancelled(ctx, jobID); err != nil && !errors.Is(err, ErrJobTerminal) {
			return nil, err
		}
		return &model.SearchCancelResponse{SearchID: jobID, Status: model.JobStatusCancelled}, nil
	}

	return &model.SearchCancelResponse{SearchID: jobID, Status: job.Status}, nil
}

// Start marks the job as picked up by a worker (called by worker)
func (s *SearchService) Start(ctx context.Context, jobID string) (*model.SearchJob, error) {
	job, err := s.update(ctx, jobID, func(job *model.SearchJob) error {
		if job.Status.IsTerminal() {
			return ErrJobTerminal
		}
		now := time.Now().UTC()
		job.StartedAt = &now
		if job.Status == model.JobStatusProcessing {
			job.Progress = 10
			job.CurrentStep = "Searching the web..."
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishProgress(ctx, job)
	return job, nil
}

// UpdateProgress records worker progress. Jobs that are being cancelled keep
// their state; the returned job lets the worker see the cancel request.
func (s *SearchService) UpdateProgress(ctx context.Context, jobID string, progress int, step string) (*model.SearchJob, error) {
	job, err := s.update(ctx, jobID, func(job *model.SearchJob) error {
		if job.Status != model.JobStatusProcessing {
			return nil
		}
		job.Progress = progress
		job.CurrentStep = step
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusProcessing {
		s.publishProgress(ctx, job)
	}
	return job, nil
}

// Complete marks job as completed (called by worker)
func (s *SearchService) Complete(ctx context.Context, jobID string, result *model.SearchResult) error {
	job, err := s.transition(ctx, jobID, model.JobStatusCompleted, func(job *model.SearchJob) {
		job.Progress = 100
		job.CurrentStep = ""
		job.ResultID = result.ID
	})
	if err != nil {
		return err
	}

	s.observeFinished(job)
	s.events.Publish(ctx, model.JobEvent{
		Type:     model.WSMessageTypeComplete,
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Result:   result,
	})
	return nil
}

// Fail marks job as failed (called by worker)
func (s *SearchService) Fail(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.transition(ctx, jobID, model.JobStatusFailed, func(job *model.SearchJob) {
		job.Error = &errMsg
		job.Progress = 0
		job.CurrentStep = ""
	})
	if err != nil {
		return err
	}

	s.observeFinished(job)
	s.events.Publish(ctx, model.JobEvent{
		Type:   model.WSMessageTypeError,
		JobID:  job.ID,
		Status: job.Status,
		Error:  &model.WSError{Code: "SEARCH_FAILED", Message: errMsg},
	})
	return nil
}

// MarkCancelled finalizes a cancellation
func (s *SearchService) MarkCancelled(ctx context.Context, jobID string) error {
	job, err := s.transition(ctx, jobID, model.JobStatusCancelled, func(job *model.SearchJob) {
		job.Progress = 0
		job.CurrentStep = ""
	})
	if err != nil {
		return err
	}

	s.observeFinished(job)
	s.publishProgress(ctx, job)
	return nil
}

// IsCancelRequested reports whether the job has been asked to stop
func (s *SearchService) IsCancelRequested(ctx context.Context, jobID string) (bool, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.CancelRequested, nil
}

// Helper methods

func (s *SearchService) transition(ctx context.Context, jobID string, next model.JobStatus, mutate func(*model.SearchJob)) (*model.SearchJob, error) {
	return s.update(ctx, jobID, func(job *model.SearchJob) error {
		if !job.Status.CanTransition(next) {
			return ErrJobTerminal
		}
		job.Status = next
		now := time.Now().UTC()
		job.CompletedAt = &now
		mutate(job)
		return nil
	})
}

func (s *SearchService) update(ctx context.Context, jobID string, fn func(*model.SearchJob) error) (*model.SearchJob, error) {
	job, err := s.jobs.Update(ctx, jobID, fn)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	return job, err
}

func (s *SearchService) getJob(ctx context.Context, jobID string) (*model.SearchJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	return job, err
}

func (s *SearchService) publishProgress(ctx context.Context, job *model.SearchJob) {
	s.events.Publish(ctx, model.JobEvent{
		Type:        model.WSMessageTypeProgress,
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
	})
}

func (s *SearchService) observeFinished(job *model.SearchJob) {
	metrics.SearchesFinished.WithLabelValues(string(job.Status)).Inc()
	if job.CompletedAt != nil {
		metrics.SearchDuration.Observe(job.CompletedAt.Sub(job.CreatedAt).Seconds())
	}
}
