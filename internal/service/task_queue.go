package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/searchai/api/internal/model"
)

const (
	TaskTypeSearch = "search:process"
	QueueSearch    = "search"

	searchTaskTimeout = 15 * time.Minute
)

// AsynqQueue enqueues search tasks on Redis through asynq
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	maxRetry  int
}

func NewAsynqQueue(client *asynq.Client, inspector *asynq.Inspector, maxRetry int) *AsynqQueue {
	return &AsynqQueue{
		client:    client,
		inspector: inspector,
		maxRetry:  maxRetry,
	}
}

// EnqueueSearch queues a search task. The job id doubles as the task id so
// the task can be found again on cancel.
func (q *AsynqQueue) EnqueueSearch(ctx context.Context, payload model.SearchTaskPayload) error {
	task, err := newSearchTask(payload)
	if err != nil {
		return err
	}

	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueSearch),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(q.maxRetry),
		asynq.Timeout(searchTaskTimeout),
		asynq.Retention(24*time.Hour),
	)
	return err
}

// Cancel deletes a pending task, or signals the worker running it
func (q *AsynqQueue) Cancel(ctx context.Context, jobID string) (bool, error) {
	if err := q.inspector.DeleteTask(QueueSearch, jobID); err == nil {
		return true, nil
	}

	// Active tasks cannot be deleted
	if err := q.inspector.CancelProcessing(jobID); err != nil {
		return false, fmt.Errorf("failed to cancel task %s: %w", jobID, err)
	}
	return false, nil
}

func newSearchTask(payload model.SearchTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSearch, data), nil
}
