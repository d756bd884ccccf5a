package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/searchai/api/internal/model"
)

const maxTxRetries = 10

// ErrConflict is returned when an optimistic update keeps losing races
var ErrConflict = errors.New("concurrent update conflict")

// JobStore keeps search job records in Redis
type JobStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewJobStore creates a job store whose records expire after ttl
func NewJobStore(redisClient *redis.Client, ttl time.Duration) *JobStore {
	return &JobStore{redis: redisClient, ttl: ttl}
}

func jobKey(id string) string {
	return fmt.Sprintf("search:job:%s", id)
}

// Create stores a new job. It fails if the id already exists.
func (s *JobStore) Create(ctx context.Context, job *model.SearchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := s.redis.SetNX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

// Get loads a job by id.
func (s *JobStore) Get(ctx context.Context, id string) (*model.SearchJob, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var job model.SearchJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Update applies fn to the stored job inside a WATCH transaction and writes
// the result back, retrying when another writer touched the key first.
func (s *JobStore) Update(ctx context.Context, id string, fn func(*model.SearchJob) error) (*model.SearchJob, error) {
	key := jobKey(id)
	var updated *model.SearchJob

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		var job model.SearchJob
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		if err := fn(&job); err != nil {
			return err
		}

		out, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		if err == nil {
			updated = &job
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	return nil, ErrConflict
}
