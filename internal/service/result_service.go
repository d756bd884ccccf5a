package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/searchai/api/internal/client"
	"github.com/searchai/api/internal/model"
	"github.com/searchai/api/internal/store"
)

var ErrResultNotFound = errors.New("result not found")

const archiveURLExpiry = 15 * time.Minute

// ResultRepository persists completed searches
type ResultRepository interface {
	Save(ctx context.Context, result *model.SearchResult) error
	Get(ctx context.Context, id string) (*model.SearchResult, error)
	List(ctx context.Context) ([]model.SearchResult, error)
	LatestByQuery(ctx context.Context, query string) (*model.SearchResult, error)
	SourceByURL(ctx context.Context, url string) (*model.Source, error)
	DeleteByQuery(ctx context.Context, query string) (int64, []string, error)
	DeleteByID(ctx context.Context, id string) (int64, []string, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, []string, error)
}

// ResultService reads and deletes stored search results
type ResultService struct {
	repo    ResultRepository
	archive client.ArchiveClient
}

// NewResultService creates a result service. archive may be nil.
func NewResultService(repo ResultRepository, archive client.ArchiveClient) *ResultService {
	return &ResultService{repo: repo, archive: archive}
}

// Save persists a completed search
func (s *ResultService) Save(ctx context.Context, result *model.SearchResult) error {
	if err := s.repo.Save(ctx, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// Get returns a single result with its sources
func (s *ResultService) Get(ctx context.Context, id string) (*model.SearchResult, error) {
	result, err := s.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrResultNotFound
	}
	return result, err
}

// LatestByQuery returns the newest result stored for query
func (s *ResultService) LatestByQuery(ctx context.Context, query string) (*model.SearchResult, error) {
	result, err := s.repo.LatestByQuery(ctx, query)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrResultNotFound
	}
	return result, err
}

// List returns every stored result, newest first
func (s *ResultService) List(ctx context.Context) (*model.DataResponse, error) {
	results, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return &model.DataResponse{Data: results}, nil
}

// DeleteByQuery removes all results stored under exactly query
func (s *ResultService) DeleteByQuery(ctx context.Context, query string) (*model.DeleteResponse, error) {
	n, keys, err := s.repo.DeleteByQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to delete results: %w", err)
	}
	s.deleteArchived(ctx, keys)
	if n == 0 {
		return nil, ErrResultNotFound
	}

	slog.InfoContext(ctx, "deleted results by query", "query", query, "count", n)
	return &model.DeleteResponse{
		Status:  "success",
		Message: fmt.Sprintf("Deleted %d result(s) for %q", n, query),
		Deleted: n,
	}, nil
}

// DeleteByID removes a single result
func (s *ResultService) DeleteByID(ctx context.Context, id string) (*model.DeleteResponse, error) {
	n, keys, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete result: %w", err)
	}
	s.deleteArchived(ctx, keys)
	if n == 0 {
		return nil, ErrResultNotFound
	}

	return &model.DeleteResponse{
		Status:  "success",
		Message: "Result deleted",
		Deleted: n,
	}, nil
}

// SourceDetail returns the newest scraped content for url. When the page was
// archived, a short-lived download link is attached.
func (s *ResultService) SourceDetail(ctx context.Context, url string) (*model.SourceDetailResponse, error) {
	src, err := s.repo.SourceByURL(ctx, url)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}

	resp := &model.SourceDetailResponse{URL: src.URL, Content: src.Content}
	if s.archive != nil && src.ArchiveKey != "" {
		signed, err := s.archive.GetSignedURL(ctx, src.ArchiveKey, archiveURLExpiry)
		if err != nil {
			slog.WarnContext(ctx, "failed to sign archive url", "key", src.ArchiveKey, "error", err)
		} else {
			resp.ArchiveURL = signed
		}
	}
	return resp, nil
}

// Sweep deletes results older than retention
func (s *ResultService) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	n, keys, err := s.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep results: %w", err)
	}
	s.deleteArchived(ctx, keys)
	return n, nil
}

// deleteArchived removes archived page copies of deleted results. Failures
// are logged since the rows are already gone.
func (s *ResultService) deleteArchived(ctx context.Context, keys []string) {
	if s.archive == nil {
		return
	}
	for _, key := range keys {
		if err := s.archive.Delete(ctx, key); err != nil {
			slog.WarnContext(ctx, "failed to delete archived source", "key", key, "error", err)
		}
	}
}
