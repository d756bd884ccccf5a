package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/searchai/api/internal/model"
)

// ErrNotFound is returned when no row matches a lookup
var ErrNotFound = errors.New("not found")

// ResultStore persists completed searches and their scraped sources
type ResultStore struct {
	db *sql.DB
}

// NewResultStore creates a result store on an opened and migrated database
func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

// Save inserts a result and its sources in one transaction.
func (s *ResultStore) Save(ctx context.Context, result *model.SearchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO results (id, search_id, query, summary, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		result.ID, result.SearchID, result.Query, result.Summary, string(result.Status), result.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	for i, src := range result.Sources {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sources (result_id, position, url, content, archive_key, scraped_at) VALUES (?, ?, ?, ?, ?, ?)`,
			result.ID, i, src.URL, src.Content, src.ArchiveKey, src.ScrapedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert source %s: %w", src.URL, err)
		}
	}

	return tx.Commit()
}

// List returns all results newest first, with sites but without source content.
func (s *ResultStore) List(ctx context.Context) ([]model.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.search_id, r.query, r.summary, r.status, r.created_at, s.url
		 FROM results r
		 LEFT JOIN sources s ON s.result_id = r.id
		 ORDER BY r.created_at DESC, r.id, s.position`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []model.SearchResult{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			r         model.SearchResult
			status    string
			createdAt int64
			site      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.SearchID, &r.Query, &r.Summary, &status, &createdAt, &site); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}

		i, seen := index[r.ID]
		if !seen {
			r.Status = model.JobStatus(status)
			r.CreatedAt = time.UnixMilli(createdAt).UTC()
			r.Sites = []string{}
			results = append(results, r)
			i = len(results) - 1
			index[r.ID] = i
		}
		if site.Valid {
			results[i].Sites = append(results[i].Sites, site.String)
		}
	}

	return results, rows.Err()
}

// Get returns a result by id, with sources.
func (s *ResultStore) Get(ctx context.Context, id string) (*model.SearchResult, error) {
	return s.loadOne(ctx, `WHERE id = ?`, id)
}

// LatestByQuery returns the newest result for an exact query, with sources.
func (s *ResultStore) LatestByQuery(ctx context.Context, query string) (*model.SearchResult, error) {
	return s.loadOne(ctx, `WHERE query = ? ORDER BY created_at DESC LIMIT 1`, query)
}

func (s *ResultStore) loadOne(ctx context.Context, clause string, arg any) (*model.SearchResult, error) {
	var (
		r         model.SearchResult
		status    string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, search_id, query, summary, status, created_at FROM results `+clause, arg,
	).Scan(&r.ID, &r.SearchID, &r.Query, &r.Summary, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}
	r.Status = model.JobStatus(status)
	r.CreatedAt = time.UnixMilli(createdAt).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT url, content, archive_key, scraped_at FROM sources WHERE result_id = ? ORDER BY position`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	r.Sites = []string{}
	for rows.Next() {
		var (
			src       model.Source
			scrapedAt int64
		)
		if err := rows.Scan(&src.URL, &src.Content, &src.ArchiveKey, &scrapedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.ScrapedAt = time.UnixMilli(scrapedAt).UTC()
		r.Sources = append(r.Sources, src)
		r.Sites = append(r.Sites, src.URL)
	}

	return &r, rows.Err()
}

// SourceByURL returns the most recently scraped content for url.
func (s *ResultStore) SourceByURL(ctx context.Context, url string) (*model.Source, error) {
	var (
		src       model.Source
		scrapedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT url, content, archive_key, scraped_at FROM sources
		 WHERE url = ? ORDER BY scraped_at DESC, id DESC LIMIT 1`, url,
	).Scan(&src.URL, &src.Content, &src.ArchiveKey, &scrapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}
	src.ScrapedAt = time.UnixMilli(scrapedAt).UTC()
	return &src, nil
}

// DeleteByQuery removes every result whose query equals query exactly. It
// returns the number of results removed and the archive keys of their sources.
func (s *ResultStore) DeleteByQuery(ctx context.Context, query string) (int64, []string, error) {
	return s.deleteWhere(ctx, "query = ?", query)
}

// DeleteByID removes a single result.
func (s *ResultStore) DeleteByID(ctx context.Context, id string) (int64, []string, error) {
	return s.deleteWhere(ctx, "id = ?", id)
}

// DeleteOlderThan removes results created before cutoff.
func (s *ResultStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, []string, error) {
	return s.deleteWhere(ctx, "created_at < ?", cutoff.UnixMilli())
}

func (s *ResultStore) deleteWhere(ctx context.Context, cond string, arg any) (int64, []string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT archive_key FROM sources
		 WHERE archive_key <> '' AND result_id IN (SELECT id FROM results WHERE `+cond+`)`, arg)
	if err != nil {
		return 0, nil, fmt.Errorf("query archive keys: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, nil, fmt.Errorf("scan archive key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Close(); err != nil {
		return 0, nil, err
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sources WHERE result_id IN (SELECT id FROM results WHERE `+cond+`)`, arg); err != nil {
		return 0, nil, fmt.Errorf("delete sources: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM results WHERE `+cond, arg)
	if err != nil {
		return 0, nil, fmt.Errorf("delete results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil, err
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit delete: %w", err)
	}
	return n, keys, nil
}
