package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/searchai/api/internal/client"
	"github.com/searchai/api/internal/metrics"
	"github.com/searchai/api/internal/model"
	"github.com/searchai/api/internal/scraper"
	"github.com/searchai/api/internal/service"
)

// Options tunes a search run
type Options struct {
	NumResults       int
	MinContentLength int
	Concurrency      int
}

// SearchWorker processes search jobs
type SearchWorker struct {
	searches *service.SearchService
	results  *service.ResultService
	analyzer *service.Analyzer
	engine   client.SearchEngine
	fetcher  scraper.Fetcher
	archive  client.ArchiveClient
	opts     Options
}

// NewSearchWorker creates a new search worker. archive may be nil.
func NewSearchWorker(
	searches *service.SearchService,
	results *service.ResultService,
	analyzer *service.Analyzer,
	engine client.SearchEngine,
	fetcher scraper.Fetcher,
	archive client.ArchiveClient,
	opts Options,
) *SearchWorker {
	return &SearchWorker{
		searches: searches,
		results:  results,
		analyzer: analyzer,
		engine:   engine,
		fetcher:  fetcher,
		archive:  archive,
		opts:     opts,
	}
}

// ProcessTask handles search task processing
func (w *SearchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.SearchTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := payload.JobID
	slog.InfoContext(ctx, "starting search job", "job_id", jobID, "query", payload.Query)

	job, err := w.searches.Start(ctx, jobID)
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		slog.WarnContext(ctx, "search job expired before processing", "job_id", jobID)
		return nil
	case errors.Is(err, service.ErrJobTerminal):
		return nil
	case err != nil:
		return fmt.Errorf("failed to start job: %w", err)
	}

	if job.CancelRequested {
		return w.stop(ctx, jobID)
	}

	return w.run(ctx, job)
}

func (w *SearchWorker) run(ctx context.Context, job *model.SearchJob) error {
	jobID, query := job.ID, job.Query

	// Step 1: Find candidate sites
	sites, err := w.engine.TopSites(ctx, query, w.opts.NumResults)
	if w.stopped(ctx, jobID) {
		return w.stop(ctx, jobID)
	}
	if err != nil {
		return w.failJob(ctx, jobID, fmt.Sprintf("Search failed: %v", err))
	}
	if len(sites) == 0 {
		return w.failJob(ctx, jobID, "No websites found")
	}
	w.updateProgress(ctx, jobID, 30, fmt.Sprintf("Found %d websites", len(sites)))

	// Step 2: Scrape every site, aborting in-flight fetches on cancel
	scrapeCtx, stopScraping := context.WithCancel(ctx)
	defer stopScraping()

	pages := scraper.ScrapeAll(scrapeCtx, w.fetcher, sites, w.opts.Concurrency, func(done, total int) {
		progress := 30 + done*30/total
		job := w.updateProgress(ctx, jobID, progress, fmt.Sprintf("Scraped %d/%d websites", done, total))
		if job != nil && job.CancelRequested {
			stopScraping()
		}
	})
	if w.stopped(ctx, jobID) {
		return w.stop(ctx, jobID)
	}

	sources := w.usableSources(pages)
	if len(sources) == 0 {
		return w.failJob(ctx, jobID, "Could not extract content from websites")
	}

	resultID := uuid.New().String()
	w.archiveSources(ctx, resultID, sources)

	// Step 3: Summarize
	w.updateProgress(ctx, jobID, 70, "Analyzing content...")
	summary := w.analyzer.Analyze(ctx, query, sources)
	if w.stopped(ctx, jobID) {
		w.discardArchive(ctx, sources)
		return w.stop(ctx, jobID)
	}

	// Step 4: Persist
	w.updateProgress(ctx, jobID, 90, "Saving results...")
	result := &model.SearchResult{
		ID:        resultID,
		SearchID:  jobID,
		Query:     query,
		Summary:   summary,
		Status:    model.JobStatusCompleted,
		CreatedAt: time.Now().UTC(),
		Sources:   sources,
	}
	for _, src := range sources {
		result.Sites = append(result.Sites, src.URL)
	}

	if err := w.results.Save(ctx, result); err != nil {
		slog.ErrorContext(ctx, "failed to save result", "job_id", jobID, "error", err)
		w.discardArchive(ctx, sources)
		return w.failJob(ctx, jobID, "Failed to save result")
	}

	// Complete the job
	if err := w.searches.Complete(ctx, jobID, summaryOnly(result)); err != nil {
		return fmt.Errorf("failed to complete job %s: %v: %w", jobID, err, asynq.SkipRetry)
	}

	slog.InfoContext(ctx, "search job completed", "job_id", jobID, "sites", len(result.Sites))
	return nil
}

// stopped reports whether the run should end early, either because the task
// context ended or because a cancel was requested.
func (w *SearchWorker) stopped(ctx context.Context, jobID string) bool {
	if ctx.Err() != nil {
		return true
	}
	requested, err := w.searches.IsCancelRequested(ctx, jobID)
	if err != nil {
		slog.WarnContext(ctx, "failed to read cancel flag", "job_id", jobID, "error", err)
		return false
	}
	return requested
}

// stop ends a run early. A requested cancel finishes the job as cancelled;
// a deadline fails it; a shutdown hands the task back to asynq.
func (w *SearchWorker) stop(ctx context.Context, jobID string) error {
	bg := context.WithoutCancel(ctx)

	requested, err := w.searches.IsCancelRequested(bg, jobID)
	if err != nil {
		return fmt.Errorf("failed to read cancel flag: %w", err)
	}
	if !requested {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return w.failJob(bg, jobID, "Search timed out")
		}
		return ctx.Err()
	}

	if err := w.searches.MarkCancelled(bg, jobID); err != nil && !errors.Is(err, service.ErrJobTerminal) {
		slog.ErrorContext(ctx, "failed to mark job as cancelled", "job_id", jobID, "error", err)
		return err
	}
	slog.InfoContext(ctx, "search job cancelled", "job_id", jobID)
	return nil
}

func (w *SearchWorker) usableSources(pages []scraper.Page) []model.Source {
	var sources []model.Source
	for _, page := range pages {
		switch {
		case page.Err != nil:
			metrics.PagesScraped.WithLabelValues("error").Inc()
		case !page.Usable(w.opts.MinContentLength):
			metrics.PagesScraped.WithLabelValues("short").Inc()
		default:
			metrics.PagesScraped.WithLabelValues("usable").Inc()
			sources = append(sources, model.Source{
				URL:       page.URL,
				Content:   strings.TrimSpace(page.Content),
				ScrapedAt: page.ScrapedAt.UTC(),
			})
		}
	}
	return sources
}

func (w *SearchWorker) archiveSources(ctx context.Context, resultID string, sources []model.Source) {
	if w.archive == nil {
		return
	}
	for i := range sources {
		key := fmt.Sprintf("sources/%s/%d.txt", resultID, i)
		if err := w.archive.Upload(ctx, key, strings.NewReader(sources[i].Content), "text/plain; charset=utf-8"); err != nil {
			slog.WarnContext(ctx, "failed to archive source", "url", sources[i].URL, "error", err)
			continue
		}
		sources[i].ArchiveKey = key
	}
}

func (w *SearchWorker) discardArchive(ctx context.Context, sources []model.Source) {
	if w.archive == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	for _, src := range sources {
		if src.ArchiveKey == "" {
			continue
		}
		if err := w.archive.Delete(bg, src.ArchiveKey); err != nil {
			slog.WarnContext(ctx, "failed to delete archived source", "key", src.ArchiveKey, "error", err)
		}
	}
}

func (w *SearchWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) *model.SearchJob {
	job, err := w.searches.UpdateProgress(ctx, jobID, progress, step)
	if err != nil {
		slog.WarnContext(ctx, "failed to update progress", "job_id", jobID, "error", err)
		return nil
	}
	return job
}

func (w *SearchWorker) failJob(ctx context.Context, jobID, errMsg string) error {
	if err := w.searches.Fail(ctx, jobID, errMsg); err != nil {
		slog.ErrorContext(ctx, "failed to mark job as failed", "job_id", jobID, "error", err)
	}
	return fmt.Errorf("search %s: %s: %w", jobID, errMsg, asynq.SkipRetry)
}

// summaryOnly drops source bodies from the copy sent to live subscribers
func summaryOnly(result *model.SearchResult) *model.SearchResult {
	out := *result
	out.Sources = nil
	return &out
}
