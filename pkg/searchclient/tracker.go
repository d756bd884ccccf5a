package searchclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	ErrEmptyQuery     = errors.New("query is empty")
	ErrUnknownEntry   = errors.New("search is not tracked")
	ErrNotCancellable = errors.New("search already finished")
)

// API is the subset of Client the tracker drives
type API interface {
	Submit(ctx context.Context, query string) (*Submitted, error)
	Status(ctx context.Context, id string) (*Status, error)
	Cancel(ctx context.Context, id string) (*Cancelled, error)
	Results(ctx context.Context) ([]Result, error)
}

// EntryState is the client-side view of an active search
type EntryState string

const (
	EntryProcessing EntryState = "Processing"
	EntryCompleted  EntryState = "Completed"
	EntryFailed     EntryState = "Failed"
	EntryCancelling EntryState = "Cancelling..."
)

// Entry is one search shown in the active list
type Entry struct {
	ID       string
	Query    string
	State    EntryState
	Progress int
	Step     string
	Error    string
}

// Label is the status text shown next to the query
func (e Entry) Label() string {
	switch e.State {
	case EntryProcessing:
		if e.Step != "" {
			return fmt.Sprintf("%s (%d%%)", e.Step, e.Progress)
		}
		return fmt.Sprintf("Processing (%d%%)", e.Progress)
	case EntryFailed:
		if e.Error != "" {
			return "Failed: " + e.Error
		}
	}
	return string(e.State)
}

// DropReason says why a search left the active list
type DropReason string

const (
	DroppedCancelled DropReason = "cancelled"
	DroppedExpired   DropReason = "expired"
)

type trackedEntry struct {
	Entry
	stop      context.CancelFunc
	refreshed bool
}

// Tracker keeps the list of searches started from this client and polls
// each one until it reaches a terminal state. A completed search triggers a
// single refresh of the stored results.
type Tracker struct {
	api          API
	pollInterval time.Duration
	removeDelay  time.Duration
	onChange     func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	entries map[string]*trackedEntry
	dropped map[string]DropReason
	order   []string
	results []Result
	timers  []*time.Timer
}

type TrackerOption func(*Tracker)

func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.pollInterval = d }
}

// WithRemoveDelay sets how long a cancelled entry stays visible
func WithRemoveDelay(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.removeDelay = d }
}

// WithOnChange registers a callback run after every state change
func WithOnChange(fn func()) TrackerOption {
	return func(t *Tracker) { t.onChange = fn }
}

func NewTracker(api API, opts ...TrackerOption) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		api:          api,
		pollInterval: time.Second,
		removeDelay:  time.Second,
		ctx:          ctx,
		cancel:       cancel,
		entries:      make(map[string]*trackedEntry),
		dropped:      make(map[string]DropReason),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit starts a search and begins polling it. An empty query is rejected
// without calling the API.
func (t *Tracker) Submit(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	submitted, err := t.api.Submit(ctx, query)
	if err != nil {
		return "", err
	}

	pollCtx, stop := context.WithCancel(t.ctx)
	t.mu.Lock()
	t.entries[submitted.SearchID] = &trackedEntry{
		Entry: Entry{
			ID:    submitted.SearchID,
			Query: query,
			State: EntryProcessing,
		},
		stop: stop,
	}
	t.order = append(t.order, submitted.SearchID)
	t.mu.Unlock()
	t.changed()

	t.wg.Add(1)
	go t.poll(pollCtx, submitted.SearchID)

	return submitted.SearchID, nil
}

// Cancel flips the entry to cancelling before the request is sent. On
// success the entry is dropped after the remove delay. On failure the status
// is fetched again and, if that also fails, the entry reverts to processing.
// Completed and failed entries are left alone.
func (t *Tracker) Cancel(ctx context.Context, id string) error {
	t.mu.Lock()
	entry, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownEntry
	}
	if entry.State == EntryCompleted || entry.State == EntryFailed {
		t.mu.Unlock()
		return ErrNotCancellable
	}
	entry.State = EntryCancelling
	entry.Progress = 0
	t.mu.Unlock()
	t.changed()

	if _, err := t.api.Cancel(ctx, id); err != nil {
		status, statusErr := t.api.Status(ctx, id)
		if statusErr != nil {
			t.update(id, func(e *trackedEntry) { e.State = EntryProcessing })
			return err
		}
		t.apply(status, true)
		return err
	}

	t.mu.Lock()
	t.timers = append(t.timers, time.AfterFunc(t.removeDelay, func() { t.remove(id, DroppedCancelled) }))
	t.mu.Unlock()
	return nil
}

// Entries returns the tracked searches in submission order
func (t *Tracker) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		if e, ok := t.entries[id]; ok {
			out = append(out, e.Entry)
		}
	}
	return out
}

func (t *Tracker) Entry(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.Entry, true
}

// Dropped reports why a search is no longer tracked. A 404 while polling
// means the job expired or was removed on the server.
func (t *Tracker) Dropped(id string) (DropReason, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	reason, ok := t.dropped[id]
	return reason, ok
}

// Results returns the stored results from the last refresh
func (t *Tracker) Results() []Result {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Result(nil), t.results...)
}

// Refresh reloads the stored results
func (t *Tracker) Refresh(ctx context.Context) error {
	results, err := t.api.Results(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.results = results
	t.mu.Unlock()
	t.changed()
	return nil
}

// Close stops every poller and pending removal
func (t *Tracker) Close() {
	t.cancel()
	t.mu.Lock()
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = nil
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) poll(ctx context.Context, id string) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := t.api.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Debug("status poll failed", "search_id", id, "error", err)
			if IsNotFound(err) {
				t.remove(id, DroppedExpired)
				return
			}
			continue
		}
		if done := t.apply(status, false); done {
			return
		}
	}
}

// apply folds a server status into the entry and reports whether polling
// should stop. Only the first observed completion refreshes the results.
func (t *Tracker) apply(status *Status, afterCancelFailure bool) bool {
	id := status.SearchID
	switch status.Status {
	case StatusCompleted:
		first := false
		t.update(id, func(e *trackedEntry) {
			first = !e.refreshed
			e.refreshed = true
			e.State = EntryCompleted
			e.Progress = 100
			e.Step = ""
			e.stop()
		})
		if first {
			if err := t.Refresh(t.ctx); err != nil {
				slog.Warn("failed to refresh results", "error", err)
			}
		}
		return true
	case StatusFailed:
		t.update(id, func(e *trackedEntry) {
			e.State = EntryFailed
			e.Progress = 0
			if status.Error != nil {
				e.Error = *status.Error
			}
			e.stop()
		})
		return true
	case StatusCancelled:
		t.remove(id, DroppedCancelled)
		return true
	case StatusCancelling:
		t.update(id, func(e *trackedEntry) {
			e.State = EntryCancelling
			e.Progress = 0
		})
	default:
		t.update(id, func(e *trackedEntry) {
			if afterCancelFailure {
				e.State = EntryProcessing
			}
			if e.State != EntryProcessing {
				return
			}
			e.Progress = status.Progress
			e.Step = status.CurrentStep
		})
	}
	return false
}

func (t *Tracker) update(id string, fn func(*trackedEntry)) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		fn(e)
	}
	t.mu.Unlock()
	if ok {
		t.changed()
	}
	return ok
}

func (t *Tracker) remove(id string, reason DropReason) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
		t.dropped[id] = reason
		for i, oid := range t.order {
			if oid == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		e.stop()
	}
	t.mu.Unlock()
	if ok {
		t.changed()
	}
}

func (t *Tracker) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}
