// Package maintenance provides the background worker that fills in and
// personalizes memory summaries.
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/innermaps/coachmem-go/pkg/profile"
	"github.com/innermaps/coachmem-go/pkg/storage"
	"github.com/innermaps/coachmem-go/pkg/summarizer"
)

// ErrNoUserName is returned by PersonalizeSummaries when no first name
// can be resolved for the owner. Without a name there is nothing to
// personalize toward, so the pass reports failure without touching any
// records.
var ErrNoUserName = errors.New("no user name available for personalization")

// Default batching parameters for summary processing.
const (
	// DefaultBatchSize is the number of records summarized concurrently.
	DefaultBatchSize = 5

	// DefaultBatchDelay is the pause between batches, to stay under
	// provider rate limits.
	DefaultBatchDelay = time.Second
)

// Result reports the outcome of a maintenance run.
type Result struct {
	// UpdatedCount is the number of records whose summary was written.
	// Records that failed to summarize are skipped, not counted.
	UpdatedCount int

	// Success reports whether the run completed. A run with skipped
	// records is still successful; only cancellation or a missing user
	// name makes it fail.
	Success bool

	// Err carries the failure cause when Success is false.
	Err error
}

// Worker processes memory summaries for a single owner in batches.
//
// It performs two passes:
//   - FillMissingSummaries writes a summary for every record without one
//   - PersonalizeSummaries rewrites summaries that do not mention the
//     owner's first name
//
// Both passes are idempotent: records that already satisfy the pass are
// never selected, so a second run over an unchanged store updates
// nothing.
type Worker struct {
	store      storage.Store
	summarizer summarizer.Provider
	names      profile.Resolver
	batchSize  int
	batchDelay time.Duration
	logger     *slog.Logger

	// wg tracks in-flight async runs.
	wg sync.WaitGroup
}

// Option is a function type for configuring a Worker.
type Option func(*Worker)

// WithBatchSize sets the number of records summarized concurrently.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithBatchDelay sets the pause between batches.
func WithBatchDelay(delay time.Duration) Option {
	return func(w *Worker) {
		if delay >= 0 {
			w.batchDelay = delay
		}
	}
}

// WithLogger sets the structured logger used by the worker.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// NewWorker creates a maintenance worker.
//
// Parameters:
//   - store: Storage backend holding the memory records
//   - provider: Summarization provider
//   - names: Resolver for the owner's first name
//   - opts: Optional batching and logging configuration
func NewWorker(store storage.Store, provider summarizer.Provider, names profile.Resolver, opts ...Option) *Worker {
	w := &Worker{
		store:      store,
		summarizer: provider,
		names:      names,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FillMissingSummaries writes a summary for every non-archived record of
// the owner that has none.
//
// The owner's first name is resolved best effort: when unavailable the
// summaries are still generated, just without personalization. Records
// whose summarization fails are logged and skipped; the pass keeps
// going.
func (w *Worker) FillMissingSummaries(ctx context.Context, ownerID string) *Result {
	firstName, err := w.names.FirstName(ctx, ownerID)
	if err != nil {
		w.logger.Warn("first name lookup failed, summarizing without personalization",
			"owner_id", ownerID, "error", err)
		firstName = ""
	}

	records, err := w.store.ListMissingSummaries(ctx, ownerID)
	if err != nil {
		return &Result{Success: false, Err: err}
	}

	return w.processBatches(ctx, ownerID, records, firstName)
}

// PersonalizeSummaries rewrites every summary of the owner that does not
// mention their first name.
//
// The pass requires a resolvable first name; without one it returns a
// failed Result carrying ErrNoUserName and modifies nothing. Summaries
// that already contain the name (case-insensitive) are left alone, which
// makes repeated runs converge to a no-op.
func (w *Worker) PersonalizeSummaries(ctx context.Context, ownerID string) *Result {
	firstName, err := w.names.FirstName(ctx, ownerID)
	if err != nil {
		return &Result{Success: false, Err: err}
	}
	if firstName == "" {
		return &Result{Success: false, Err: ErrNoUserName}
	}

	records, err := w.store.ListSummarized(ctx, ownerID)
	if err != nil {
		return &Result{Success: false, Err: err}
	}

	lowerName := strings.ToLower(firstName)
	var stale []*storage.Record
	for _, rec := range records {
		if rec.Summary == nil {
			continue
		}
		if strings.Contains(strings.ToLower(*rec.Summary), lowerName) {
			continue
		}
		stale = append(stale, rec)
	}

	return w.processBatches(ctx, ownerID, stale, firstName)
}

// Run executes both passes in order: fill missing summaries, then
// personalize existing ones. The updated counts are combined; the run
// fails if either pass fails.
func (w *Worker) Run(ctx context.Context, ownerID string) *Result {
	fill := w.FillMissingSummaries(ctx, ownerID)
	if !fill.Success {
		return fill
	}

	personalize := w.PersonalizeSummaries(ctx, ownerID)
	return &Result{
		UpdatedCount: fill.UpdatedCount + personalize.UpdatedCount,
		Success:      personalize.Success,
		Err:          personalize.Err,
	}
}

// RunAsync executes Run in a separate goroutine and returns a channel
// that receives the result when the run completes.
//
// The worker tracks the goroutine; Wait blocks until all async runs
// finish.
func (w *Worker) RunAsync(ctx context.Context, ownerID string) <-chan *Result {
	resultChan := make(chan *Result, 1)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		resultChan <- w.Run(ctx, ownerID)
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until all runs started with RunAsync have completed.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// processBatches summarizes the records in batches of batchSize with a
// pause between batches. Per-record failures are logged and skipped; the
// run only fails when the context is cancelled.
func (w *Worker) processBatches(ctx context.Context, ownerID string, records []*storage.Record, firstName string) *Result {
	var (
		mu      sync.Mutex
		updated int
	)

	for start := 0; start < len(records); start += w.batchSize {
		if err := ctx.Err(); err != nil {
			return &Result{UpdatedCount: updated, Success: false, Err: err}
		}

		end := start + w.batchSize
		if end > len(records) {
			end = len(records)
		}

		g, batchCtx := errgroup.WithContext(ctx)
		for _, rec := range records[start:end] {
			rec := rec
			g.Go(func() error {
				summary, err := w.summarizer.Summarize(batchCtx, rec.Content, firstName)
				if err != nil {
					w.logger.Warn("summarization failed, skipping record",
						"owner_id", ownerID, "record_id", rec.ID, "error", err)
					return nil
				}
				if err := w.store.SetSummary(ctx, ownerID, rec.ID, summary); err != nil {
					w.logger.Warn("summary write failed, skipping record",
						"owner_id", ownerID, "record_id", rec.ID, "error", err)
					return nil
				}
				mu.Lock()
				updated++
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if end < len(records) {
			select {
			case <-ctx.Done():
				return &Result{UpdatedCount: updated, Success: false, Err: ctx.Err()}
			case <-time.After(w.batchDelay):
			}
		}
	}

	return &Result{UpdatedCount: updated, Success: true}
}
