// Package batch runs promotion operations over many assets with a bounded
// worker pool. Per-asset ordering is the promotion engine's concern; the
// coordinator only bounds concurrency and aggregates outcomes.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/metcalfcloud/pictallion/internal/library"
	"github.com/metcalfcloud/pictallion/internal/model"
)

// DefaultWorkers is the pool size when the configuration does not set one.
const DefaultWorkers = 4

// Operation selects which promotion step a batch performs.
type Operation string

const (
	OperationAnnotate Operation = "annotate"
	OperationFinalize Operation = "finalize"
)

// Engine is the per-asset promotion surface the coordinator drives.
type Engine interface {
	Annotate(ctx context.Context, assetID, actor string) (*model.TransitionRecord, error)
	Finalize(ctx context.Context, assetID, actor string, force bool) (*model.TransitionRecord, error)
}

// Failure describes one asset that could not be promoted.
type Failure struct {
	AssetID string
	Reason  string
}

// Result aggregates a finished batch. An asset appears in exactly one of
// Succeeded or Failed; Skipped counts assets never dispatched because the
// batch was cancelled.
type Result struct {
	Succeeded []string
	Failed    []Failure
	Skipped   int
}

// Tracker exposes batch progress for polling while a batch runs.
// All methods are safe for concurrent use.
type Tracker struct {
	total     atomic.Int64
	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// Progress returns how many assets have finished out of the total.
func (t *Tracker) Progress() (processed, total int64) {
	return t.processed.Load(), t.total.Load()
}

// Counts returns the running success and failure tallies.
func (t *Tracker) Counts() (succeeded, failed int64) {
	return t.succeeded.Load(), t.failed.Load()
}

// Coordinator fans batch operations out across a fixed worker pool.
type Coordinator struct {
	engine  Engine
	logger  library.Logger
	workers int
}

// NewCoordinator creates a coordinator with the given pool size.
// A non-positive size falls back to DefaultWorkers.
func NewCoordinator(engine Engine, workers int, logger library.Logger) *Coordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Coordinator{engine: engine, logger: logger, workers: workers}
}

// Run executes op over assetIDs and blocks until every dispatched asset has
// finished. Cancellation stops dispatching new work; in-flight assets run to
// completion and the returned result reflects everything that actually ran.
// tracker may be nil.
func (c *Coordinator) Run(ctx context.Context, op Operation, assetIDs []string, actor string, force bool, tracker *Tracker) (*Result, error) {
	if tracker == nil {
		tracker = &Tracker{}
	}
	tracker.total.Store(int64(len(assetIDs)))

	jobs := make(chan string)
	var mu sync.Mutex
	result := &Result{}

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for assetID := range jobs {
				err := c.runOne(ctx, op, assetID, actor, force)
				tracker.processed.Inc()

				mu.Lock()
				if err != nil {
					tracker.failed.Inc()
					result.Failed = append(result.Failed, Failure{AssetID: assetID, Reason: err.Error()})
				} else {
					tracker.succeeded.Inc()
					result.Succeeded = append(result.Succeeded, assetID)
				}
				mu.Unlock()
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, assetID := range assetIDs {
		select {
		case jobs <- assetID:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	result.Skipped = len(assetIDs) - dispatched
	sortResult(result)

	c.logger.Info("batch finished", "operation", string(op),
		"succeeded", len(result.Succeeded), "failed", len(result.Failed), "skipped", result.Skipped)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Coordinator) runOne(ctx context.Context, op Operation, assetID, actor string, force bool) error {
	switch op {
	case OperationAnnotate:
		_, err := c.engine.Annotate(ctx, assetID, actor)
		return err
	case OperationFinalize:
		_, err := c.engine.Finalize(ctx, assetID, actor, force)
		return err
	default:
		return fmt.Errorf("unknown batch operation: %s", op)
	}
}

// sortResult orders the aggregated slices so results are stable regardless
// of worker scheduling.
func sortResult(r *Result) {
	sort.Strings(r.Succeeded)
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].AssetID < r.Failed[j].AssetID })
}
