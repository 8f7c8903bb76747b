package propagation

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/star/orbtrack/internal/metrics"
	"github.com/star/orbtrack/internal/transform"
)

// Prediction is one roster entry's state in a snapshot.
type Prediction struct {
	Index  int
	Object *Object
	State  State
}

// predictJob is a unit of work for the worker pool.
type predictJob struct {
	index int
	obj   *Object
}

// predictResult is the output of a single prediction.
type predictResult struct {
	prediction Prediction
	err        error
}

// WorkerPool manages a fixed number of goroutines for parallel prediction.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Snapshot predicts every object at t. Results are ordered by roster index.
// Failed objects are logged, counted and skipped; they never abort the batch.
func (wp *WorkerPool) Snapshot(ctx context.Context, objects []*Object, t time.Time) ([]Prediction, int) {
	if len(objects) == 0 {
		return nil, 0
	}

	start := time.Now()

	// Precompute GMST once for the target time (same for all objects).
	gmst := transform.GMST(t)

	jobs := make(chan predictJob, wp.workers*2)
	results := make(chan predictResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				state, err := job.obj.predict(t, gmst)
				result := predictResult{
					prediction: Prediction{Index: job.index, Object: job.obj, State: state},
					err:        err,
				}
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, obj := range objects {
			select {
			case jobs <- predictJob{index: i, obj: obj}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	predictions := make([]Prediction, 0, len(objects))
	var failures int

	for result := range results {
		if result.err != nil {
			failures++
			wp.logger.Warn("prediction failed",
				"norad_id", result.prediction.Object.CatalogNumber(),
				"error", result.err,
			)
			continue
		}
		predictions = append(predictions, result.prediction)
	}

	sort.Slice(predictions, func(i, j int) bool {
		return predictions[i].Index < predictions[j].Index
	})

	duration := time.Since(start)
	metrics.RecordSnapshot(duration, failures)

	wp.logger.Debug("snapshot complete",
		"objects", len(objects),
		"success", len(predictions),
		"errors", failures,
		"duration_ms", duration.Milliseconds(),
	)

	return predictions, failures
}
