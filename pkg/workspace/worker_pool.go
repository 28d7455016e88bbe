package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gnana997/mtag/pkg/util"
)

// ErrPoolStopped is returned by Submit after Stop or cancellation.
var ErrPoolStopped = errors.New("worker pool stopped")

// FileJob represents a file to be processed by the worker pool.
type FileJob struct {
	FilePath string
	JobID    int
}

// FileResult pairs a job with its outcome.
type FileResult struct {
	FilePath string
	Outcome  *FileOutcome
	JobID    int
}

// ProcessFunc handles one job. It runs on a worker goroutine.
type ProcessFunc func(job FileJob) (*FileOutcome, error)

// WorkerPool manages a pool of goroutines for parallel file processing.
//
// Jobs go in through Submit; outcomes come back on Results and failures on
// Errors. Start the consumer before submitting, since Submit blocks once the
// job buffer is full.
//
//	pool := NewWorkerPool(ctx, numWorkers, process, logger)
//	pool.Start()
//	defer pool.Stop()
//
//	go collect(pool.Results(), pool.Errors())
//	for i, file := range files {
//	    pool.Submit(FileJob{FilePath: file, JobID: i})
//	}
//	pool.FinishSubmitting()
type WorkerPool struct {
	numWorkers int
	jobs       chan FileJob
	results    chan FileResult
	errors     chan FileError
	wg         sync.WaitGroup
	process    ProcessFunc
	logger     *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

// NewWorkerPool creates a worker pool bound to ctx. A numWorkers of 0 uses
// util.GetOptimalPoolSize(), which is also the parser pool size, so workers
// never queue on parsers.
func NewWorkerPool(ctx context.Context, numWorkers int, process ProcessFunc, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = util.GetOptimalPoolSize()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan FileJob, numWorkers*2),
		results:    make(chan FileResult, numWorkers),
		errors:     make(chan FileError, numWorkers),
		process:    process,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns the worker goroutines. Calling it twice is a no-op.
func (wp *WorkerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("worker pool already started")
		return
	}

	wp.logger.Debug("starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if !wp.processJob(id, job) {
				return
			}
		}
	}
}

// processJob reports false when the pool was cancelled mid-delivery.
func (wp *WorkerPool) processJob(workerID int, job FileJob) bool {
	outcome, err := wp.process(job)
	if err != nil {
		wp.jobsFailed.Add(1)
		wp.logger.Debug("job failed", "worker_id", workerID, "file", job.FilePath, "error", err)

		select {
		case wp.errors <- newFileError(job.FilePath, err):
			return true
		case <-wp.ctx.Done():
			return false
		}
	}

	wp.jobsProcessed.Add(1)

	select {
	case wp.results <- FileResult{FilePath: job.FilePath, Outcome: outcome, JobID: job.JobID}:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

// Submit enqueues a job, blocking while the queue is full.
func (wp *WorkerPool) Submit(job FileJob) error {
	if wp.stopped.Load() || wp.jobsClosed.Load() {
		return ErrPoolStopped
	}
	if err := wp.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPoolStopped, err)
	}

	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("%w: %w", ErrPoolStopped, wp.ctx.Err())
	case wp.jobs <- job:
		wp.jobsSubmitted.Add(1)
		return nil
	}
}

// Results returns the results channel.
func (wp *WorkerPool) Results() <-chan FileResult {
	return wp.results
}

// Errors returns the errors channel.
func (wp *WorkerPool) Errors() <-chan FileError {
	return wp.errors
}

// FinishSubmitting closes the job queue so workers exit once it drains.
// Safe to call more than once.
func (wp *WorkerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
		wp.logger.Debug("job queue closed", "total_submitted", wp.jobsSubmitted.Load())
	}
}

// Wait blocks until all workers have finished.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Stop cancels outstanding work, waits for the workers and closes the
// result channels. Safe to call more than once.
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}

	wp.FinishSubmitting()
	wp.cancel()
	wp.wg.Wait()

	close(wp.results)
	close(wp.errors)

	wp.logger.Debug("worker pool stopped",
		"jobs_submitted", wp.jobsSubmitted.Load(),
		"jobs_processed", wp.jobsProcessed.Load(),
		"jobs_failed", wp.jobsFailed.Load())
}

// GetStats returns current worker pool statistics.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    wp.numWorkers,
		JobsSubmitted: wp.jobsSubmitted.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsFailed:    wp.jobsFailed.Load(),
		QueueLength:   len(wp.jobs),
	}
}

// WorkerPoolStats contains statistics about the worker pool.
type WorkerPoolStats struct {
	NumWorkers    int
	JobsSubmitted int64
	JobsProcessed int64
	JobsFailed    int64
	QueueLength   int // jobs waiting for a worker
}
