// Package worker drains the submission queue and persists encoded
// records into per-identity ledgers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/verax/verax/internal/adapters/repository"
	"github.com/verax/verax/internal/domain/codec"
	"github.com/verax/verax/internal/domain/model"
	"github.com/verax/verax/pkg/logger"
	"github.com/verax/verax/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
)

// Submission abstracts what workers read off the queue.
type Submission = model.Submission

// Appender extends a ledger buffer with encoded record bytes.
type Appender interface {
	Append(ctx context.Context, key model.IdentityKey, payload []byte) error
	Count(ctx context.Context) int
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Submission
}

// Worker processes queued submissions until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for appending submissions.
type InMemoryWorker struct {
	queue    Queue
	appender Appender
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, appender Appender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		appender: appender,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	subChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case sub, ok := <-subChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processSubmission(ctx, sub); err != nil {
				w.logger.Error(ctx, "error processing submission", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processSubmission encodes one record and appends it to the
// identity's ledger.
func (w *InMemoryWorker) processSubmission(ctx context.Context, sub Submission) error {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	frame, err := codec.Encode(sub.Record)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "encode_error")
		w.logger.Error(ctx, "encoding failed for submission",
			logger.String("submissionID", sub.SubmissionID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to encode submission %s: %w", sub.SubmissionID, err)
	}

	if err := w.appender.Append(ctx, sub.Key, frame); err != nil {
		metrics.RecordAppendError()
		metrics.RecordWorkerError()
		if errors.Is(err, repository.ErrLedgerFull) {
			metrics.RecordErrorByComponent("worker", "ledger_full")
			w.logger.Warn(ctx, "ledger at capacity, submission dropped",
				logger.String("submissionID", sub.SubmissionID),
				logger.String("identity", sub.Key.String()),
			)
		} else {
			metrics.RecordErrorByComponent("worker", "append_error")
			w.logger.Error(ctx, "append failed for submission",
				logger.String("submissionID", sub.SubmissionID),
				logger.Error(err),
			)
		}
		return fmt.Errorf("append failed for submission %s: %w", sub.SubmissionID, err)
	}

	metrics.UpdateTotalLedgers(w.appender.Count(ctx))
	return nil
}

// Pool manages multiple workers draining the same queue.
type Pool struct {
	workers []*InMemoryWorker

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, appender Appender) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			appender,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown gracefully stops all workers, waiting for in-flight
// submissions to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, w := range p.workers {
		shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
		if err := w.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
		cancel()
	}
	if firstErr != nil {
		p.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(firstErr))
	}
	return firstErr
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}
