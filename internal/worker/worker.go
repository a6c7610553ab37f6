package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/queue"
	"golang.org/x/sync/semaphore"
)

// RunExecutor executes one dispatched run to completion. Satisfied by
// *etl.Runner.
type RunExecutor interface {
	Execute(ctx context.Context, runID, taskID uuid.UUID) error
}

// Worker pulls run messages from the queue and executes them through the
// ETL runner. Runs for different tasks execute concurrently up to the
// worker limit; mutual exclusion between overlapping runs of one task is
// not enforced here; the loader's cutoff/append semantics and the
// observation uniqueness constraint keep overlaps from double-inserting.
type Worker struct {
	queue          queue.Queue
	runner         RunExecutor
	maxWorkers     int
	dispatchExpiry time.Duration
	sem            *semaphore.Weighted
	wg             sync.WaitGroup
}

// New creates a worker instance. dispatchExpiry bounds how stale a queued
// message may be before it is dropped instead of executed.
func New(q queue.Queue, runner RunExecutor, maxWorkers int, dispatchExpiry time.Duration) *Worker {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Worker{
		queue:          q,
		runner:         runner,
		maxWorkers:     maxWorkers,
		dispatchExpiry: dispatchExpiry,
		sem:            semaphore.NewWeighted(int64(maxWorkers)),
	}
}

// Start begins processing runs from the queue until the context ends,
// then waits for in-flight runs to finish.
func (w *Worker) Start(ctx context.Context) error {
	slog.Info("Worker started", "max_concurrent_runs", w.maxWorkers)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Worker shutting down, waiting for runs to complete")
			w.wg.Wait()
			slog.Info("All runs completed, worker stopped")
			return ctx.Err()
		default:
			msg, err := w.queue.Dequeue(ctx)
			if err != nil {
				// DeadlineExceeded means an empty poll window, not a failure.
				if err == context.DeadlineExceeded {
					continue
				}
				if ctx.Err() != nil {
					continue
				}
				slog.Error("Failed to dequeue run", "error", err)
				time.Sleep(time.Second)
				continue
			}

			if msg == nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			if w.expired(msg) {
				slog.Warn("Dropping expired run dispatch",
					"run_id", msg.RunID,
					"task_id", msg.TaskID,
					"enqueued_at", msg.EnqueuedAt)
				continue
			}

			if err := w.sem.Acquire(ctx, 1); err != nil {
				slog.Info("Context cancelled while waiting for worker slot")
				w.wg.Wait()
				return ctx.Err()
			}
			w.wg.Add(1)
			go func(m *queue.RunMessage) {
				defer w.wg.Done()
				defer w.sem.Release(1)

				// An accepted run finishes even during shutdown; Start
				// blocks on the wait group, so cancellation must not reach
				// the run's database writes mid-chunk.
				w.processRun(context.WithoutCancel(ctx), m)
			}(msg)
		}
	}
}

// expired reports whether a message sat in the queue longer than the
// dispatch expiry. Expiry is a scheduling-layer bound: once a run starts
// it is never cancelled mid-chunk.
func (w *Worker) expired(msg *queue.RunMessage) bool {
	if w.dispatchExpiry <= 0 || msg.EnqueuedAt.IsZero() {
		return false
	}
	return time.Since(msg.EnqueuedAt) > w.dispatchExpiry
}

func (w *Worker) processRun(ctx context.Context, msg *queue.RunMessage) {
	slog.Info("Processing run", "run_id", msg.RunID, "task_id", msg.TaskID)

	if err := w.runner.Execute(ctx, msg.RunID, msg.TaskID); err != nil {
		slog.Error("Run bookkeeping failed", "run_id", msg.RunID, "error", err)
		return
	}

	slog.Info("Run finished", "run_id", msg.RunID, "task_id", msg.TaskID)
}
