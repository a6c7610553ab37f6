package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunMessage is one dispatched task-run request. The run row itself is
// created by the runner at execution start; the message only carries
// identifiers, plus the enqueue time so the worker can drop stale
// dispatches.
type RunMessage struct {
	RunID      uuid.UUID `json:"run_id"`
	TaskID     uuid.UUID `json:"task_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue dispatches task runs to workers.
type Queue interface {
	// Enqueue adds a run message to the queue.
	Enqueue(ctx context.Context, msg *RunMessage) error

	// Dequeue retrieves the next run message, blocking until one is
	// available or the context ends. A context.DeadlineExceeded return
	// means no message was available within the poll window.
	Dequeue(ctx context.Context) (*RunMessage, error)

	// Close closes the queue and releases resources.
	Close() error
}
