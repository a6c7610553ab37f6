package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements an in-process run queue for single-node
// deployments and tests.
type MemoryQueue struct {
	msgChan chan *RunMessage
}

// NewMemoryQueue creates a new in-memory queue.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	q := &MemoryQueue{
		msgChan: make(chan *RunMessage, bufferSize),
	}

	slog.Info("Initialized in-memory run queue", "buffer_size", bufferSize)
	return q
}

// Enqueue adds a run message to the queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, msg *RunMessage) error {
	if msg.RunID == uuid.Nil {
		return fmt.Errorf("run message must have a run ID")
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}

	select {
	case q.msgChan <- msg:
		slog.Debug("Run enqueued", "run_id", msg.RunID, "task_id", msg.TaskID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("queue is full, could not enqueue run %s", msg.RunID)
	}
}

// Dequeue retrieves the next run message from the queue.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*RunMessage, error) {
	select {
	case msg := <-q.msgChan:
		slog.Debug("Run dequeued", "run_id", msg.RunID, "task_id", msg.TaskID)
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the queue and releases resources.
func (q *MemoryQueue) Close() error {
	close(q.msgChan)
	slog.Info("Memory queue closed")
	return nil
}
