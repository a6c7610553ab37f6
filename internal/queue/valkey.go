package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// ValkeyQueue implements a distributed run queue on a Valkey list. Only
// identifiers travel through Valkey; the database stays the source of
// truth for run state.
type ValkeyQueue struct {
	client valkey.Client
	key    string
}

// NewValkeyQueue creates a new Valkey-backed queue.
func NewValkeyQueue(addr string) (*ValkeyQueue, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pingCmd := client.B().Ping().Build()
	if err := client.Do(ctx, pingCmd).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	q := &ValkeyQueue{
		client: client,
		key:    "hydroserve:runs",
	}

	slog.Info("Initialized Valkey run queue", "address", addr, "queue_key", q.key)
	return q, nil
}

// Enqueue pushes the run message onto the Valkey list (RPUSH for FIFO).
func (q *ValkeyQueue) Enqueue(ctx context.Context, msg *RunMessage) error {
	if msg.RunID == uuid.Nil {
		return fmt.Errorf("run message must have a run ID")
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal run message: %w", err)
	}

	cmd := q.client.B().Rpush().Key(q.key).Element(string(data)).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to push run to Valkey: %w", err)
	}

	slog.Debug("Run enqueued", "run_id", msg.RunID, "task_id", msg.TaskID, "queue_key", q.key)
	return nil
}

// Dequeue blocks on the list for up to five seconds. An empty poll is
// reported as context.DeadlineExceeded, which callers treat as "no work".
func (q *ValkeyQueue) Dequeue(ctx context.Context) (*RunMessage, error) {
	cmd := q.client.B().Blpop().Key(q.key).Timeout(5).Build()
	result := q.client.Do(ctx, cmd)

	values, err := result.AsStrSlice()
	if err != nil {
		// BLPOP timed out with no messages (valkey nil reply).
		return nil, context.DeadlineExceeded
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("invalid BLPOP result: expected 2 values, got %d", len(values))
	}

	var msg RunMessage
	if err := json.Unmarshal([]byte(values[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run message: %w", err)
	}

	slog.Debug("Run dequeued", "run_id", msg.RunID, "task_id", msg.TaskID)
	return &msg, nil
}

// Close closes the Valkey connection.
func (q *ValkeyQueue) Close() error {
	q.client.Close()
	slog.Info("Valkey queue closed")
	return nil
}
