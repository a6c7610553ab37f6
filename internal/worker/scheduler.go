package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/etl"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/queue"
	"gorm.io/gorm"
)

// Scheduler dispatches runs for tasks whose next_run_at has passed. It
// advances next_run_at at dispatch time so a task is not re-dispatched on
// every tick while its run is still queued; the runner recomputes the
// schedule again when the run finishes.
type Scheduler struct {
	db       *gorm.DB
	queue    queue.Queue
	interval time.Duration
}

// NewScheduler creates a scheduler polling at the given interval.
func NewScheduler(db *gorm.DB, q queue.Queue, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{db: db, queue: q, interval: interval}
}

// Start polls for due tasks until the context ends.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.Info("Scheduler started", "poll_interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.dispatchDue(ctx); err != nil {
				slog.Error("Scheduler dispatch failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) error {
	now := time.Now().UTC()

	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("active = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", true, now).
		Find(&tasks).Error
	if err != nil {
		return err
	}

	for _, task := range tasks {
		s.dispatchTask(ctx, &task, now)
	}
	return nil
}

// dispatchTask advances the task's schedule, then enqueues a run. The
// advance is guarded on the next_run_at value the task was read with;
// when another scheduler already advanced it, zero rows match and the
// task is skipped instead of dispatched twice.
func (s *Scheduler) dispatchTask(ctx context.Context, task *models.Task, now time.Time) {
	// Advance the schedule before enqueueing so a failed enqueue is
	// retried next occurrence rather than every tick.
	next := etl.NextRunAt(task, now)
	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND next_run_at = ?", task.ID, task.NextRunAt).
		Update("next_run_at", next)
	if res.Error != nil {
		slog.Error("Failed to advance task schedule", "task_id", task.ID, "error", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		slog.Info("Task already dispatched elsewhere, skipping", "task_id", task.ID)
		return
	}

	msg := &queue.RunMessage{
		RunID:      uuid.New(),
		TaskID:     task.ID,
		EnqueuedAt: now,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		slog.Error("Failed to enqueue scheduled run", "task_id", task.ID, "error", err)
		return
	}
	slog.Info("Dispatched scheduled run", "task_id", task.ID, "run_id", msg.RunID)
}
