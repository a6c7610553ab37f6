package worker

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/queue"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSchedulerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Task{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedDueTask(t *testing.T, db *gorm.DB, due time.Time) *models.Task {
	t.Helper()
	interval := 900
	task := models.Task{
		Name:                  "load-gauges",
		DataConnectionID:      uuid.New(),
		OrchestrationSystemID: uuid.New(),
		Active:                true,
		IntervalSeconds:       &interval,
		NextRunAt:             &due,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	return &task
}

func tryDequeue(t *testing.T, q queue.Queue) *queue.RunMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	msg, err := q.Dequeue(ctx)
	if err != nil {
		return nil
	}
	return msg
}

func TestDispatchDue_EnqueuesAndAdvances(t *testing.T) {
	db := setupSchedulerDB(t)
	q := queue.NewMemoryQueue(10)
	s := NewScheduler(db, q, time.Second)

	due := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	task := seedDueTask(t, db, due)

	if err := s.dispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	msg := tryDequeue(t, q)
	if msg == nil {
		t.Fatal("expected a dispatched run")
	}
	if msg.TaskID != task.ID {
		t.Errorf("expected run for task %s, got %s", task.ID, msg.TaskID)
	}

	var got models.Task
	if err := db.First(&got, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if got.NextRunAt == nil || !got.NextRunAt.After(due) {
		t.Errorf("expected next_run_at advanced past %v, got %v", due, got.NextRunAt)
	}

	// The advanced schedule is in the future, so a second tick finds
	// nothing to dispatch.
	if err := s.dispatchDue(context.Background()); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if extra := tryDequeue(t, q); extra != nil {
		t.Errorf("expected no further dispatch, got run %s", extra.RunID)
	}
}

func TestDispatchTask_StaleScheduleSkipsEnqueue(t *testing.T) {
	db := setupSchedulerDB(t)
	q := queue.NewMemoryQueue(10)
	s := NewScheduler(db, q, time.Second)

	due := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	task := seedDueTask(t, db, due)

	// A peer scheduler advanced the row after this copy was read.
	later := due.Add(15 * time.Minute)
	err := db.Model(&models.Task{}).Where("id = ?", task.ID).Update("next_run_at", later).Error
	if err != nil {
		t.Fatalf("advance schedule: %v", err)
	}

	stale := *task
	s.dispatchTask(context.Background(), &stale, time.Now().UTC())

	if msg := tryDequeue(t, q); msg != nil {
		t.Errorf("losing scheduler still dispatched run %s", msg.RunID)
	}

	var got models.Task
	if err := db.First(&got, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(later) {
		t.Errorf("stale dispatch overwrote the schedule: got %v, want %v", got.NextRunAt, later)
	}
}
