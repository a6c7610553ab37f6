package etl

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/crypto"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
)

// Runner executes one task run to completion and owns the run's
// bookkeeping: the idempotent RUNNING transition, the single terminal
// SUCCESS/FAILURE write, and the unconditional next-run recompute.
type Runner struct {
	db        *gorm.DB
	chunkSize int
	fieldKey  []byte
}

// NewRunner creates a runner. fieldKey decrypts credential-bearing
// connection settings; nil leaves settings untouched.
func NewRunner(db *gorm.DB, chunkSize int, fieldKey []byte) *Runner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Runner{db: db, chunkSize: chunkSize, fieldKey: fieldKey}
}

// Execute runs the task once under the given run ID. A duplicate dispatch
// for a run ID that already started is a no-op, which tolerates
// at-least-once delivery from the queue. The error return covers only
// bookkeeping failures; pipeline errors are recorded on the run row.
func (r *Runner) Execute(ctx context.Context, runID, taskID uuid.UUID) error {
	started, run, err := r.start(ctx, runID, taskID)
	if err != nil {
		return err
	}
	if !started {
		slog.Info("Duplicate dispatch for run, ignoring", "run_id", runID)
		return nil
	}

	var task models.Task
	err = r.db.WithContext(ctx).
		Preload("DataConnection").
		Preload("Mappings.Paths").
		First(&task, "id = ?", taskID).Error
	if err != nil {
		r.markFailure(run, fmt.Sprintf("load task: %v", err), "")
		return nil
	}

	// The next run time is recomputed after every run, success or failure,
	// so a failing task does not wedge its schedule.
	defer r.rescheduleTask(&task)

	defer func() {
		if rec := recover(); rec != nil {
			r.markFailure(run, fmt.Sprintf("panic: %v", rec), string(debug.Stack()))
		}
	}()

	result, err := r.runPipeline(ctx, &task)
	if err != nil {
		r.markFailure(run, err.Error(), "")
		return nil
	}

	r.markSuccess(run, result)
	return nil
}

func (r *Runner) runPipeline(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
	conn := task.DataConnection
	if r.fieldKey != nil {
		decryptSettings(conn.ExtractorSettings, r.fieldKey)
		decryptSettings(conn.TransformerSettings, r.fieldKey)
		decryptSettings(conn.LoaderSettings, r.fieldKey)
	}

	deps := Deps{
		Store:     NewObservationStore(r.db),
		ChunkSize: r.chunkSize,
		Cache:     NewCutoffCache(),
	}
	pipeline, err := NewPipeline(&conn, task, deps)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx)
}

// start records the RUNNING state, creating the run row if this is the
// first dispatch for the run ID.
func (r *Runner) start(ctx context.Context, runID, taskID uuid.UUID) (bool, *models.TaskRun, error) {
	run := models.TaskRun{ID: runID}
	res := r.db.WithContext(ctx).
		Where("id = ?", runID).
		Attrs(models.TaskRun{
			ID:        runID,
			TaskID:    taskID,
			Status:    models.RunStatusRunning,
			StartedAt: time.Now().UTC(),
		}).
		FirstOrCreate(&run)
	if res.Error != nil {
		return false, nil, fmt.Errorf("start run %s: %w", runID, res.Error)
	}
	return res.RowsAffected > 0, &run, nil
}

// markSuccess writes the terminal SUCCESS state. The status guard makes
// the terminal write single-shot.
func (r *Runner) markSuccess(run *models.TaskRun, result map[string]interface{}) {
	r.finish(run, models.RunStatusSuccess, result)
}

func (r *Runner) markFailure(run *models.TaskRun, errMsg, traceback string) {
	result := map[string]interface{}{"error": errMsg}
	if traceback != "" {
		result["traceback"] = traceback
	}
	slog.Error("Task run failed", "run_id", run.ID, "task_id", run.TaskID, "error", errMsg)
	r.finish(run, models.RunStatusFailure, result)
}

// finish writes the terminal state through the model so the result map
// goes through the column's JSON serializer. The status guard makes the
// terminal write single-shot.
func (r *Runner) finish(run *models.TaskRun, status models.TaskRunStatus, result map[string]interface{}) {
	now := time.Now().UTC()
	err := r.db.Model(&models.TaskRun{}).
		Where("id = ? AND status = ?", run.ID, models.RunStatusRunning).
		Select("status", "finished_at", "result").
		Updates(models.TaskRun{
			Status:     status,
			FinishedAt: &now,
			Result:     result,
		}).Error
	if err != nil {
		slog.Error("Failed to record run completion", "run_id", run.ID, "error", err)
	}
}

// rescheduleTask recomputes next_run_at, clearing it for unscheduled
// tasks.
func (r *Runner) rescheduleTask(task *models.Task) {
	next := NextRunAt(task, time.Now().UTC())
	err := r.db.Model(&models.Task{}).
		Where("id = ?", task.ID).
		Update("next_run_at", next).Error
	if err != nil {
		slog.Error("Failed to update task schedule", "task_id", task.ID, "error", err)
	}
}

// decryptSettings decrypts encrypted string values in a settings map in
// place. Values without the ciphertext prefix pass through unchanged.
func decryptSettings(settings map[string]interface{}, key []byte) {
	for k, v := range settings {
		s, ok := v.(string)
		if !ok {
			continue
		}
		plain, err := crypto.DecryptField(s, key)
		if err != nil {
			slog.Warn("Failed to decrypt connection setting", "setting", k, "error", err)
			continue
		}
		settings[k] = plain
	}
}
