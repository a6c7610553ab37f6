package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/audit"
	"github.com/hydroserve/hydroserve/internal/etl"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/permissions"
	"github.com/hydroserve/hydroserve/internal/queue"
	"gorm.io/gorm"
)

// TaskService manages ETL tasks, their mappings, and run dispatch. Tasks
// are a restricted resource: visible only inside their own workspace.
type TaskService struct {
	db    *gorm.DB
	queue queue.Queue
}

// NewTaskService creates a new TaskService. The queue may be nil in
// deployments without a worker; Trigger then fails with a validation
// error.
func NewTaskService(db *gorm.DB, q queue.Queue) *TaskService {
	return &TaskService{db: db, queue: q}
}

// List returns the tasks visible to the principal, optionally limited to
// one workspace.
func (s *TaskService) List(p permissions.Principal, workspaceID *uuid.UUID) ([]models.Task, error) {
	query := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceTask)).
		Preload("Mappings.Paths").
		Order("name ASC")
	if workspaceID != nil {
		query = query.Where("workspace_id = ?", *workspaceID)
	}

	var tasks []models.Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Get returns one task with its mappings.
func (s *TaskService) Get(p permissions.Principal, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceTask)).
		Preload("Mappings.Paths").
		First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// Create adds a task with its mappings. The data connection and every
// target datastream must live in the task's workspace; the schedule is
// validated at save time.
func (s *TaskService) Create(ctx context.Context, p permissions.Principal, workspaceID uuid.UUID, task models.Task) (*models.Task, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireCreate(s.db, p, ws, permissions.ResourceTask); err != nil {
		return nil, err
	}
	if err := s.validateTask(workspaceID, &task); err != nil {
		return nil, err
	}

	task.ID = uuid.Nil
	task.WorkspaceID = &workspaceID
	task.NextRunAt = etl.NextRunAt(&task, time.Now().UTC())

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mappings := task.Mappings
		task.Mappings = nil
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		return createMappings(tx, task.ID, mappings)
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionCreateTask, fmt.Sprintf("task:%s", task.ID), map[string]interface{}{
		"name":         task.Name,
		"workspace_id": workspaceID,
	})

	return s.Get(p, task.ID)
}

// Update replaces a task's configuration and mappings, then recomputes
// its schedule.
func (s *TaskService) Update(ctx context.Context, p permissions.Principal, id uuid.UUID, updates models.Task) (*models.Task, error) {
	task, err := s.Get(p, id)
	if err != nil {
		return nil, err
	}
	ws, err := workspaceFor(s.db, task.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceTask, permissions.ActionEdit); err != nil {
		return nil, err
	}
	if task.WorkspaceID != nil {
		if err := s.validateTask(*task.WorkspaceID, &updates); err != nil {
			return nil, err
		}
	}

	task.Name = updates.Name
	task.DataConnectionID = updates.DataConnectionID
	task.OrchestrationSystemID = updates.OrchestrationSystemID
	task.Crontab = updates.Crontab
	task.IntervalSeconds = updates.IntervalSeconds
	task.Active = updates.Active
	task.NextRunAt = etl.NextRunAt(task, time.Now().UTC())

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mappings := updates.Mappings
		task.Mappings = nil
		task.DataConnection = models.DataConnection{}
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		if err := deleteMappings(tx, task.ID); err != nil {
			return err
		}
		return createMappings(tx, task.ID, mappings)
	})
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionUpdateTask, fmt.Sprintf("task:%s", task.ID), nil)
	return s.Get(p, task.ID)
}

// Delete removes a task with its mappings and run history.
func (s *TaskService) Delete(ctx context.Context, p permissions.Principal, id uuid.UUID) error {
	task, err := s.Get(p, id)
	if err != nil {
		return err
	}
	ws, err := workspaceFor(s.db, task.WorkspaceID)
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceTask, permissions.ActionDelete); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteMappings(tx, task.ID); err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskRun{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Task{}, "id = ?", task.ID).Error
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionDeleteTask, fmt.Sprintf("task:%s", task.ID), map[string]interface{}{
		"name": task.Name,
	})
	return nil
}

// Trigger dispatches an immediate run of the task. The run ID is minted
// here; the run row is created by the worker when it picks the message
// up.
func (s *TaskService) Trigger(ctx context.Context, p permissions.Principal, id uuid.UUID) (uuid.UUID, error) {
	task, err := s.Get(p, id)
	if err != nil {
		return uuid.Nil, err
	}
	ws, err := workspaceFor(s.db, task.WorkspaceID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceTask, permissions.ActionEdit); err != nil {
		return uuid.Nil, err
	}
	if !task.Active {
		return uuid.Nil, &ValidationError{Message: "task is not active"}
	}
	if s.queue == nil {
		return uuid.Nil, &ValidationError{Message: "run dispatch is not configured"}
	}

	runID := uuid.New()
	msg := &queue.RunMessage{
		RunID:      runID,
		TaskID:     task.ID,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		return uuid.Nil, fmt.Errorf("dispatch run: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionTriggerTask, fmt.Sprintf("task:%s", task.ID), map[string]interface{}{
		"run_id": runID,
	})
	return runID, nil
}

// Runs returns the task's run history, newest first.
func (s *TaskService) Runs(p permissions.Principal, id uuid.UUID, limit int) ([]models.TaskRun, error) {
	if _, err := s.Get(p, id); err != nil {
		return nil, err
	}

	query := s.db.Where("task_id = ?", id).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.TaskRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// validateTask checks the schedule, the referenced connection and system,
// and every mapping target against the workspace.
func (s *TaskService) validateTask(workspaceID uuid.UUID, task *models.Task) error {
	if task.Name == "" {
		return &ValidationError{Message: "task name is required"}
	}
	if task.Crontab != "" && task.IntervalSeconds != nil {
		return &ValidationError{Message: "a task may have a crontab or an interval, not both"}
	}
	if err := etl.ValidateSchedule(task); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	var conn models.DataConnection
	if err := s.db.First(&conn, "id = ?", task.DataConnectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationError{Message: "data connection does not exist"}
		}
		return err
	}
	if conn.WorkspaceID != nil && *conn.WorkspaceID != workspaceID {
		return &ValidationError{Message: "data connection belongs to a different workspace"}
	}

	var sysCount int64
	err := s.db.Model(&models.OrchestrationSystem{}).
		Where("id = ? AND (workspace_id = ? OR workspace_id IS NULL)", task.OrchestrationSystemID, workspaceID).
		Count(&sysCount).Error
	if err != nil {
		return err
	}
	if sysCount == 0 {
		return &ValidationError{Message: "orchestration system does not exist"}
	}

	for _, m := range task.Mappings {
		if m.SourceIdentifier == "" {
			return &ValidationError{Message: "mapping source identifier is required"}
		}
		if len(m.Paths) == 0 {
			return &ValidationError{Message: fmt.Sprintf("mapping %q has no target paths", m.SourceIdentifier)}
		}
		for _, path := range m.Paths {
			var count int64
			err := s.db.Model(&models.Datastream{}).
				Where("id = ? AND workspace_id = ?", path.DatastreamID, workspaceID).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count == 0 {
				return &ValidationError{Message: fmt.Sprintf("datastream %s is not in this workspace", path.DatastreamID)}
			}
		}
	}
	return nil
}

func createMappings(tx *gorm.DB, taskID uuid.UUID, mappings []models.TaskMapping) error {
	for _, m := range mappings {
		paths := m.Paths
		m.ID = 0
		m.TaskID = taskID
		m.Paths = nil
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		for _, path := range paths {
			path.ID = 0
			path.MappingID = m.ID
			if err := tx.Create(&path).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func deleteMappings(tx *gorm.DB, taskID uuid.UUID) error {
	err := tx.Where("mapping_id IN (SELECT id FROM task_mappings WHERE task_id = ?)", taskID).
		Delete(&models.TaskMappingPath{}).Error
	if err != nil {
		return err
	}
	return tx.Where("task_id = ?", taskID).Delete(&models.TaskMapping{}).Error
}
