package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
)

// Workspace deletion removes every owned resource before the workspace
// row itself. The ownership graph is declared as parent-to-child edges
// and walked by one generic routine, child-first, so deletion order is a
// property of the declaration rather than of hand-written recursive
// delete chains.

// cascadeStep deletes one kind of child row owned (directly or
// transitively) by the workspace.
type cascadeStep struct {
	name   string
	delete func(tx *gorm.DB, workspaceID uuid.UUID) error
}

// byColumn deletes rows of model where column matches the workspace ID.
func byColumn(name string, model interface{}, column string) cascadeStep {
	return cascadeStep{
		name: name,
		delete: func(tx *gorm.DB, workspaceID uuid.UUID) error {
			return tx.Unscoped().Where(column+" = ?", workspaceID).Delete(model).Error
		},
	}
}

// bySubquery deletes rows of model whose column matches a subquery over a
// parent table scoped to the workspace. Used for grandchildren that do
// not carry a workspace column themselves.
func bySubquery(name string, model interface{}, column, subquery string) cascadeStep {
	return cascadeStep{
		name: name,
		delete: func(tx *gorm.DB, workspaceID uuid.UUID) error {
			return tx.Unscoped().
				Where(column+" IN ("+subquery+")", workspaceID).
				Delete(model).Error
		},
	}
}

// workspaceCascade lists every owned child, deepest first. Observations
// go before datastreams, mapping paths before mappings, runs and mappings
// before tasks, and role-scoped rows before roles.
var workspaceCascade = []cascadeStep{
	bySubquery("observations", &models.Observation{}, "datastream_id",
		"SELECT id FROM datastreams WHERE workspace_id = ?"),
	byColumn("datastreams", &models.Datastream{}, "workspace_id"),
	byColumn("things", &models.Thing{}, "workspace_id"),
	bySubquery("task_mapping_paths", &models.TaskMappingPath{}, "mapping_id",
		"SELECT tm.id FROM task_mappings tm JOIN tasks t ON t.id = tm.task_id WHERE t.workspace_id = ?"),
	bySubquery("task_mappings", &models.TaskMapping{}, "task_id",
		"SELECT id FROM tasks WHERE workspace_id = ?"),
	bySubquery("task_runs", &models.TaskRun{}, "task_id",
		"SELECT id FROM tasks WHERE workspace_id = ?"),
	byColumn("tasks", &models.Task{}, "workspace_id"),
	byColumn("data_connections", &models.DataConnection{}, "workspace_id"),
	byColumn("orchestration_systems", &models.OrchestrationSystem{}, "workspace_id"),
	byColumn("sensors", &models.Sensor{}, "workspace_id"),
	byColumn("observed_properties", &models.ObservedProperty{}, "workspace_id"),
	byColumn("units", &models.Unit{}, "workspace_id"),
	byColumn("processing_levels", &models.ProcessingLevel{}, "workspace_id"),
	byColumn("result_qualifiers", &models.ResultQualifier{}, "workspace_id"),
	byColumn("api_keys", &models.APIKey{}, "workspace_id"),
	byColumn("collaborators", &models.Collaborator{}, "workspace_id"),
	bySubquery("role_permissions", &models.RolePermission{}, "role_id",
		"SELECT id FROM roles WHERE workspace_id = ?"),
	byColumn("roles", &models.Role{}, "workspace_id"),
}

// deleteWorkspaceContents removes all resources owned by the workspace,
// then the workspace row. Runs inside the caller's transaction.
func deleteWorkspaceContents(tx *gorm.DB, workspaceID uuid.UUID) error {
	for _, step := range workspaceCascade {
		if err := step.delete(tx, workspaceID); err != nil {
			return fmt.Errorf("cascade delete %s: %w", step.name, err)
		}
	}
	return tx.Unscoped().Delete(&models.Workspace{}, "id = ?", workspaceID).Error
}
