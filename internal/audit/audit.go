package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
)

// LogAction records an audit log entry
func LogAction(db *gorm.DB, userID uuid.UUID, action, resource string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	log := models.AuditLog{
		UserID:      userID,
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now(),
	}

	return db.Create(&log).Error
}

// Audit actions constants
const (
	ActionCreateUser           = "create_user"
	ActionUpdateUser           = "update_user"
	ActionDeleteUser           = "delete_user"
	ActionMakeAdmin            = "make_admin"
	ActionRevokeAdmin          = "revoke_admin"
	ActionLogin                = "login"
	ActionLoginFailed          = "login_failed"
	ActionCreateWorkspace      = "create_workspace"
	ActionUpdateWorkspace      = "update_workspace"
	ActionDeleteWorkspace      = "delete_workspace"
	ActionAddCollaborator      = "add_collaborator"
	ActionUpdateCollaborator   = "update_collaborator"
	ActionRemoveCollaborator   = "remove_collaborator"
	ActionCreateRole           = "create_role"
	ActionUpdateRole           = "update_role"
	ActionDeleteRole           = "delete_role"
	ActionCreateAPIKey         = "create_api_key"
	ActionRegenerateAPIKey     = "regenerate_api_key"
	ActionDeleteAPIKey         = "delete_api_key"
	ActionCreateDataConnection = "create_data_connection"
	ActionUpdateDataConnection = "update_data_connection"
	ActionDeleteDataConnection = "delete_data_connection"
	ActionCreateTask           = "create_task"
	ActionUpdateTask           = "update_task"
	ActionDeleteTask           = "delete_task"
	ActionTriggerTask          = "trigger_task"
)
