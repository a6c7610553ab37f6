package models

import (
	"time"

	"github.com/google/uuid"
)

// Collaborator links a user to a workspace with exactly one role.
// A user holds at most one role per workspace.
type Collaborator struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_collaborators_user_workspace" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	WorkspaceID uuid.UUID `gorm:"type:text;not null;index;uniqueIndex:idx_collaborators_user_workspace" json:"workspace_id"`
	Workspace   Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	RoleID      uuid.UUID `gorm:"type:text;not null;index" json:"role_id"`
	Role        Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
