package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/audit"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
)

// AdminHandler serves user administration and audit log access. All
// endpoints require an admin account.
type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// RequireAdmin aborts requests from non-admin callers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.UserFromContext(c)
		if err != nil || user.AccountType != models.AccountAdmin {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

type createUserRequest struct {
	Username    string             `json:"username" binding:"required"`
	Email       string             `json:"email" binding:"required"`
	Password    string             `json:"password" binding:"required"`
	AccountType models.AccountType `json:"account_type"`
}

type updateAccountTypeRequest struct {
	AccountType models.AccountType `json:"account_type" binding:"required"`
}

// ListUsers returns all user accounts.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.db.Order("username ASC").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUser adds a user account.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if req.AccountType == "" {
		req.AccountType = models.AccountStandard
	}
	switch req.AccountType {
	case models.AccountAdmin, models.AccountStaff, models.AccountStandard, models.AccountLimited:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid account type"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to hash password"})
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		AccountType:  req.AccountType,
	}
	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Username or email already exists"})
		return
	}

	caller, _ := auth.UserFromContext(c)
	audit.LogAction(h.db, caller.ID, audit.ActionCreateUser, fmt.Sprintf("user:%s", user.ID), map[string]interface{}{
		"username":     user.Username,
		"account_type": user.AccountType,
	})

	c.JSON(http.StatusCreated, user)
}

// UpdateAccountType changes a user's account tier.
func (h *AdminHandler) UpdateAccountType(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateAccountTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	switch req.AccountType {
	case models.AccountAdmin, models.AccountStaff, models.AccountStandard, models.AccountLimited:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid account type"})
		return
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "User not found"})
		return
	}

	user.AccountType = req.AccountType
	if err := h.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update user"})
		return
	}

	caller, _ := auth.UserFromContext(c)
	audit.LogAction(h.db, caller.ID, audit.ActionUpdateUser, fmt.Sprintf("user:%s", user.ID), map[string]interface{}{
		"account_type": user.AccountType,
	})

	c.JSON(http.StatusOK, user)
}

// DeleteUser removes a user account. Users still owning workspaces
// cannot be deleted.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	caller, _ := auth.UserFromContext(c)
	if caller.ID == id {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Cannot delete your own account"})
		return
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "User not found"})
		return
	}

	var owned int64
	if err := h.db.Model(&models.Workspace{}).Where("owner_id = ?", id).Count(&owned).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to check workspaces"})
		return
	}
	if owned > 0 {
		c.JSON(http.StatusConflict, ErrorResponse{Error: fmt.Sprintf("User owns %d workspace(s); delete or transfer them first", owned)})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Collaborator{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete user"})
		return
	}

	audit.LogAction(h.db, caller.ID, audit.ActionDeleteUser, fmt.Sprintf("user:%s", user.ID), map[string]interface{}{
		"username": user.Username,
	})

	c.Status(http.StatusNoContent)
}

// ListAuditLogs returns recent audit entries, newest first.
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid limit"})
			return
		}
		limit = n
	}

	var logs []models.AuditLog
	if err := h.db.Order("timestamp DESC").Limit(limit).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch audit logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}
