package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/permissions"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// PrincipalContextKey is the key used to store the resolved principal in
// the Gin context. Absent means the request is anonymous.
const PrincipalContextKey = "principal"

// APIKeyHeader carries a raw API key secret.
const APIKeyHeader = "X-Api-Key"

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// PrincipalFromContext returns the resolved principal, or nil for an
// anonymous request.
func PrincipalFromContext(c *gin.Context) permissions.Principal {
	value, exists := c.Get(PrincipalContextKey)
	if !exists {
		return nil
	}
	p, ok := value.(permissions.Principal)
	if !ok {
		return nil
	}
	return p
}

// UserFromContext returns the authenticated user, or ErrUnauthorized for
// anonymous and API-key requests. Used by endpoints that require a human
// caller, such as workspace creation.
func UserFromContext(c *gin.Context) (*models.User, error) {
	p, ok := PrincipalFromContext(c).(permissions.UserPrincipal)
	if !ok {
		return nil, ErrUnauthorized
	}
	return p.User, nil
}
