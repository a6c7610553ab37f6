package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/auth"
)

// Login authenticates a user with username and password and returns a
// JWT token.
func Login(authenticator *auth.BasicAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		resp, err := authenticator.Login(req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid username or password"})
				return
			}
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// Me returns the authenticated user.
func Me(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}
	c.JSON(http.StatusOK, user)
}
