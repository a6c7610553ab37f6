package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/audit"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/permissions"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenDuration is the validity period for JWT tokens
const TokenDuration = 24 * time.Hour

// BasicAuthenticator implements username/password authentication with JWT
// session tokens.
type BasicAuthenticator struct {
	db        *gorm.DB
	jwtSecret []byte
	apiKeys   APIKeyResolver
}

// APIKeyResolver resolves a raw API key secret to its stored key.
type APIKeyResolver interface {
	Authenticate(raw string) (*models.APIKey, error)
}

// NewBasicAuthenticator creates a new basic authenticator. apiKeys may be
// nil to disable API key authentication.
func NewBasicAuthenticator(db *gorm.DB, jwtSecret string, apiKeys APIKeyResolver) *BasicAuthenticator {
	return &BasicAuthenticator{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		apiKeys:   apiKeys,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches the hash
func VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"` // UUID stored as string
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Login authenticates a user and returns a JWT token
func (a *BasicAuthenticator) Login(username, password string) (*LoginResponse, error) {
	var user models.User
	result := a.db.Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Warn("Login attempt with non-existent username", "username", username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	if !VerifyPassword(user.PasswordHash, password) {
		slog.Warn("Login attempt with incorrect password", "username", username)
		audit.LogAction(a.db, user.ID, audit.ActionLoginFailed, fmt.Sprintf("user:%s", user.ID), nil)
		return nil, ErrInvalidCredentials
	}

	token, err := a.generateToken(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	slog.Info("User logged in successfully", "user_id", user.ID, "username", user.Username)
	audit.LogAction(a.db, user.ID, audit.ActionLogin, fmt.Sprintf("user:%s", user.ID), nil)
	return &LoginResponse{
		Token: token,
		User:  &user,
	}, nil
}

// generateToken creates a JWT token for a user
func (a *BasicAuthenticator) generateToken(user *models.User) (string, error) {
	claims := Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "hydroserve",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// validateToken validates a JWT token and returns claims
func (a *BasicAuthenticator) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrUnauthorized
}

// Middleware resolves the request's principal and stores it in the
// context. It checks (in order): Bearer token header, X-Api-Key header.
// Requests without credentials pass through as anonymous; only malformed
// or invalid credentials are rejected, so public resources stay readable
// without an account.
func (a *BasicAuthenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				c.Abort()
				return
			}

			user, err := a.validateAndLoadUser(parts[1])
			if err != nil {
				slog.Warn("Invalid token", "error", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				c.Abort()
				return
			}
			c.Set(PrincipalContextKey, permissions.UserPrincipal{User: user})
			c.Next()
			return
		}

		if raw := c.GetHeader(APIKeyHeader); raw != "" && a.apiKeys != nil {
			key, err := a.apiKeys.Authenticate(raw)
			if err != nil {
				slog.Warn("Invalid API key")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
				c.Abort()
				return
			}
			a.touchKey(key)
			c.Set(PrincipalContextKey, permissions.APIKeyPrincipal{Key: key})
			c.Next()
			return
		}

		// Anonymous request.
		c.Next()
	}
}

// RequireUser aborts requests that did not authenticate as a user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := UserFromContext(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// validateAndLoadUser validates a JWT and loads the user from the database.
func (a *BasicAuthenticator) validateAndLoadUser(tokenString string) (*models.User, error) {
	claims, err := a.validateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	var user models.User
	if result := a.db.First(&user, "id = ?", userID); result.Error != nil {
		return nil, fmt.Errorf("user not found: %w", result.Error)
	}

	return &user, nil
}

// touchKey records key usage. Best effort; a failed update does not block
// the request.
func (a *BasicAuthenticator) touchKey(key *models.APIKey) {
	now := time.Now().UTC()
	err := a.db.Model(&models.APIKey{}).
		Where("id = ?", key.ID).
		Update("last_used_at", now).Error
	if err != nil {
		slog.Warn("Failed to record API key usage", "key_id", key.ID, "error", err)
	}
	key.LastUsedAt = &now
}
