package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
)

// GetOrCreateServerID returns this deployment's stable identity, minting
// and persisting one on first startup. Called after migrations.
func GetOrCreateServerID(db *gorm.DB) (string, error) {
	existing, err := lookupServerID(db)
	if err == nil {
		slog.Info("Found existing server ID", "server_id", existing)
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	config := models.ServerConfig{
		Key:   models.ServerConfigKeyServerID,
		Value: uuid.New().String(),
	}
	if err := db.Create(&config).Error; err != nil {
		return "", fmt.Errorf("store server ID: %w", err)
	}

	slog.Info("Generated new server ID", "server_id", config.Value)
	return config.Value, nil
}

// GetServerID returns the stored server identity, erroring if startup
// initialization has not run yet.
func GetServerID(db *gorm.DB) (string, error) {
	id, err := lookupServerID(db)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("server ID not initialized")
	}
	return id, err
}

func lookupServerID(db *gorm.DB) (string, error) {
	var config models.ServerConfig
	err := db.Where("key = ?", models.ServerConfigKeyServerID).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", gorm.ErrRecordNotFound
		}
		return "", fmt.Errorf("query server config: %w", err)
	}
	return config.Value, nil
}
