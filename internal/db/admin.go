package db

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
)

// CreateDefaultAdmin bootstraps the first admin account from the
// ADMIN_USERNAME and ADMIN_PASSWORD environment variables. It only acts
// on an empty user table, so a fresh deployment gets an admin and an
// existing one is never touched.
func CreateDefaultAdmin(db *gorm.DB) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		slog.Info("No ADMIN_USERNAME or ADMIN_PASSWORD set, skipping default admin creation")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		slog.Info("Users already exist, skipping default admin creation")
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = fmt.Sprintf("%s@hydroserve.local", username)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		AccountType:  models.AccountAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("Default admin user created", "username", username, "email", email)
	return nil
}
