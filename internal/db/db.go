package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/hydroserve/hydroserve/internal/config"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New creates a new database connection based on configuration
func New(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		// Configure SQLite with WAL mode and busy timeout for better concurrency
		dialector = sqlite.Open(cfg.DSN + "?_journal_mode=WAL&_busy_timeout=5000")
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	// Configure GORM logger (silent in production, info in dev)
	gormLogger := logger.Default.LogMode(logger.Warn)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// Uniqueness violations must surface as gorm.ErrDuplicatedKey so the
		// observation loader and the services can detect conflicts portably.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite: Use single connection to avoid locking issues
		// WAL mode allows concurrent reads but only one writer
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		slog.Info("Configured SQLite with WAL mode and single connection")
	} else {
		maxIdleConns := cfg.MaxIdleConns
		if maxIdleConns <= 0 {
			maxIdleConns = 10
		}
		maxOpenConns := cfg.MaxOpenConns
		if maxOpenConns <= 0 {
			maxOpenConns = 100
		}
		connMaxLifetime := cfg.ConnMaxLifetime
		if connMaxLifetime <= 0 {
			connMaxLifetime = 60 // Default 60 minutes
		}

		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Minute)

		slog.Info("Configured PostgreSQL connection pool",
			"max_idle_conns", maxIdleConns,
			"max_open_conns", maxOpenConns,
			"conn_max_lifetime_min", connMaxLifetime)
	}

	return db, nil
}

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB) error {
	slog.Info("Running database migrations...")

	// Auto-migrate all models
	err := db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.Role{},
		&models.RolePermission{},
		&models.Collaborator{},
		&models.APIKey{},
		&models.Thing{},
		&models.Sensor{},
		&models.ObservedProperty{},
		&models.Unit{},
		&models.ProcessingLevel{},
		&models.ResultQualifier{},
		&models.Datastream{},
		&models.Observation{},
		&models.OrchestrationSystem{},
		&models.DataConnection{},
		&models.Task{},
		&models.TaskMapping{},
		&models.TaskMappingPath{},
		&models.TaskRun{},
		&models.AuditLog{},
		&models.ServerConfig{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Seed system roles if they don't exist
	if err := seedSystemRoles(db); err != nil {
		return fmt.Errorf("failed to seed system roles: %w", err)
	}

	return nil
}

// seedSystemRoles creates the nil-workspace roles usable from any
// workspace: editor, viewer, and a loader role for ETL API keys.
func seedSystemRoles(db *gorm.DB) error {
	systemRoles := []struct {
		role   models.Role
		grants []models.RolePermission
	}{
		{
			role: models.Role{Name: "editor", Description: "Create and modify workspace resources", IsUserRole: true, IsAPIKeyRole: true},
			grants: []models.RolePermission{
				{PermissionType: "*", ResourceType: "*"},
			},
		},
		{
			role: models.Role{Name: "viewer", Description: "Read-only access to workspace resources", IsUserRole: true, IsAPIKeyRole: true},
			grants: []models.RolePermission{
				{PermissionType: "view", ResourceType: "*"},
			},
		},
		{
			role: models.Role{Name: "loader", Description: "Append observations through the data loading API", IsUserRole: false, IsAPIKeyRole: true},
			grants: []models.RolePermission{
				{PermissionType: "view", ResourceType: "Datastream"},
				{PermissionType: "view", ResourceType: "Observation"},
				{PermissionType: "edit", ResourceType: "Observation"},
			},
		},
	}

	for _, seed := range systemRoles {
		var existing models.Role
		result := db.Where("name = ? AND workspace_id IS NULL", seed.role.Name).First(&existing)
		if result.Error == gorm.ErrRecordNotFound {
			if err := db.Create(&seed.role).Error; err != nil {
				return err
			}
			for _, g := range seed.grants {
				g.RoleID = seed.role.ID
				if err := db.Create(&g).Error; err != nil {
					return err
				}
			}
			slog.Info("Created system role", "role", seed.role.Name)
		}
	}

	return nil
}
