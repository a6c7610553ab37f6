package cmd

import (
	"fmt"

	"github.com/hydroserve/hydroserve/internal/config"
	"github.com/hydroserve/hydroserve/internal/db"
	"github.com/hydroserve/hydroserve/internal/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "hydroserve-cli",
	Short: "HydroServe CLI - Operational tooling for a HydroServe deployment",
	Long: `hydroserve-cli manages a HydroServe deployment directly against its database.

It reads the same configuration as the server (config.yaml or HYDROSERVE_*
environment variables), so run it on the host where HydroServe is deployed.

Examples:
  # Create the first admin account interactively
  hydroserve-cli user create-admin --username admin --email admin@example.com

  # List users
  hydroserve-cli user list

  # Promote a user to staff
  hydroserve-cli user set-account-type 1b4e28ba-2fa1-11d2-883f-0016d3cca427 staff`,
}

func Execute() error {
	return rootCmd.Execute()
}

// openDatabase loads the server configuration and connects to its
// database. Migrations run first so the CLI works on a fresh install.
func openDatabase() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Keep slog quiet; CLI output goes to stdout.
	logger.Init("text", "error")

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}
