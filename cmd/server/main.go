package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydroserve/hydroserve/internal/api"
	"github.com/hydroserve/hydroserve/internal/config"
	"github.com/hydroserve/hydroserve/internal/crypto"
	"github.com/hydroserve/hydroserve/internal/db"
	"github.com/hydroserve/hydroserve/internal/etl"
	"github.com/hydroserve/hydroserve/internal/logger"
	"github.com/hydroserve/hydroserve/internal/queue"
	"github.com/hydroserve/hydroserve/internal/worker"
)

// Version is set via ldflags at build time
var Version = "dev"

func main() {
	// Define CLI flags
	port := flag.Int("port", 0, "Port to run the server on (overrides config)")
	mode := flag.String("mode", "both", "Run mode: server (API only), worker (scheduler and runs only), or both")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Override port from CLI flag if provided
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Initialize logger
	logger.Init(cfg.Log.Format, cfg.Log.Level)
	slog.Info("Starting HydroServe", "version", Version, "mode", cfg.Server.Mode)

	// Initialize database
	database, err := db.New(cfg.Database)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	slog.Info("Database initialized", "driver", cfg.Database.Driver)

	// Run migrations
	if err := db.Migrate(database); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Each deployment gets a stable identifier, minted on first boot.
	serverID, err := db.GetOrCreateServerID(database)
	if err != nil {
		slog.Error("Failed to initialize server ID", "error", err)
		os.Exit(1)
	}
	slog.Info("Server identity ready", "server_id", serverID)

	// Create default admin user if configured
	if err := db.CreateDefaultAdmin(database); err != nil {
		slog.Error("Failed to create default admin user", "error", err)
		os.Exit(1)
	}

	// Derive the field encryption key for connection credentials. An empty
	// secret disables encryption; settings are then stored as entered.
	var fieldKey []byte
	if cfg.Auth.FieldKey != "" {
		fieldKey, err = crypto.DeriveKey(cfg.Auth.FieldKey)
		if err != nil {
			slog.Error("Failed to derive field encryption key", "error", err)
			os.Exit(1)
		}
		slog.Info("Connection credential encryption enabled")
	} else {
		slog.Warn("Connection credential encryption disabled (auth.field_key not set)")
	}

	// Initialize run queue based on configuration
	runQueue, err := createQueue(cfg)
	if err != nil {
		slog.Error("Failed to initialize run queue", "error", err)
		os.Exit(1)
	}
	defer runQueue.Close()
	slog.Info("Run queue initialized", "type", cfg.Queue.Type)

	// Initialize components based on run mode
	var srv *http.Server
	var workerCancel context.CancelFunc

	runServer := *mode == "server" || *mode == "both"
	runWorker := *mode == "worker" || *mode == "both"

	if !runServer && !runWorker {
		slog.Error("Invalid mode", "mode", *mode, "valid_modes", "server, worker, both")
		os.Exit(1)
	}

	// Initialize and start the scheduler and worker if needed
	if runWorker {
		runner := etl.NewRunner(database, cfg.ETL.ChunkSize, fieldKey)
		w := worker.New(runQueue, runner, cfg.ETL.Workers,
			time.Duration(cfg.ETL.DispatchExpirySecs)*time.Second)
		sched := worker.NewScheduler(database, runQueue, 0)

		workerCtx, cancel := context.WithCancel(context.Background())
		workerCancel = cancel

		go func() {
			if err := sched.Start(workerCtx); err != nil && err != context.Canceled {
				slog.Error("Scheduler failed", "error", err)
			}
		}()
		go func() {
			if err := w.Start(workerCtx); err != nil && err != context.Canceled {
				slog.Error("Worker failed", "error", err)
			}
		}()
		slog.Info("Worker started")
	}

	// Initialize and start API server if needed
	if runServer {
		router := api.NewRouter(cfg, database, runQueue, fieldKey)

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv = &http.Server{
			Addr:    addr,
			Handler: router,
		}

		go func() {
			slog.Info("Server listening", "address", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server failed", "error", err)
				os.Exit(1)
			}
		}()
	}

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down...")

	// Stop scheduler and worker if running
	if workerCancel != nil {
		workerCancel()
		slog.Info("Worker stopped")
	}

	// Shutdown server if running
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			os.Exit(1)
		}
		slog.Info("Server stopped")
	}

	slog.Info("HydroServe exited")
}

// createQueue creates a run queue based on configuration
func createQueue(cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "memory":
		return queue.NewMemoryQueue(100), nil
	case "valkey":
		if cfg.Queue.ValkeyAddr == "" {
			return nil, fmt.Errorf("valkey address is required when queue type is valkey")
		}
		return queue.NewValkeyQueue(cfg.Queue.ValkeyAddr)
	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: memory, valkey)", cfg.Queue.Type)
	}
}
