package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/api/handlers"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/config"
	"github.com/hydroserve/hydroserve/internal/queue"
	"github.com/hydroserve/hydroserve/internal/service"
	"gorm.io/gorm"
)

// NewRouter creates and configures the Gin router. fieldKey encrypts
// credential-bearing connection settings; nil disables encryption.
func NewRouter(cfg *config.Config, db *gorm.DB, q queue.Queue, fieldKey []byte) *gin.Engine {
	// Set Gin mode
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())
	router.Use(corsMiddleware())

	// Services
	apiKeySvc := service.NewAPIKeyService(db)
	authenticator := auth.NewBasicAuthenticator(db, cfg.Auth.JWTSecret, apiKeySvc)

	wsHandler := handlers.NewWorkspaceHandler(service.NewWorkspaceService(db))
	collabHandler := handlers.NewCollaboratorHandler(service.NewCollaboratorService(db))
	roleHandler := handlers.NewRoleHandler(service.NewRoleService(db))
	keyHandler := handlers.NewAPIKeyHandler(apiKeySvc)
	thingHandler := handlers.NewThingHandler(service.NewThingService(db))
	streamHandler := handlers.NewDatastreamHandler(service.NewDatastreamService(db))
	obsHandler := handlers.NewObservationHandler(service.NewObservationService(db))
	connHandler := handlers.NewDataConnectionHandler(
		service.NewDataConnectionService(db, fieldKey),
		service.NewOrchestrationSystemService(db),
	)
	taskHandler := handlers.NewTaskHandler(service.NewTaskService(db, q))
	adminHandler := handlers.NewAdminHandler(db)

	sensorHandler := handlers.NewVocabularyHandler(service.NewSensorService(db))
	propertyHandler := handlers.NewVocabularyHandler(service.NewObservedPropertyService(db))
	unitHandler := handlers.NewVocabularyHandler(service.NewUnitService(db))
	levelHandler := handlers.NewVocabularyHandler(service.NewProcessingLevelService(db))
	qualifierHandler := handlers.NewVocabularyHandler(service.NewResultQualifierService(db))

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", handlers.HealthCheck)
		public.POST("/auth/login", handlers.Login(authenticator))
	}

	// All resource routes go through the principal-resolving middleware.
	// Anonymous requests pass through; visibility filtering happens in the
	// services.
	v1 := router.Group("/api/v1")
	v1.Use(authenticator.Middleware())
	{
		v1.GET("/auth/me", handlers.Me)

		// Workspace endpoints
		v1.GET("/workspaces", wsHandler.ListWorkspaces)
		v1.POST("/workspaces", auth.RequireUser(), wsHandler.CreateWorkspace)
		v1.GET("/workspaces/:id", wsHandler.GetWorkspace)
		v1.PATCH("/workspaces/:id", wsHandler.UpdateWorkspace)
		v1.DELETE("/workspaces/:id", wsHandler.DeleteWorkspace)

		// Membership and access control
		v1.GET("/workspaces/:id/collaborators", collabHandler.ListCollaborators)
		v1.POST("/workspaces/:id/collaborators", collabHandler.AddCollaborator)
		v1.PATCH("/workspaces/:id/collaborators/:user_id", collabHandler.UpdateCollaborator)
		v1.DELETE("/workspaces/:id/collaborators/:user_id", collabHandler.RemoveCollaborator)

		v1.GET("/workspaces/:id/roles", roleHandler.ListRoles)
		v1.POST("/workspaces/:id/roles", roleHandler.CreateRole)
		v1.GET("/workspaces/:id/roles/:role_id", roleHandler.GetRole)
		v1.PUT("/workspaces/:id/roles/:role_id", roleHandler.UpdateRole)
		v1.DELETE("/workspaces/:id/roles/:role_id", roleHandler.DeleteRole)

		v1.GET("/workspaces/:id/api-keys", keyHandler.ListAPIKeys)
		v1.POST("/workspaces/:id/api-keys", keyHandler.CreateAPIKey)
		v1.POST("/workspaces/:id/api-keys/:key_id/regenerate", keyHandler.RegenerateAPIKey)
		v1.DELETE("/workspaces/:id/api-keys/:key_id", keyHandler.DeleteAPIKey)

		// Monitoring sites and time series
		v1.GET("/things", thingHandler.ListThings)
		v1.GET("/things/:id", thingHandler.GetThing)
		v1.POST("/workspaces/:id/things", thingHandler.CreateThing)
		v1.PUT("/things/:id", thingHandler.UpdateThing)
		v1.DELETE("/things/:id", thingHandler.DeleteThing)

		v1.GET("/datastreams", streamHandler.ListDatastreams)
		v1.GET("/datastreams/:id", streamHandler.GetDatastream)
		v1.POST("/workspaces/:id/datastreams", streamHandler.CreateDatastream)
		v1.PUT("/datastreams/:id", streamHandler.UpdateDatastream)
		v1.DELETE("/datastreams/:id", streamHandler.DeleteDatastream)

		v1.GET("/datastreams/:id/observations", obsHandler.ListObservations)
		v1.POST("/datastreams/:id/observations", obsHandler.AppendObservations)

		// Vocabulary
		registerVocabulary(v1, "sensors", sensorHandler)
		registerVocabulary(v1, "observed-properties", propertyHandler)
		registerVocabulary(v1, "units", unitHandler)
		registerVocabulary(v1, "processing-levels", levelHandler)
		registerVocabulary(v1, "result-qualifiers", qualifierHandler)

		// ETL configuration and dispatch
		v1.GET("/data-connections", connHandler.ListDataConnections)
		v1.POST("/data-connections", connHandler.CreateDataConnection)
		v1.GET("/data-connections/:id", connHandler.GetDataConnection)
		v1.PUT("/data-connections/:id", connHandler.UpdateDataConnection)
		v1.DELETE("/data-connections/:id", connHandler.DeleteDataConnection)

		v1.GET("/orchestration-systems", connHandler.ListOrchestrationSystems)
		v1.POST("/orchestration-systems", connHandler.CreateOrchestrationSystem)
		v1.DELETE("/orchestration-systems/:id", connHandler.DeleteOrchestrationSystem)

		v1.GET("/tasks", taskHandler.ListTasks)
		v1.GET("/tasks/:id", taskHandler.GetTask)
		v1.POST("/workspaces/:id/tasks", taskHandler.CreateTask)
		v1.PUT("/tasks/:id", taskHandler.UpdateTask)
		v1.DELETE("/tasks/:id", taskHandler.DeleteTask)
		v1.POST("/tasks/:id/trigger", taskHandler.TriggerTask)
		v1.GET("/tasks/:id/runs", taskHandler.ListTaskRuns)

		// Admin endpoints
		admin := v1.Group("/admin", handlers.RequireAdmin())
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateUser)
			admin.PATCH("/users/:id", adminHandler.UpdateAccountType)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
		}
	}

	slog.Info("API router initialized", "mode", cfg.Server.Mode)
	return router
}

func registerVocabulary[T any](g *gin.RouterGroup, path string, h *handlers.VocabularyHandler[T]) {
	g.GET("/"+path, h.List)
	g.POST("/"+path, h.Create)
	g.GET("/"+path+"/:id", h.Get)
	g.PATCH("/"+path+"/:id", h.Update)
	g.DELETE("/"+path+"/:id", h.Delete)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		slog.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Api-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
