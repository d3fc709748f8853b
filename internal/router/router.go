// Package router assembles the HTTP API.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"scenecast-backend/internal/config"
	"scenecast-backend/internal/handlers"
	"scenecast-backend/internal/logging"
	"scenecast-backend/internal/middleware"
	"scenecast-backend/internal/orchestrator"
	"scenecast-backend/internal/realtime"
)

type Deps struct {
	Config       *config.Config
	Logger       zerolog.Logger
	DB           handlers.Pinger
	Orchestrator *orchestrator.Orchestrator
	Reconciler   *orchestrator.Reconciler
	Hub          *realtime.Hub
}

func New(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(logging.GinLogger(d.Logger))
	router.Use(gin.Recovery())

	// Health checks (no auth)
	router.GET("/health", handlers.HealthHandler)
	router.GET("/ready", handlers.ReadyHandler(d.DB))

	projects := handlers.NewProjectsHandler(d.Orchestrator)
	videos := handlers.NewVideosHandler(d.Orchestrator)
	stream := handlers.NewStreamHandler(d.Orchestrator, d.Hub, d.Logger)
	webhooks := handlers.NewWebhookHandler(d.Reconciler, d.Logger)

	v1 := router.Group("/api/v1")
	v1.GET("/health", handlers.HealthHandler)

	// Provider callbacks carry a shared token instead of a user JWT.
	v1.POST("/webhooks/:provider", middleware.WebhookAuth(d.Config), webhooks.HandleWebhook)

	api := v1.Group("")
	api.Use(middleware.AuthMiddleware(d.Config))

	api.POST("/projects", projects.CreateProject)
	api.GET("/projects", projects.ListProjects)
	api.GET("/projects/:project_id", projects.GetProject)
	api.PUT("/projects/:project_id", projects.UpdateProject)
	api.DELETE("/projects/:project_id", projects.DeleteProject)
	api.GET("/projects/:project_id/scenes", projects.ListScenes)
	api.GET("/projects/:project_id/stream", stream.Stream)

	api.POST("/projects/:project_id/generate-video", videos.GenerateVideo)
	api.POST("/projects/:project_id/video-status", videos.VideoStatus)
	api.GET("/projects/:project_id/videos", videos.ListVideos)
	api.GET("/projects/:project_id/tasks/:task_id", videos.GetTask)
	api.DELETE("/projects/:project_id/tasks/:task_id", videos.CancelTask)
	api.DELETE("/projects/:project_id/video/:video_id", videos.CancelVideo)

	return router
}
