// Package api exposes the orchestrator over HTTP. Handlers are thin: parse
// and validate, call the core, map the error taxonomy to status codes.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/Boykai/github-workflows/pkg/database"
	"github.com/Boykai/github-workflows/pkg/orchestrator"
	"github.com/Boykai/github-workflows/pkg/poller"
	"github.com/Boykai/github-workflows/pkg/services"
)

// Server holds the API dependencies.
type Server struct {
	orch     *orchestrator.Orchestrator
	poller   *poller.Poller
	settings *services.SettingsService
	db       *database.Client
	logger   *slog.Logger
}

// NewServer creates an API server.
func NewServer(orch *orchestrator.Orchestrator, p *poller.Poller, settings *services.SettingsService, db *database.Client) *Server {
	return &Server{
		orch:     orch,
		poller:   p,
		settings: settings,
		db:       db,
		logger:   slog.Default().With("component", "api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/workflows", s.executeWorkflow)

		v1.POST("/polling/start", s.startPolling)
		v1.POST("/polling/stop", s.stopPolling)
		v1.GET("/polling/status", s.pollingStatus)

		v1.GET("/transitions", s.listTransitions)
		v1.GET("/pipelines", s.listPipelines)
		v1.GET("/pipelines/:issue", s.getPipeline)

		v1.GET("/settings/:project", s.getSettings)
		v1.PUT("/settings/:project", s.putSettings)
		v1.DELETE("/settings/:project", s.deleteSettings)
	}

	return router
}
