package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Boykai/github-workflows/pkg/config"
	"github.com/Boykai/github-workflows/pkg/database"
	"github.com/Boykai/github-workflows/pkg/models"
	"github.com/Boykai/github-workflows/pkg/orchestrator"
	"github.com/Boykai/github-workflows/pkg/services"
	"github.com/Boykai/github-workflows/pkg/version"
)

// executeWorkflowRequest is the body of POST /api/v1/workflows.
type executeWorkflowRequest struct {
	GitHubUser     string                      `json:"github_user"`
	ProjectID      string                      `json:"project_id"`
	Recommendation *models.IssueRecommendation `json:"recommendation"`
}

func (s *Server) executeWorkflow(c *gin.Context) {
	var req executeWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, services.NewValidationError("body", err.Error()))
		return
	}
	if req.ProjectID == "" {
		s.respondError(c, services.NewValidationError("project_id", "project_id is required"))
		return
	}
	if req.Recommendation == nil {
		s.respondError(c, services.NewValidationError("recommendation", "recommendation is required"))
		return
	}

	cfg, err := s.settings.GetWorkflowConfig(c.Request.Context(), req.GitHubUser, req.ProjectID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	wctx := &orchestrator.WorkflowContext{
		Config:         cfg,
		SessionID:      uuid.New().String(),
		Recommendation: req.Recommendation,
	}
	result := s.orch.ExecuteFullWorkflow(c.Request.Context(), wctx)

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

// startPollingRequest is the body of POST /api/v1/polling/start.
type startPollingRequest struct {
	GitHubUser      string `json:"github_user"`
	ProjectID       string `json:"project_id"`
	IntervalSeconds int    `json:"interval_seconds"`
}

func (s *Server) startPolling(c *gin.Context) {
	var req startPollingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, services.NewValidationError("body", err.Error()))
		return
	}
	if req.ProjectID == "" {
		s.respondError(c, services.NewValidationError("project_id", "project_id is required"))
		return
	}

	cfg, err := s.settings.GetWorkflowConfig(c.Request.Context(), req.GitHubUser, req.ProjectID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	interval := time.Duration(req.IntervalSeconds) * time.Second
	if err := s.poller.StartPolling(cfg, interval); err != nil {
		if strings.Contains(err.Error(), "already active") {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "polling started",
		"project_id": req.ProjectID,
	})
}

// stopPollingRequest is the body of POST /api/v1/polling/stop. An empty
// project_id stops every active loop.
type stopPollingRequest struct {
	ProjectID string `json:"project_id"`
}

func (s *Server) stopPolling(c *gin.Context) {
	var req stopPollingRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		s.respondError(c, services.NewValidationError("body", err.Error()))
		return
	}

	if req.ProjectID == "" {
		s.poller.StopAll()
		c.JSON(http.StatusOK, gin.H{"message": "polling stopped"})
		return
	}
	if err := s.poller.StopPolling(req.ProjectID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "polling stopped",
		"project_id": req.ProjectID,
	})
}

func (s *Server) pollingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.poller.GetPollingStatus())
}

func (s *Server) listTransitions(c *gin.Context) {
	issueID := c.Query("issue_id")
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(c, services.NewValidationError("limit", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	transitions := s.orch.Transitions().GetTransitions(issueID, limit)
	c.JSON(http.StatusOK, gin.H{
		"transitions": transitions,
		"count":       len(transitions),
	})
}

func (s *Server) listPipelines(c *gin.Context) {
	pipelines := s.orch.Stores().Pipelines.All()
	c.JSON(http.StatusOK, gin.H{
		"pipelines": pipelines,
		"count":     len(pipelines),
	})
}

func (s *Server) getPipeline(c *gin.Context) {
	issueNumber, err := strconv.Atoi(c.Param("issue"))
	if err != nil {
		s.respondError(c, services.NewValidationError("issue", "issue must be an integer"))
		return
	}
	pipeline, ok := s.orch.Stores().Pipelines.Get(issueNumber)
	if !ok {
		s.respondError(c, services.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, pipeline)
}

func (s *Server) getSettings(c *gin.Context) {
	user := c.Query("github_user")
	cfg, err := s.settings.GetWorkflowConfig(c.Request.Context(), user, c.Param("project"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) putSettings(c *gin.Context) {
	var cfg config.WorkflowConfiguration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		s.respondError(c, services.NewValidationError("body", err.Error()))
		return
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = c.Param("project")
	}
	if cfg.ProjectID != c.Param("project") {
		s.respondError(c, services.NewValidationError("project_id", "project_id does not match URL"))
		return
	}

	user := c.Query("github_user")
	if user == "" {
		user = services.CanonicalUser
	}
	if err := s.settings.SaveWorkflowConfig(c.Request.Context(), user, &cfg); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) deleteSettings(c *gin.Context) {
	user := c.Query("github_user")
	if user == "" {
		user = services.CanonicalUser
	}
	if err := s.settings.DeleteWorkflowConfig(c.Request.Context(), user, c.Param("project")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "settings deleted"})
}

func (s *Server) health(c *gin.Context) {
	dbHealth, err := database.Health(c.Request.Context(), s.db.DB(), s.db.Path())
	status := http.StatusOK
	if err != nil {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":   dbHealth.Status,
		"version":  version.Full(),
		"database": dbHealth,
		"polling":  s.poller.GetPollingStatus().IsRunning,
	})
}

// respondError maps the service error taxonomy onto HTTP status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
