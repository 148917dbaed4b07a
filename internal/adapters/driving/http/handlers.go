package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/docs"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports dependency health
// @Description Readiness status with per-dependency checks
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// PublishRequest is the optional body of a publish trigger
// @Description Publish pipeline options
type PublishRequest struct {
	SkipSmoke  bool   `json:"skipSmoke"`
	SmokeQuery string `json:"smokeQuery,omitempty" example:"email automation"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL and Redis when configured
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}
	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = "unavailable"
			resp.Status = "not ready"
			s.logger.Warn("readiness check failed", "dependency", name, "error", err)
			return
		}
		resp.Checks[name] = "ok"
	}
	check("postgres", s.db)
	check("redis", s.redisClient)

	if s.agents != nil {
		if s.agents.Current() != nil {
			resp.Checks["agent"] = "ok"
		} else {
			// searches still degrade to a clean timeout
			resp.Checks["agent"] = "none"
		}
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleAPIDoc serves the OpenAPI document
func (s *Server) handleAPIDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// Admin endpoints

// handlePublishCatalog godoc
// @Summary      Publish the catalog
// @Description  Enqueues a publish task running export, upload, register, activate and smoke test
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      PublishRequest  false  "Publish options"
// @Success      202      {object}  domain.Task
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      503      {object}  ErrorResponse  "Task queue unavailable"
// @Router       /admin/catalog/publish [post]
func (s *Server) handlePublishCatalog(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if s.taskQueue == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue not configured")
		return
	}

	task := domain.NewPublishCatalogTask(s.deployment, domain.PublishOptions{
		SkipSmoke:  req.SkipSmoke,
		SmokeQuery: req.SmokeQuery,
	})
	if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
		s.logger.Error("failed to enqueue publish task", "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue publish task")
		return
	}

	s.logger.Info("publish task enqueued", "task_id", task.ID, "deployment", task.Deployment)
	writeJSON(w, http.StatusAccepted, task)
}

// handleListTasks godoc
// @Summary      List publish tasks
// @Description  Lists recent tasks for this deployment, newest first
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Filter by status"
// @Success      200     {array}   domain.Task
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /admin/tasks [get]
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.taskQueue == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue not configured")
		return
	}

	tasks, err := s.taskQueue.ListTasks(r.Context(), driven.TaskFilter{
		Deployment: s.deployment,
		Status:     domain.TaskStatus(r.URL.Query().Get("status")),
		Limit:      50,
	})
	if err != nil {
		s.logger.Error("failed to list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}

	writeJSON(w, http.StatusOK, tasks)
}

// handleGetTask godoc
// @Summary      Get task
// @Description  Returns the status of a publish task
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /admin/tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.taskQueue == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue not configured")
		return
	}

	task, err := s.taskQueue.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("failed to get task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// handleGetAgent godoc
// @Summary      Active agent
// @Description  Returns the registration currently serving searches
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.AgentRegistration
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "No active agent"
// @Router       /admin/agent [get]
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	var reg *domain.AgentRegistration
	if s.agents != nil {
		reg = s.agents.Current()
	}
	if reg == nil {
		writeError(w, http.StatusNotFound, "no active agent, publish the catalog first")
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// handleRefreshAgent godoc
// @Summary      Refresh active agent
// @Description  Reloads the active registration from the registration store
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.AgentRegistration
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "No active agent"
// @Failure      503  {object}  ErrorResponse  "Registration store unavailable"
// @Router       /admin/agent/refresh [post]
func (s *Server) handleRefreshAgent(w http.ResponseWriter, r *http.Request) {
	if s.agents == nil {
		writeError(w, http.StatusNotFound, "no active agent, publish the catalog first")
		return
	}
	if err := s.agents.Refresh(r.Context()); err != nil {
		s.logger.Error("agent refresh failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "registration store unavailable")
		return
	}
	s.handleGetAgent(w, r)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
