package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"taskboard/delivery/auth"
	"taskboard/delivery/rest/dto"
	"taskboard/delivery/rest/response"
	"taskboard/task"
)

// Pinger reports whether the task store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchedulerStatus reports whether the reminder loop is running
type SchedulerStatus interface {
	Running() bool
}

// Handler handles HTTP requests
type Handler struct {
	tasks     *task.Service
	store     Pinger
	scheduler SchedulerStatus
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(tasks *task.Service, store Pinger, scheduler SchedulerStatus, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tasks:     tasks,
		store:     store,
		scheduler: scheduler,
		logger:    logger,
	}
}

// ListTasks handles GET /tasks
func (h *Handler) ListTasks(c *gin.Context) {
	var query dto.ListTasksQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, response.BadRequest(err.Error()))
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), auth.OwnerID(c), query.ToRepositoryFilter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tasks)
}

// GetTask handles GET /tasks/:id
func (h *Handler) GetTask(c *gin.Context) {
	t, err := h.tasks.Get(c.Request.Context(), auth.OwnerID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// CreateTask handles POST /tasks
func (h *Handler) CreateTask(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BadRequest(err.Error()))
		return
	}

	ownerID := auth.OwnerID(c)
	created, err := h.tasks.Create(c.Request.Context(), ownerID, req.ToModel(ownerID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// UpdateTask handles PUT /tasks/:id
func (h *Handler) UpdateTask(c *gin.Context) {
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BadRequest(err.Error()))
		return
	}

	updated, err := h.tasks.Update(c.Request.Context(), auth.OwnerID(c), c.Param("id"), req.ToPatch())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, updated)
}

// DeleteTask handles DELETE /tasks/:id
func (h *Handler) DeleteTask(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), auth.OwnerID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Task deleted")
}

// ReorderTasks handles PUT /tasks/reorder and returns the full ordered list
func (h *Handler) ReorderTasks(c *gin.Context) {
	var req dto.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BadRequest(err.Error()))
		return
	}

	tasks, err := h.tasks.Reorder(c.Request.Context(), auth.OwnerID(c), req.TaskID, *req.NewPosition)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tasks)
}

// GetAnalytics handles GET /tasks/analytics
func (h *Handler) GetAnalytics(c *gin.Context) {
	analytics, err := h.tasks.Analytics(c.Request.Context(), auth.OwnerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, analytics)
}

// GetSettings handles GET /settings
func (h *Handler) GetSettings(c *gin.Context) {
	owner, err := h.tasks.Owner(c.Request.Context(), auth.OwnerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewSettingsResponse(owner))
}

// UpdateSettings handles PUT /settings by merging the body into the stored profile
// and preferences
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req dto.SettingsRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.Error(c, response.BadRequest(err.Error()))
		return
	}

	var body map[string]any
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		response.Error(c, response.BadRequest(err.Error()))
		return
	}
	if err := req.Collect(body); err != nil {
		response.Error(c, response.BadRequest(err.Error()))
		return
	}

	ctx := c.Request.Context()
	owner, err := h.tasks.Owner(ctx, auth.OwnerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := req.Apply(owner); err != nil {
		response.Error(c, response.BadRequest(err.Error()))
		return
	}

	if err := h.tasks.SaveOwner(ctx, owner); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewSettingsResponse(owner))
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	database := "ok"
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Health check: database unreachable", zap.Error(err))
		status = http.StatusServiceUnavailable
		database = "unreachable"
	}

	scheduler := "stopped"
	if h.scheduler != nil && h.scheduler.Running() {
		scheduler = "running"
	}

	c.JSON(status, gin.H{
		"status":    http.StatusText(status),
		"database":  database,
		"scheduler": scheduler,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
