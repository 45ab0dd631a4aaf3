package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bytebot-ai/bytebot/agent/internal/application/usecase"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/entity"
	domainErrors "github.com/bytebot-ai/bytebot/agent/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TaskHandler exposes task CRUD and lifecycle endpoints.
type TaskHandler struct {
	uc     *usecase.TaskUseCase
	logger *zap.Logger
}

// NewTaskHandler creates the handler.
func NewTaskHandler(uc *usecase.TaskUseCase, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		uc:     uc,
		logger: logger.With(zap.String("handler", "task")),
	}
}

// CreateTaskRequest is the JSON body for POST /api/v1/tasks.
type CreateTaskRequest struct {
	Description string          `json:"description" binding:"required"`
	Model       json.RawMessage `json:"model,omitempty"`
}

// taskResponse is the wire shape of a task.
type taskResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Model       json.RawMessage `json:"model,omitempty"`
	CreatedBy   string          `json:"created_by"`
	Error       string          `json:"error,omitempty"`
	CompletedAt any             `json:"completed_at,omitempty"`
	CreatedAt   any             `json:"created_at"`
}

func toTaskResponse(task *entity.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		Description: task.Description,
		Status:      string(task.Status),
		Model:       task.Model,
		CreatedBy:   string(task.CreatedBy),
		Error:       task.Error,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
	}
}

// CreateTask handles POST /api/v1/tasks.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.uc.CreateTask(c.Request.Context(), req.Description, req.Model)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskResponse(task))
}

// GetTask handles GET /api/v1/tasks/:id.
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.uc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// ListMessages handles GET /api/v1/tasks/:id/messages.
func (h *TaskHandler) ListMessages(c *gin.Context) {
	messages, err := h.uc.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		out = append(out, gin.H{
			"id":         m.ID,
			"role":       string(m.Role),
			"content":    m.Content,
			"summary_id": m.SummaryID,
			"created_at": m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// Takeover handles POST /api/v1/tasks/:id/takeover.
func (h *TaskHandler) Takeover(c *gin.Context) {
	h.lifecycle(c, h.uc.Takeover)
}

// Resume handles POST /api/v1/tasks/:id/resume.
func (h *TaskHandler) Resume(c *gin.Context) {
	h.lifecycle(c, h.uc.Resume)
}

// Cancel handles POST /api/v1/tasks/:id/cancel.
func (h *TaskHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.uc.Cancel)
}

func (h *TaskHandler) lifecycle(c *gin.Context, op func(context.Context, string) error) {
	id := c.Param("id")
	if err := op(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": id, "ok": true})
}

func (h *TaskHandler) fail(c *gin.Context, err error) {
	if domainErrors.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Warn("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
}
