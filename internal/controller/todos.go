package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"todo-lifecycle/internal/models"
	"todo-lifecycle/internal/service"
	"todo-lifecycle/internal/status"
	"todo-lifecycle/pkg/logger"
)

// TodoService is what the handlers need from the service layer.
type TodoService interface {
	Create(ctx context.Context, description string, dueAt time.Time) (models.Todo, error)
	GetByID(ctx context.Context, id int64) (models.Todo, error)
	List(ctx context.Context, includeAll bool) ([]models.Todo, error)
	UpdateDescription(ctx context.Context, id int64, description string) (models.Todo, error)
	UpdateStatus(ctx context.Context, id int64, to models.Status) (models.Todo, error)
	MarkDone(ctx context.Context, id int64) (models.Todo, error)
	MarkNotDone(ctx context.Context, id int64) (models.Todo, error)
	Ping(ctx context.Context) error
}

// CommandPublisher queues commands for the worker.
type CommandPublisher interface {
	Enabled() bool
	PublishTodoCommand(ctx context.Context, cmd *models.TodoCommand) error
}

type TodoController struct {
	svc TodoService
	pub CommandPublisher
}

// NewTodoController builds the handlers. pub may be nil, which disables the
// commands endpoint.
func NewTodoController(svc TodoService, pub CommandPublisher) *TodoController {
	return &TodoController{svc: svc, pub: pub}
}

// Health returns 200 if the process is alive. Used by load balancers.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Ready returns 200 if the store is reachable. Used by K8s readiness probes.
func (h *TodoController) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ping(ctx); err != nil {
		logger.Warn(ctx, "Readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
		return
	}
	c.String(http.StatusOK, "OK")
}

func (h *TodoController) Create(c *gin.Context) {
	var body createTodoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	todo, err := h.svc.Create(c.Request.Context(), body.Description, body.DueDatetime.Time)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(todo))
}

func (h *TodoController) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	todo, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(todo))
}

// List returns not-done todos, or every todo with ?all=true.
func (h *TodoController) List(c *gin.Context) {
	all, err := strconv.ParseBool(c.DefaultQuery("all", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter all must be true or false"})
		return
	}
	todos, err := h.svc.List(c.Request.Context(), all)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponses(todos))
}

func (h *TodoController) UpdateDescription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body updateDescriptionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	h.respond(c)(h.svc.UpdateDescription(c.Request.Context(), id, body.Description))
}

func (h *TodoController) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body updateStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	h.respond(c)(h.svc.UpdateStatus(c.Request.Context(), id, models.Status(body.Status)))
}

func (h *TodoController) MarkDone(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.respond(c)(h.svc.MarkDone(c.Request.Context(), id))
}

func (h *TodoController) MarkNotDone(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.respond(c)(h.svc.MarkNotDone(c.Request.Context(), id))
}

// SubmitCommand queues a command for the worker and returns 202 Accepted.
// The command is checked for shape here; whether it applies is decided when
// the worker runs it.
func (h *TodoController) SubmitCommand(c *gin.Context) {
	ctx := c.Request.Context()
	if h.pub == nil || !h.pub.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Command queue unavailable"})
		return
	}
	var body commandRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	cmd, err := buildCommand(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd.RequestID = c.GetString("request_id")
	cmd.RequestedAt = time.Now().UTC()
	if err := h.pub.PublishTodoCommand(ctx, cmd); err != nil {
		logger.Error(ctx, "SubmitCommand publish failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request queued failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": cmd.ID, "action": cmd.Action, "message": "Command queued"})
}

func buildCommand(body commandRequest) (*models.TodoCommand, error) {
	cmd := &models.TodoCommand{
		Action:      body.Action,
		ID:          body.ID,
		Description: body.Description,
		Status:      body.Status,
	}
	switch body.Action {
	case models.ActionCreate:
		if body.Description == "" || body.DueDatetime == nil {
			return nil, errors.New("create needs description and due_datetime")
		}
		due := body.DueDatetime.Time
		cmd.DueAt = &due
		cmd.ID = 0
	case models.ActionUpdateDescription:
		if body.ID <= 0 || body.Description == "" {
			return nil, errors.New("update_description needs id and description")
		}
	case models.ActionUpdateStatus:
		if body.ID <= 0 {
			return nil, errors.New("update_status needs id")
		}
		if _, err := status.Parse(body.Status); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unknown action " + strconv.Quote(body.Action))
	}
	return cmd, nil
}

func (h *TodoController) respond(c *gin.Context) func(models.Todo, error) {
	return func(todo models.Todo, err error) {
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResponse(todo))
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid todo id"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors onto status codes. Expected outcomes are
// logged at debug level only.
func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrImmutable):
		code = http.StatusConflict
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrInvalidInput):
		code = http.StatusBadRequest
	case isContextErr(err) && ctx.Err() != nil:
		return
	}
	if code != http.StatusInternalServerError {
		logger.Debug(ctx, "Request rejected", "status", code, "reason", err.Error())
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	logger.Error(ctx, "Request failed", "error", err, "path", c.FullPath())
	c.JSON(code, gin.H{"error": "Internal server error"})
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
