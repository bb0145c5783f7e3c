package handlers

import (
	"net/http"
	"strconv"

	"ctp/consts"
	"ctp/internal/apierr"
	"ctp/internal/tasktracker"
	"ctp/internal/workflow"
	"ctp/middleware"

	"github.com/gin-gonic/gin"
)

type TaskHandlers struct {
	Tracker *tasktracker.Tracker
	Gateway workflow.Gateway
	DevMode bool
}

func NewTaskHandlers(tracker *tasktracker.Tracker, gateway workflow.Gateway, devMode bool) *TaskHandlers {
	return &TaskHandlers{Tracker: tracker, Gateway: gateway, DevMode: devMode}
}

type submitTaskRequest struct {
	TaskType   consts.TaskType `json:"task_type" binding:"required"`
	Parameters map[string]any  `json:"parameters"`
	Queue      string          `json:"queue"`
	CourseID   *int            `json:"course_id"`
	OrgID      *int            `json:"org_id"`
	Tags       []string        `json:"tags"`
}

// Submit enqueues a new task and tracks it for the submitting principal.
func (h *TaskHandlers) Submit(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}
	var req submitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, h.DevMode, apierr.Validation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	if _, ok := consts.ValidTaskTypes[req.TaskType]; !ok {
		RenderError(c, h.DevMode, apierr.Validation(apierr.FieldError{Field: "task_type", Message: "unknown task type"}))
		return
	}

	workflowID, err := h.Tracker.SubmitAndTrack(c.Request.Context(), req.TaskType, req.Parameters, req.Queue, p.UserID, req.CourseID, req.OrgID, req.Tags)
	if err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"workflow_id": workflowID})
}

func (h *TaskHandlers) accessible(c *gin.Context, workflowID string) bool {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return false
	}
	can, err := h.Tracker.CanAccess(c.Request.Context(), workflowID, p)
	if err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.NotFound, err))
		return false
	}
	if !can {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthzForbidden, nil))
		return false
	}
	return true
}

// Status returns the gateway's live status snapshot for one tracked task.
func (h *TaskHandlers) Status(c *gin.Context) {
	id := c.Param("id")
	if !h.accessible(c, id) {
		return
	}
	info, err := h.Gateway.GetStatus(c.Request.Context(), id)
	if err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.NotFound, err))
		return
	}
	c.JSON(http.StatusOK, info)
}

// Result returns the terminal output or error of a completed task.
func (h *TaskHandlers) Result(c *gin.Context) {
	id := c.Param("id")
	if !h.accessible(c, id) {
		return
	}
	result, err := h.Gateway.GetResult(c.Request.Context(), id)
	if err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.NotFound, err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// Cancel requests cancellation of a still-pending or running task.
func (h *TaskHandlers) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !h.accessible(c, id) {
		return
	}
	ok, err := h.Gateway.Cancel(c.Request.Context(), id)
	if err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
		return
	}
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.ConflictVersion, nil))
		return
	}
	c.Status(http.StatusNoContent)
}

// List returns the page of tasks visible to the calling principal.
func (h *TaskHandlers) List(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		RenderError(c, h.DevMode, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}
	limit, offset := pagingParams(c)
	entries, total, err := h.Tracker.ListAccessible(c.Request.Context(), p, limit, offset)
	if err != nil {
		RenderError(c, h.DevMode, apierr.New(apierr.ServerFault, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "total": total, "limit": limit, "offset": offset})
}

func pagingParams(c *gin.Context) (limit, offset int) {
	limit, offset = 20, 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
