package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/astra-nvim/astra/internal/tasks"
	"github.com/gin-gonic/gin"
)

const DefaultCleanupAge = time.Hour

// TaskService is the part of the task manager the API exposes.
type TaskService interface {
	Submit(req tasks.Request) (string, error)
	Get(id string) (*tasks.Task, error)
	List() []*tasks.Task
	Cleanup(maxAge time.Duration) int
	Cancel(id string) error
}

type TaskHandler struct {
	svc TaskService
}

func NewTaskHandler(svc TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// Submit queues a task and answers right away with its id.
func (h *TaskHandler) Submit(c *gin.Context) {
	var env tasks.RequestEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	req, err := env.Request()
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	id, err := h.svc.Submit(req)
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}

	c.PureJSON(http.StatusAccepted, SubmitTaskResponse{ID: id, Status: tasks.TaskStatusPending})
}

func (h *TaskHandler) List(c *gin.Context) {
	c.PureJSON(http.StatusOK, ListTasksResponse{Tasks: h.svc.List()})
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.svc.Get(c.Param("id"))
	if err != nil {
		h.abortLookup(c, err)
		return
	}
	c.PureJSON(http.StatusOK, task)
}

// Cancel acknowledges the request. The task is not interrupted.
func (h *TaskHandler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Param("id")); err != nil {
		h.abortLookup(c, err)
		return
	}
	c.PureJSON(http.StatusAccepted, ControlPlaneResponse{
		Code:    CodeOk,
		Message: "cancellation is not supported, the task will run to completion",
	})
}

func (h *TaskHandler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
			return
		}
	}

	maxAge := DefaultCleanupAge
	if req.MaxAge != "" {
		d, err := time.ParseDuration(req.MaxAge)
		if err != nil || d < 0 {
			AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("invalid max_age %q", req.MaxAge))
			return
		}
		maxAge = d
	}

	c.PureJSON(http.StatusOK, CleanupResponse{Removed: h.svc.Cleanup(maxAge)})
}

func (h *TaskHandler) abortLookup(c *gin.Context, err error) {
	if errors.Is(err, tasks.ErrTaskNotFound) {
		AbortWithError(c, http.StatusNotFound, ErrCodeTaskNotFound, err)
		return
	}
	AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
}
