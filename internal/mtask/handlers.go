package mtask

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/taskhub/internal/muser"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the task routes; r must already require authentication.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/tasks", h.handleListTasks)
	r.POST("/tasks", h.handleTaskCreate)
	r.PUT("/tasks/:taskId", h.handleTaskUpdate)
	r.DELETE("/tasks/:taskId", h.handleTaskDelete)
}

func (h *Handler) handleListTasks(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	tasks, err := h.svc.ListTasks(c.Request.Context(), uid)
	if err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) handleTaskCreate(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	id, err := h.svc.CreateTask(c.Request.Context(), uid, req)
	if err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "task created", "taskId": id})
}

func (h *Handler) handleTaskUpdate(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	if err := h.svc.UpdateTask(c.Request.Context(), c.Param("taskId"), uid, req); err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task updated"})
}

func (h *Handler) handleTaskDelete(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteTask(c.Request.Context(), c.Param("taskId"), uid); err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}
