package mgroup

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

// Register mounts the group routes; r must already require authentication.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/groups", h.handleListGroups)
	r.POST("/groups", h.handleCreateGroup)
	r.DELETE("/groups/:groupId", h.handleDeleteGroup)

	r.GET("/groups/:groupId/users", h.handleListMembers)
	r.POST("/groups/:groupId/users", h.handleAddMember)
	r.DELETE("/groups/:groupId/users/:userId", h.handleRemoveMember)

	r.GET("/groups/:groupId/tasks", h.handleListGroupTasks)
	r.POST("/groups/:groupId/tasks", h.handleCreateGroupTask)
	r.PATCH("/groups/:groupId/tasks/:taskId", h.handleUpdateTaskStatus)
	r.PUT("/groups/:groupId/tasks/:taskId", h.handleUpdateTaskStatus)
	r.DELETE("/groups/:groupId/tasks/:taskId", h.handleDeleteGroupTask)
}

func (h *Handler) handleListGroups(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	groups, err := h.svc.ListGroups(c.Request.Context(), uid)
	if err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, groups)
}

func (h *Handler) handleCreateGroup(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	g, err := h.svc.CreateGroup(c.Request.Context(), uid, req)
	if err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "group created",
		"id":      g.ID,
		"name":    g.Name,
		"status":  g.Status,
		"members": g.Members,
	})
}

func (h *Handler) handleDeleteGroup(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteGroup(c.Request.Context(), c.Param("groupId"), uid); err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "group deleted"})
}

func (h *Handler) handleListMembers(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	members, err := h.svc.ListMembers(c.Request.Context(), c.Param("groupId"), uid)
	if err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, members)
}

func (h *Handler) handleAddMember(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	if err := h.svc.AddMember(c.Request.Context(), c.Param("groupId"), uid, req.UserID); err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member added"})
}

func (h *Handler) handleRemoveMember(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(c.Request.Context(), c.Param("groupId"), uid, c.Param("userId")); err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}

func (h *Handler) handleListGroupTasks(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	tasks, err := h.svc.ListGroupTasks(c.Request.Context(), c.Param("groupId"), uid)
	if err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) handleCreateGroupTask(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	var req CreateGroupTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	id, err := h.svc.CreateGroupTask(c.Request.Context(), c.Param("groupId"), uid, req)
	if err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "task assigned", "taskId": id})
}

func (h *Handler) handleUpdateTaskStatus(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	if err := h.svc.UpdateGroupTaskStatus(c.Request.Context(), c.Param("groupId"), c.Param("taskId"), uid, req); err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task status updated"})
}

func (h *Handler) handleDeleteGroupTask(c *gin.Context) {
	uid, ok := muser.RequesterID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteGroupTask(c.Request.Context(), c.Param("groupId"), c.Param("taskId"), uid); err != nil {
		muser.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}
