package muser

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/authmw"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublic mounts the routes that need no token.
func (h *Handler) RegisterPublic(r gin.IRouter) {
	r.POST("/register", h.handleRegister)
	r.POST("/login", h.handleLogin)
}

// RegisterAdmin mounts the user management routes; r must already
// require authentication.
func (h *Handler) RegisterAdmin(r gin.IRouter) {
	r.GET("/users", h.handleListUsers)
	r.PUT("/users/:id", h.handleUpdateUser)
	r.DELETE("/users/:id", h.handleDeleteUser)
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	uid, err := h.svc.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user registered", "userId": uid})
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "login ok",
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"userId":    res.UserID,
		"user":      res.User,
	})
}

func (h *Handler) handleListUsers(c *gin.Context) {
	uid, ok := RequesterID(c)
	if !ok {
		return
	}

	users, err := h.svc.ListUsers(c.Request.Context(), uid)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *Handler) handleUpdateUser(c *gin.Context) {
	uid, ok := RequesterID(c)
	if !ok {
		return
	}

	var req UserUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	if err := h.svc.UpdateUser(c.Request.Context(), c.Param("id"), uid, req); err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user updated"})
}

func (h *Handler) handleDeleteUser(c *gin.Context) {
	uid, ok := RequesterID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteUser(c.Request.Context(), c.Param("id"), uid); err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// RequesterID returns the uid of the authenticated caller, answering 401
// itself when there is none.
func RequesterID(c *gin.Context) (string, bool) {
	claims, ok := authmw.ClaimsFrom(c)
	if !ok || claims.UID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return claims.UID, true
}

// RespondError writes err as {"error": msg} with the status of its kind.
// Internal errors are logged and answered with a generic message.
func RespondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		_ = c.Error(err)
	}
	c.JSON(kind.Status(), gin.H{"error": apperr.PublicMessage(err)})
}
