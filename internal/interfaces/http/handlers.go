package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/pr-workflow/internal/container"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services *container.ServiceBundle
	sessions *SessionManager
	health   HealthChecker
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services *container.ServiceBundle, sessions *SessionManager, health HealthChecker, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		sessions: sessions,
		health:   health,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                               `json:"status"`
	Timestamp  string                               `json:"timestamp"`
	Components map[string]container.ComponentHealth `json:"components,omitempty"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.health == nil {
		ok(c, resp)
		return
	}

	status := h.health.Health(c.Request.Context())
	resp.Components = status.Components
	if !status.Overall {
		resp.Status = "unhealthy"
		c.JSON(http.StatusInternalServerError, Response{Success: false, Data: resp, Error: "unhealthy"})
		return
	}
	ok(c, resp)
}

// Login handles POST /login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}

	user, err := h.services.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Info("Login rejected", "username", req.Username)
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "invalid username or password"})
		return
	}

	if err := h.sessions.Issue(c, user); err != nil {
		h.logger.Error("Failed to issue session", "error", err, "user_id", user.ID)
		fail(c, err)
		return
	}

	h.logger.Info("User signed in", "user_id", user.ID, "role", user.Role)
	ok(c, user)
}

// Logout handles POST /logout
func (h *Handlers) Logout(c *gin.Context) {
	h.sessions.Clear(c)
	ok(c, nil)
}

// Me handles GET /me
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.services.Users.Get(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user)
}

// ListNotifications handles GET /notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	var q struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	inbox, err := h.services.Notifications.List(c.Request.Context(), actorFrom(c), q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, inbox)
}

// MarkNotificationRead handles POST /notifications/mark-read/:id
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	if err := h.services.Notifications.MarkRead(c.Request.Context(), actorFrom(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// MarkAllNotificationsRead handles POST /notifications/mark-all-read
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.services.Notifications.MarkAllRead(c.Request.Context(), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"marked": n})
}
