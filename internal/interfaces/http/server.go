// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/pr-workflow/internal/container"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthChecker reports component health
type HealthChecker interface {
	Health(ctx context.Context) *container.HealthStatus
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	sessions   *SessionManager
	logger     Logger
}

// NewServer creates a new HTTP server over the application services
func NewServer(
	config ServerConfig,
	services *container.ServiceBundle,
	sessions SessionConfig,
	health HealthChecker,
	logger Logger,
) *Server {
	router := gin.New()

	sm := NewSessionManager(sessions, services.Users)
	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(services, sm, health, logger),
		sessions: sm,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)
	s.router.POST("/login", h.Login)
	s.router.POST("/logout", h.Logout)

	auth := s.router.Group("/", s.sessions.RequireAuth())
	{
		auth.GET("/me", h.Me)

		auth.GET("/pr", h.ListRequisitions)
		auth.POST("/pr/new", h.CreateRequisition)
		auth.GET("/pr/:id", h.GetRequisition)
		auth.GET("/pr/:id/audit", h.RequisitionAudit)
		auth.POST("/pr/:id/submit", h.SubmitRequisition)
		auth.POST("/pr/:id/quotation", h.UploadQuotation)
		auth.POST("/pr/:id/budget-exception", h.DecideBudgetException)

		auth.GET("/approve", h.ListPendingApprovals)
		auth.POST("/approve/:id/:action", h.ActOnRequisition)

		auth.GET("/procurement", h.ListApproved)
		auth.POST("/procurement/receive/:pr_id", h.ReceiveRequisition)
		auth.POST("/procurement/po/new/:pr_id", h.CreatePurchaseOrder)
		auth.GET("/procurement/po/:id", h.GetPurchaseOrder)
		auth.GET("/procurement/po/:id/export", h.ExportPurchaseOrder)

		auth.GET("/budgets", h.ListBudgets)
		auth.POST("/budgets", h.AllocateBudget)

		auth.GET("/vendors", h.ListVendors)
		auth.GET("/vendors/search", h.SearchVendors)
		auth.GET("/vendors/:code", h.GetVendor)
		auth.POST("/vendors", h.CreateVendor)
		auth.POST("/vendors/:code/active", h.SetVendorActive)

		auth.GET("/notifications", h.ListNotifications)
		auth.POST("/notifications/mark-read/:id", h.MarkNotificationRead)
		auth.POST("/notifications/mark-all-read", h.MarkAllNotificationsRead)

		auth.GET("/admin/users", h.ListUsers)
		auth.POST("/admin/users", h.CreateUser)
		auth.POST("/admin/users/:id/active", h.SetUserActive)
		auth.POST("/admin/users/:id/password", h.ResetUserPassword)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
