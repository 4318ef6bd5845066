// internal/infra/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reminder_service/internal/app"
	"reminder_service/internal/infra/auth"
	"reminder_service/internal/infra/metrics"
)

const (
	RequestIDHeader     = "X-Request-ID"
	contextKeyRequestID = "requestId"
)

// SessionManager owns the scheduler sessions of logged-in users.
type SessionManager interface {
	StartSession(userID, token string)
	EndSession(userID string) bool
}

// Server is the HTTP surface of the reminder service.
type Server struct {
	router        *gin.Engine
	httpServer    *http.Server
	gate          *auth.Gate
	notifications app.NotificationService
	prefs         app.PreferenceService
	sessions      SessionManager
	log           *logrus.Entry
}

func NewServer(
	addr string,
	allowedOrigins []string,
	gate *auth.Gate,
	notifications app.NotificationService,
	prefs app.PreferenceService,
	sessions SessionManager,
	log *logrus.Entry,
) *Server {
	router := gin.New()

	s := &Server{
		router:        router,
		gate:          gate,
		notifications: notifications,
		prefs:         prefs,
		sessions:      sessions,
		log:           log.WithField("component", "http"),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Use(gin.Recovery(), requestID(), s.requestLogger(), cors.New(corsConfig(allowedOrigins)))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		api.POST("/notify/:trigger", gate.UserOrSecret(), s.handleNotify)
		api.GET("/notifications/preferences", gate.User(), s.handleGetPreferences)
		api.PUT("/notifications/preferences", gate.User(), s.handlePutPreferences)
		api.POST("/sessions", gate.User(), s.handleStartSession)
		api.DELETE("/sessions", gate.User(), s.handleEndSession)
	}

	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", auth.SecretHeader, RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKeyRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := s.log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString(contextKeyRequestID),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("HTTP request failed")
		case c.FullPath() == "/healthz" || c.FullPath() == "/metrics":
			entry.Debug("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}
