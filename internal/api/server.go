// Package api exposes the HTTP surface: session lifecycle endpoints, session
// log queries, the two WebSocket entry points, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/catalog"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/config"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/sessionlog"
	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

// SessionService is the lifecycle surface the API needs. Satisfied by the
// session manager.
type SessionService interface {
	Create(ctx context.Context, studentID, courseID string, lessonID *string) (*types.SessionRecord, error)
	Claim(ctx context.Context, sessionID, instructorID string) (*types.SessionRecord, error)
	Reject(ctx context.Context, sessionID, instructorID string) (*types.SessionRecord, error)
	End(ctx context.Context, sessionID, requesterID string, transcript json.RawMessage) (*types.SessionRecord, error)
	Get(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	ListForStudent(ctx context.Context, studentID string, status types.SessionStatus) ([]*types.SessionRecord, error)
	ListForInstructor(ctx context.Context, instructorID string, status types.SessionStatus) ([]*types.SessionRecord, error)
}

// LogService is the session history surface. Satisfied by the session log
// service.
type LogService interface {
	StudentHistory(ctx context.Context, studentID string) ([]*sessionlog.EnrichedEntry, error)
	InstructorHistory(ctx context.Context, instructorID string) ([]*sessionlog.EnrichedEntry, error)
	CourseHistory(ctx context.Context, courseID string) ([]*sessionlog.EnrichedEntry, error)
	Stats(ctx context.Context, userID string, role catalog.Role) (*sessionlog.Stats, error)
}

// RoomHandler and NotifyHandler are the WebSocket entry points.
type RoomHandler interface {
	ServeRoom(c *gin.Context)
}

type NotifyHandler interface {
	Serve(c *gin.Context)
}

// Server owns the gin engine and the underlying http.Server.
type Server struct {
	sessions SessionService
	logs     LogService
	catalog  catalog.Catalog
	log      *logrus.Entry
	srv      *http.Server
	engine   *gin.Engine
}

func NewServer(cfg config.HTTPConfig, env string, sessions SessionService, logs LogService, cat catalog.Catalog,
	rooms RoomHandler, notifications NotifyHandler, logger *logrus.Logger) *Server {

	if env == "prod" || env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		sessions: sessions,
		logs:     logs,
		catalog:  cat,
		log:      logger.WithField("component", "api"),
		engine:   engine,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}

	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoints authenticate inside their handlers so browser
	// clients can fall back to a query parameter.
	engine.GET("/ws/session/:room", rooms.ServeRoom)
	engine.GET("/ws/notifications", notifications.Serve)

	apiGroup := engine.Group("/api", s.requirePrincipal)
	{
		apiGroup.POST("/sessions", s.createSession)
		apiGroup.GET("/sessions", s.listSessions)
		apiGroup.GET("/sessions/:id", s.getSession)
		apiGroup.POST("/sessions/:id/accept", s.acceptSession)
		apiGroup.POST("/sessions/:id/reject", s.rejectSession)
		apiGroup.POST("/sessions/:id/end", s.endSession)

		apiGroup.GET("/logs/student/:id", s.studentLogs)
		apiGroup.GET("/logs/instructor/:id", s.instructorLogs)
		apiGroup.GET("/logs/course/:id", s.courseLogs)
		apiGroup.GET("/logs/stats", s.logStats)
	}

	return s
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start begins serving. Blocks until the listener stops.
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requirePrincipal extracts the caller identity from X-User-ID. Upstream
// authentication terminates at the gateway; this service trusts the header.
func (s *Server) requirePrincipal(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
		return
	}
	c.Set("userID", userID)
	c.Next()
}

func principal(c *gin.Context) string {
	return c.GetString("userID")
}
