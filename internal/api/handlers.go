package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/catalog"
	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

type createSessionRequest struct {
	CourseID string  `json:"course_id" binding:"required"`
	LessonID *string `json:"lesson_id"`
}

type endSessionRequest struct {
	Transcript json.RawMessage `json:"chat_transcript"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "course_id is required"})
		return
	}
	rec, err := s.sessions.Create(c.Request.Context(), principal(c), req.CourseID, req.LessonID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) getSession(c *gin.Context) {
	rec, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// listSessions returns the caller's sessions: a student sees their own
// requests, an instructor sees sessions across owned courses. An optional
// status query narrows the result, which is how the dashboard fetches its
// pending queue.
func (s *Server) listSessions(c *gin.Context) {
	userID := principal(c)
	status := types.SessionStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	role, err := s.catalog.Role(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	var recs []*types.SessionRecord
	if role == catalog.RoleInstructor {
		recs, err = s.sessions.ListForInstructor(c.Request.Context(), userID, status)
	} else {
		recs, err = s.sessions.ListForStudent(c.Request.Context(), userID, status)
	}
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": recs})
}

func (s *Server) acceptSession(c *gin.Context) {
	rec, err := s.sessions.Claim(c.Request.Context(), c.Param("id"), principal(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) rejectSession(c *gin.Context) {
	rec, err := s.sessions.Reject(c.Request.Context(), c.Param("id"), principal(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) endSession(c *gin.Context) {
	var req endSessionRequest
	// Body is optional; an empty end request just finalizes without a
	// transcript.
	_ = c.ShouldBindJSON(&req)

	rec, err := s.sessions.End(c.Request.Context(), c.Param("id"), principal(c), req.Transcript)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) studentLogs(c *gin.Context) {
	entries, err := s.logs.StudentHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

func (s *Server) instructorLogs(c *gin.Context) {
	entries, err := s.logs.InstructorHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

func (s *Server) courseLogs(c *gin.Context) {
	entries, err := s.logs.CourseHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

func (s *Server) logStats(c *gin.Context) {
	userID := principal(c)
	role, err := s.catalog.Role(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	stats, err := s.logs.Stats(c.Request.Context(), userID, role)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// renderError maps the error taxonomy onto HTTP statuses.
func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrAlreadyClaimed), errors.Is(err, types.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.log.WithError(err).Error("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
