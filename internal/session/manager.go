// Package session owns the doubt-session state machine. All status
// transitions go through the Manager, which re-evaluates authorization on
// every call and resolves races through compare-and-set transitions in the
// record store.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/catalog"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/metrics"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/store"
	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

// Store persists session records. Claim, Complete and Reject are atomic
// compare-and-set transitions reporting whether this caller won.
type Store interface {
	Create(ctx context.Context, rec *types.SessionRecord) error
	Get(ctx context.Context, id string) (*types.SessionRecord, error)
	GetByRoomToken(ctx context.Context, token string) (*types.SessionRecord, error)
	ClaimInstructor(ctx context.Context, id, instructorID string, startedAt time.Time) (bool, error)
	Complete(ctx context.Context, id string, startedAt, endedAt time.Time, minutes int) (bool, error)
	Reject(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, f store.Filter) ([]*types.SessionRecord, error)
}

// LogStore is the slice of the session log store the manager needs.
type LogStore interface {
	Open(ctx context.Context, studentID, instructorID, courseID string, start time.Time) (string, error)
	Close(ctx context.Context, id string, end time.Time, transcript json.RawMessage) error
}

// Notifier delivers out-of-room events to a user, best effort.
type Notifier interface {
	Notify(userID string, event interface{})
}

// Manager implements the session lifecycle.
type Manager struct {
	store    Store
	catalog  catalog.Catalog
	logs     LogStore
	notifier Notifier
	log      *logrus.Entry

	mu       sync.Mutex
	openLogs map[string]string // session id -> open log entry id
	now      func() time.Time
}

func NewManager(st Store, cat catalog.Catalog, logs LogStore, notifier Notifier, logger *logrus.Logger) *Manager {
	return &Manager{
		store:    st,
		catalog:  cat,
		logs:     logs,
		notifier: notifier,
		log:      logger.WithField("component", "session"),
		openLogs: make(map[string]string),
		now:      time.Now,
	}
}

// Create registers a new pending session for a student and notifies the
// course's instructor-of-record.
func (m *Manager) Create(ctx context.Context, studentID, courseID string, lessonID *string) (*types.SessionRecord, error) {
	role, err := m.catalog.Role(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown requester", types.ErrInvalidRequest)
	}
	if role != catalog.RoleStudent {
		return nil, fmt.Errorf("%w: only students can request doubt sessions", types.ErrInvalidRequest)
	}

	ownerID, err := m.catalog.CourseOwner(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown course %s", types.ErrInvalidRequest, courseID)
	}

	rec := &types.SessionRecord{
		ID:          uuid.New().String(),
		RoomToken:   roomToken(studentID, ownerID),
		StudentID:   studentID,
		CourseID:    courseID,
		LessonID:    lessonID,
		Status:      types.StatusPending,
		RequestedAt: m.now().UTC(),
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	m.notifyInstructor(ctx, ownerID, rec)
	metrics.SessionsRequested.Inc()
	m.log.WithFields(logrus.Fields{
		"session": rec.ID,
		"student": studentID,
		"course":  courseID,
		"room":    rec.RoomToken,
	}).Info("session requested")
	return rec, nil
}

// Claim binds an instructor to a pending session and activates it. Claiming
// an already-active session bound to the same instructor is a no-op success;
// a different instructor gets ErrAlreadyClaimed.
func (m *Manager) Claim(ctx context.Context, sessionID, instructorID string) (*types.SessionRecord, error) {
	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch rec.Status {
	case types.StatusActive:
		if rec.BoundTo(instructorID) {
			return rec, nil
		}
		return nil, types.ErrAlreadyClaimed
	case types.StatusCompleted, types.StatusRejected:
		return nil, fmt.Errorf("%w: session is %s", types.ErrInvalidState, rec.Status)
	}

	owner, err := m.catalog.IsCourseOwner(ctx, instructorID, rec.CourseID)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, types.ErrUnauthorized
	}

	startedAt := m.now().UTC()
	won, err := m.store.ClaimInstructor(ctx, sessionID, instructorID, startedAt)
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race: report the outcome the winner produced.
		current, err := m.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if current.Status == types.StatusActive {
			if current.BoundTo(instructorID) {
				return current, nil
			}
			return nil, types.ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("%w: session is %s", types.ErrInvalidState, current.Status)
	}

	rec.InstructorID = &instructorID
	rec.Status = types.StatusActive
	rec.StartedAt = &startedAt

	m.openLog(ctx, rec)
	metrics.SessionsStarted.Inc()
	m.log.WithFields(logrus.Fields{
		"session":    rec.ID,
		"instructor": instructorID,
	}).Info("session claimed")
	return rec, nil
}

// Reject declines a pending session. Repeating it on an already-rejected
// session is an idempotent no-op; rejecting an active or completed session
// is an invalid transition.
func (m *Manager) Reject(ctx context.Context, sessionID, instructorID string) (*types.SessionRecord, error) {
	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch rec.Status {
	case types.StatusRejected:
		return rec, nil
	case types.StatusActive, types.StatusCompleted:
		return nil, fmt.Errorf("%w: session is %s", types.ErrInvalidState, rec.Status)
	}

	owner, err := m.catalog.IsCourseOwner(ctx, instructorID, rec.CourseID)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, types.ErrUnauthorized
	}

	won, err := m.store.Reject(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := m.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if current.Status == types.StatusRejected {
			return current, nil
		}
		return nil, fmt.Errorf("%w: session is %s", types.ErrInvalidState, current.Status)
	}

	rec.Status = types.StatusRejected
	metrics.SessionsRejected.Inc()
	m.log.WithField("session", rec.ID).Info("session rejected")
	return rec, nil
}

// End finalizes a session. Valid from pending (abandonment: duration counts
// from requested_at) and active. Repeated calls after completion return the
// already-completed record without recomputing anything.
func (m *Manager) End(ctx context.Context, sessionID, requesterID string, transcript json.RawMessage) (*types.SessionRecord, error) {
	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if rec.Status == types.StatusCompleted {
		return rec, nil
	}
	if rec.Status == types.StatusRejected {
		return nil, fmt.Errorf("%w: session is rejected", types.ErrInvalidState)
	}

	if err := m.authorizeEnd(ctx, rec, requesterID); err != nil {
		return nil, err
	}

	startedAt := rec.RequestedAt
	if rec.StartedAt != nil {
		startedAt = *rec.StartedAt
	}
	endedAt := m.now().UTC()
	minutes := int(endedAt.Sub(startedAt) / time.Minute)

	won, err := m.store.Complete(ctx, sessionID, startedAt, endedAt, minutes)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent end already finalized it; return that result.
		current, err := m.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if current.Status == types.StatusCompleted {
			return current, nil
		}
		return nil, fmt.Errorf("%w: session is %s", types.ErrInvalidState, current.Status)
	}

	rec.Status = types.StatusCompleted
	rec.StartedAt = &startedAt
	rec.EndedAt = &endedAt
	rec.DurationMinutes = minutes

	if rec.InstructorID != nil {
		m.closeLog(ctx, rec, endedAt, transcript)
	}
	metrics.SessionsCompleted.Inc()
	m.log.WithFields(logrus.Fields{
		"session":  rec.ID,
		"ended_by": requesterID,
		"minutes":  minutes,
	}).Info("session ended")
	return rec, nil
}

// Get returns a single record.
func (m *Manager) Get(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	return m.store.Get(ctx, sessionID)
}

// AuthorizeJoin decides whether a participant may enter a relay room and
// with which role. It never mutates lifecycle state; instructors activate a
// session through Claim, not by connecting.
func (m *Manager) AuthorizeJoin(ctx context.Context, roomToken, userID string) (*types.SessionRecord, catalog.Role, error) {
	rec, err := m.store.GetByRoomToken(ctx, roomToken)
	if err != nil {
		return nil, "", err
	}
	if userID == rec.StudentID {
		return rec, catalog.RoleStudent, nil
	}
	if rec.BoundTo(userID) {
		return rec, catalog.RoleInstructor, nil
	}
	if rec.InstructorID == nil {
		owner, err := m.catalog.IsCourseOwner(ctx, userID, rec.CourseID)
		if err != nil {
			return nil, "", err
		}
		if owner {
			return rec, catalog.RoleInstructor, nil
		}
	}
	return nil, "", types.ErrUnauthorized
}

// ListForStudent returns the student's sessions, optionally by status.
func (m *Manager) ListForStudent(ctx context.Context, studentID string, status types.SessionStatus) ([]*types.SessionRecord, error) {
	return m.store.List(ctx, store.Filter{StudentID: studentID, Status: status})
}

// ListForInstructor returns sessions on courses the instructor owns,
// optionally by status. This backs the instructor dashboard's pending queue.
func (m *Manager) ListForInstructor(ctx context.Context, instructorID string, status types.SessionStatus) ([]*types.SessionRecord, error) {
	courseIDs, err := m.catalog.OwnedCourses(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	if len(courseIDs) == 0 {
		return []*types.SessionRecord{}, nil
	}
	return m.store.List(ctx, store.Filter{CourseIDs: courseIDs, Status: status})
}

func (m *Manager) authorizeEnd(ctx context.Context, rec *types.SessionRecord, requesterID string) error {
	if requesterID == rec.StudentID || rec.BoundTo(requesterID) {
		return nil
	}
	if rec.InstructorID == nil {
		owner, err := m.catalog.IsCourseOwner(ctx, requesterID, rec.CourseID)
		if err != nil {
			return err
		}
		if owner {
			return nil
		}
	}
	return types.ErrUnauthorized
}

// openLog opens the session log entry. Failures degrade observability but
// never fail the lifecycle transition.
func (m *Manager) openLog(ctx context.Context, rec *types.SessionRecord) {
	logID, err := m.logs.Open(ctx, rec.StudentID, *rec.InstructorID, rec.CourseID, *rec.StartedAt)
	if err != nil {
		m.log.WithField("session", rec.ID).WithError(err).Warn("session log open failed")
		return
	}
	m.mu.Lock()
	m.openLogs[rec.ID] = logID
	m.mu.Unlock()
}

func (m *Manager) closeLog(ctx context.Context, rec *types.SessionRecord, endedAt time.Time, transcript json.RawMessage) {
	m.mu.Lock()
	logID, ok := m.openLogs[rec.ID]
	delete(m.openLogs, rec.ID)
	m.mu.Unlock()
	if !ok {
		m.log.WithField("session", rec.ID).Warn("no open log entry for session, skipping close")
		return
	}
	if err := m.logs.Close(ctx, logID, endedAt, transcript); err != nil {
		m.log.WithField("session", rec.ID).WithError(err).Warn("session log close failed")
	}
}

func (m *Manager) notifyInstructor(ctx context.Context, ownerID string, rec *types.SessionRecord) {
	studentName, err := m.catalog.UserName(ctx, rec.StudentID)
	if err != nil {
		studentName = rec.StudentID
	}
	m.notifier.Notify(ownerID, types.SessionNotification{
		Type:        types.EventSessionNotification,
		Message:     fmt.Sprintf("%s requested a doubt session", studentName),
		StudentName: studentName,
		StudentID:   rec.StudentID,
		CourseID:    rec.CourseID,
		RoomName:    rec.RoomToken,
	})
}

// roomToken builds the collision-resistant relay addressing key:
// doubt_<student>_<instructor>_<hex8>. Participant ids make collisions across
// users impossible; the random suffix separates repeat requests by the same
// pair.
func roomToken(studentID, instructorID string) string {
	return fmt.Sprintf("doubt_%s_%s_%s", studentID, instructorID, uuid.New().String()[:8])
}
