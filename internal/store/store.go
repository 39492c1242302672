// Package store persists session records in the relational database. All
// status transitions are compare-and-set UPDATEs so that concurrent claim or
// end calls on the same session resolve to exactly one winner without a
// process-wide lock.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

// Store is the GORM-backed session record store.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the doubt_sessions table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&types.SessionRecord{})
}

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	StudentID    string
	InstructorID string
	CourseIDs    []string
	Status       types.SessionStatus
}

// Create inserts a new session record. The room token has a unique index, so
// a generator collision surfaces as an error instead of silent reuse.
func (s *Store) Create(ctx context.Context, rec *types.SessionRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create session record: %w", err)
	}
	return nil
}

// Get returns the record for a session id.
func (s *Store) Get(ctx context.Context, id string) (*types.SessionRecord, error) {
	var rec types.SessionRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &rec, nil
}

// GetByRoomToken returns the record addressed by a relay room token.
func (s *Store) GetByRoomToken(ctx context.Context, token string) (*types.SessionRecord, error) {
	var rec types.SessionRecord
	if err := s.db.WithContext(ctx).First(&rec, "room_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", token, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get room %s: %w", token, err)
	}
	return &rec, nil
}

// ClaimInstructor atomically binds an instructor to a pending session and
// activates it. Returns false when the session was not pending anymore or a
// different instructor won the race.
func (s *Store) ClaimInstructor(ctx context.Context, id, instructorID string, startedAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&types.SessionRecord{}).
		Where("id = ? AND status = ? AND instructor_id IS NULL", id, types.StatusPending).
		Updates(map[string]interface{}{
			"instructor_id": instructorID,
			"status":        types.StatusActive,
			"started_at":    startedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim session %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Complete atomically finalizes a pending or active session. startedAt is
// written as well so that pending sessions abandoned before any instructor
// joined get started_at = requested_at.
func (s *Store) Complete(ctx context.Context, id string, startedAt, endedAt time.Time, minutes int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&types.SessionRecord{}).
		Where("id = ? AND status IN ?", id, []types.SessionStatus{types.StatusPending, types.StatusActive}).
		Updates(map[string]interface{}{
			"status":           types.StatusCompleted,
			"started_at":       startedAt,
			"ended_at":         endedAt,
			"duration_minutes": minutes,
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete session %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Reject atomically rejects a pending session.
func (s *Store) Reject(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&types.SessionRecord{}).
		Where("id = ? AND status = ?", id, types.StatusPending).
		Update("status", types.StatusRejected)
	if res.Error != nil {
		return false, fmt.Errorf("reject session %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// List returns records matching the filter, newest requests first.
func (s *Store) List(ctx context.Context, f Filter) ([]*types.SessionRecord, error) {
	q := s.db.WithContext(ctx).Model(&types.SessionRecord{})
	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.InstructorID != "" {
		q = q.Where("instructor_id = ?", f.InstructorID)
	}
	if f.CourseIDs != nil {
		q = q.Where("course_id IN ?", f.CourseIDs)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var recs []*types.SessionRecord
	if err := q.Order("requested_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return recs, nil
}
