package sessionlog

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/catalog"
)

// EnrichedEntry is a log entry decorated with display names and the computed
// duration for dashboard and history views.
type EnrichedEntry struct {
	*Entry
	StudentName     string `json:"student_name"`
	InstructorName  string `json:"instructor_name"`
	CourseName      string `json:"course_name"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Stats aggregates a user's session history.
type Stats struct {
	TotalSessions int `json:"total_sessions"`
	TotalMinutes  int `json:"total_minutes"`
}

// Service wraps the store with read-time enrichment against the catalog.
// Entries whose referenced users or courses no longer resolve are skipped
// rather than failing the whole query.
type Service struct {
	store   *Store
	catalog catalog.Catalog
	log     *logrus.Entry
}

func NewService(store *Store, cat catalog.Catalog, logger *logrus.Logger) *Service {
	return &Service{
		store:   store,
		catalog: cat,
		log:     logger.WithField("component", "sessionlog"),
	}
}

func (s *Service) StudentHistory(ctx context.Context, studentID string) ([]*EnrichedEntry, error) {
	entries, err := s.store.ByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, entries), nil
}

func (s *Service) InstructorHistory(ctx context.Context, instructorID string) ([]*EnrichedEntry, error) {
	entries, err := s.store.ByInstructor(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, entries), nil
}

func (s *Service) CourseHistory(ctx context.Context, courseID string) ([]*EnrichedEntry, error) {
	entries, err := s.store.ByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, entries), nil
}

// Stats computes session count and total minutes for a user. Duration only
// counts entries that have both start and end times.
func (s *Service) Stats(ctx context.Context, userID string, role catalog.Role) (*Stats, error) {
	var entries []*Entry
	var err error
	if role == catalog.RoleInstructor {
		entries, err = s.store.ByInstructor(ctx, userID)
	} else {
		entries, err = s.store.ByStudent(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalSessions: len(entries)}
	for _, e := range entries {
		stats.TotalMinutes += durationMinutes(e)
	}
	return stats, nil
}

func (s *Service) enrich(ctx context.Context, entries []*Entry) []*EnrichedEntry {
	enriched := make([]*EnrichedEntry, 0, len(entries))
	for _, e := range entries {
		studentName, err := s.catalog.UserName(ctx, e.StudentID)
		if err != nil {
			s.log.WithField("log_id", e.ID).WithError(err).Debug("skipping entry with unresolved student")
			continue
		}
		instructorName, err := s.catalog.UserName(ctx, e.InstructorID)
		if err != nil {
			s.log.WithField("log_id", e.ID).WithError(err).Debug("skipping entry with unresolved instructor")
			continue
		}
		courseName, err := s.catalog.CourseTitle(ctx, e.CourseID)
		if err != nil {
			s.log.WithField("log_id", e.ID).WithError(err).Debug("skipping entry with unresolved course")
			continue
		}
		enriched = append(enriched, &EnrichedEntry{
			Entry:           e,
			StudentName:     studentName,
			InstructorName:  instructorName,
			CourseName:      courseName,
			DurationMinutes: durationMinutes(e),
		})
	}
	return enriched
}

func durationMinutes(e *Entry) int {
	if e.EndTime == nil {
		return 0
	}
	return int(e.EndTime.Sub(e.StartTime) / time.Minute)
}
