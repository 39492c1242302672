// Package sessionlog keeps the durable, append-oriented record of session
// timing and chat transcripts. It lives in its own SQLite database so that
// history and analytics queries never contend with lifecycle-critical
// operations, and it is never consulted for authorization.
package sessionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

// Entry is one session log record.
type Entry struct {
	ID           string          `json:"id"`
	StudentID    string          `json:"student_id"`
	InstructorID string          `json:"instructor_id"`
	CourseID     string          `json:"course_id"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	Transcript   json.RawMessage `json:"chat_transcript"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Store is the SQLite-backed log store. Writes funnel through a single
// goroutine; reads run concurrently against the same pool.
type Store struct {
	db      *sql.DB
	log     *logrus.Entry
	writeCh chan writeOp
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

const schema = `
CREATE TABLE IF NOT EXISTS session_logs (
	id            TEXT PRIMARY KEY,
	student_id    TEXT NOT NULL,
	instructor_id TEXT NOT NULL,
	course_id     TEXT NOT NULL,
	start_time    DATETIME NOT NULL,
	end_time      DATETIME,
	transcript    TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_logs_student ON session_logs(student_id, created_at);
CREATE INDEX IF NOT EXISTS idx_session_logs_instructor ON session_logs(instructor_id, created_at);
CREATE INDEX IF NOT EXISTS idx_session_logs_course ON session_logs(course_id, created_at);
`

// OpenStore opens (and if necessary creates) the log database.
func OpenStore(path string, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open session log store: %w", err)
	}
	db.SetMaxOpenConns(10)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session log schema: %w", err)
	}

	s := &Store{
		db:      db,
		log:     logger.WithField("component", "sessionlog"),
		writeCh: make(chan writeOp, 100),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// writeLoop serializes writes. A failed write is retried once after a short
// delay; the session itself is never failed over a log write.
func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeCh:
			err := op.fn(s.db)
			if err != nil {
				s.log.WithError(err).Warn("log write failed, retrying")
				time.Sleep(time.Second)
				err = op.fn(s.db)
				if err != nil {
					s.log.WithError(err).Error("log write failed after retry")
				}
			}
			op.result <- err
		case <-s.done:
			// Fail any ops that were enqueued but never picked up so
			// their callers do not block on the result channel.
			for {
				select {
				case op := <-s.writeCh:
					op.result <- types.ErrStoreUnavailable
				default:
					return
				}
			}
		}
	}
}

func (s *Store) executeWrite(fn func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return types.ErrStoreUnavailable
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOp{fn: fn, result: result}:
	case <-s.done:
		return types.ErrStoreUnavailable
	case <-time.After(30 * time.Second):
		return fmt.Errorf("%w: write queue timeout", types.ErrStoreUnavailable)
	}

	select {
	case err := <-result:
		return err
	case <-s.done:
		// Shutdown raced the enqueue; the drain in writeLoop may have
		// already answered, so give that reply precedence.
		select {
		case err := <-result:
			return err
		default:
			return types.ErrStoreUnavailable
		}
	}
}

// Open creates a new log entry and returns its id.
func (s *Store) Open(ctx context.Context, studentID, instructorID, courseID string, start time.Time) (string, error) {
	id := uuid.New().String()
	err := s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO session_logs (id, student_id, instructor_id, course_id, start_time, transcript, created_at)
			VALUES (?, ?, ?, ?, ?, '[]', ?)`,
			id, studentID, instructorID, courseID, start.UTC(), time.Now().UTC(),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("open session log: %w", err)
	}
	return id, nil
}

// Close writes the end time and final transcript. It is a last-write-wins
// overwrite, so repeating it on an already-closed entry just updates values.
func (s *Store) Close(ctx context.Context, id string, end time.Time, transcript json.RawMessage) error {
	if len(transcript) == 0 {
		transcript = json.RawMessage("[]")
	}
	err := s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE session_logs SET end_time = ?, transcript = ? WHERE id = ?`,
			end.UTC(), string(transcript), id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("close session log %s: %w", id, err)
	}
	return nil
}

// ByStudent returns a student's log entries, newest first.
func (s *Store) ByStudent(ctx context.Context, studentID string) ([]*Entry, error) {
	return s.query(ctx, "student_id", studentID)
}

// ByInstructor returns an instructor's log entries, newest first.
func (s *Store) ByInstructor(ctx context.Context, instructorID string) ([]*Entry, error) {
	return s.query(ctx, "instructor_id", instructorID)
}

// ByCourse returns a course's log entries, newest first.
func (s *Store) ByCourse(ctx context.Context, courseID string) ([]*Entry, error) {
	return s.query(ctx, "course_id", courseID)
}

func (s *Store) query(ctx context.Context, column, value string) ([]*Entry, error) {
	// column is one of the three indexed keys, never user input.
	q := fmt.Sprintf(`
		SELECT id, student_id, instructor_id, course_id, start_time, end_time, transcript, created_at
		FROM session_logs WHERE %s = ? ORDER BY created_at DESC`, column)

	rows, err := s.db.QueryContext(ctx, q, value)
	if err != nil {
		return nil, fmt.Errorf("query session logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var endTime sql.NullTime
		var transcript string
		if err := rows.Scan(&e.ID, &e.StudentID, &e.InstructorID, &e.CourseID,
			&e.StartTime, &endTime, &transcript, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session log row: %w", err)
		}
		if endTime.Valid {
			t := endTime.Time
			e.EndTime = &t
		}
		e.Transcript = json.RawMessage(transcript)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session log rows: %w", err)
	}
	return entries, nil
}

// Shutdown stops the write loop and closes the database.
func (s *Store) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}
