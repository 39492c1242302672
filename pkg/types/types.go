package types

import (
	"time"
)

// Room channel message type tags. The relay forwards payloads carrying these
// tags verbatim and drops everything else.
const (
	MessageTypeOffer            = "offer"
	MessageTypeAnswer           = "answer"
	MessageTypeICECandidate     = "ice_candidate"
	MessageTypeChatMessage      = "chat_message"
	MessageTypeSessionRequest   = "session_request"
	MessageTypeSessionAccept    = "session_accept"
	MessageTypeSessionEnd       = "session_end"
	MessageTypeWhiteboardDraw   = "whiteboard_draw"
	MessageTypeWhiteboardClear  = "whiteboard_clear"
	MessageTypeScreenShareStart = "screen_share_start"
	MessageTypeScreenShareStop  = "screen_share_stop"
)

// Server-generated event types.
const (
	EventPresenceJoined      = "presence:joined"
	EventPresenceLeft        = "presence:left"
	EventSessionNotification = "session_notification"
)

// SessionStatus is the lifecycle state of a doubt session.
// Transitions are monotonic: pending -> {active -> completed} | rejected.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusRejected  SessionStatus = "rejected"
)

// SessionRecord is the authoritative, durable record of one doubt session.
// The room token is assigned at creation and never changes; the instructor
// is bound at most once and is immutable after binding.
type SessionRecord struct {
	ID              string        `json:"id" gorm:"primaryKey;size:50"`
	RoomToken       string        `json:"room_token" gorm:"uniqueIndex;size:120"`
	StudentID       string        `json:"student_id" gorm:"index;size:50"`
	InstructorID    *string       `json:"instructor_id,omitempty" gorm:"index;size:50"`
	CourseID        string        `json:"course_id" gorm:"index;size:50"`
	LessonID        *string       `json:"lesson_id,omitempty" gorm:"size:50"`
	Status          SessionStatus `json:"status" gorm:"index;size:20"`
	RequestedAt     time.Time     `json:"requested_at"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	DurationMinutes int           `json:"duration_minutes"`
}

func (SessionRecord) TableName() string { return "doubt_sessions" }

// Valid reports whether s is one of the known lifecycle states.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the record is in a final state.
func (r *SessionRecord) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusRejected
}

// BoundTo reports whether the given instructor is bound to this session.
func (r *SessionRecord) BoundTo(instructorID string) bool {
	return r.InstructorID != nil && *r.InstructorID == instructorID
}

// PresenceEvent announces a peer joining or leaving a room.
type PresenceEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// SessionNotification is the out-of-room event delivered to an instructor
// when a student requests a doubt session.
type SessionNotification struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	StudentName string `json:"student_name"`
	StudentID   string `json:"student_id"`
	CourseID    string `json:"course_id"`
	RoomName    string `json:"room_name"`
}
