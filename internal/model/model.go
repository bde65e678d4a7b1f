package model

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusNew       SessionStatus = "new"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Valid reports whether s is a known status value.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusNew, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the move from s to target is legal.
// Status is monotonic: new -> active -> completed, completed is terminal.
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	switch {
	case s == StatusNew && target == StatusActive:
		return true
	case s == StatusActive && target == StatusCompleted:
		return true
	}
	return false
}

// Session is a bounded-time attendance-taking event tied to a subject,
// batch and classroom location.
type Session struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	ValidFrom     time.Time     `json:"valid_from"`
	ValidTo       time.Time     `json:"valid_to"`
	Status        SessionStatus `json:"status"`
	SubjectCode   string        `json:"subject_code"`
	BatchID       string        `json:"batch_id"`
	ClassConfigID string        `json:"class_config_id"`
	CreatorID     string        `json:"creator_id"`
	CreatedAt     time.Time     `json:"created_at"`
}

// InWindow reports whether now falls inside the session validity window.
func (s *Session) InWindow(now time.Time) bool {
	return !now.Before(s.ValidFrom) && !now.After(s.ValidTo)
}

// MarkStatus is the attendance state of one roster member.
type MarkStatus string

const (
	MarkAbsent  MarkStatus = "absent"
	MarkPresent MarkStatus = "present"
)

// MarkedBy records which path set a student present.
type MarkedBy string

const (
	MarkedBySelf      MarkedBy = "self"
	MarkedByProfessor MarkedBy = "professor"
)

// AttendanceRecord is one roster member's attendance state for a session.
// Identity is the (SessionID, StudentID) pair; at most one record exists
// per pair. Every roster member gets an absent record when the session is
// created, so membership checks are record-existence checks.
type AttendanceRecord struct {
	SessionID string     `json:"session_id"`
	StudentID string     `json:"student_id"`
	Status    MarkStatus `json:"status"`
	MarkedAt  *time.Time `json:"marked_at,omitempty"`
	MarkedBy  MarkedBy   `json:"marked_by,omitempty"`
}

// Location is a labeled geographic point used for proximity gating.
type Location struct {
	Label     string  `json:"label"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Role of an authenticated caller.
type Role string

const (
	RoleProfessor Role = "professor"
	RoleStudent   Role = "student"
)

// Identity is the already-authenticated caller passed into every engine
// operation. Never derived from ambient state.
type Identity struct {
	Subject string
	Role    Role
}
