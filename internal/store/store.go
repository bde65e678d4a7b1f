package store

import (
	"context"
	"errors"
	"time"

	"classtrack/internal/model"
)

// Storage error values shared by all backends.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoRecord        = errors.New("no attendance record for student")
	ErrAlreadyPresent  = errors.New("student already marked present")
	ErrStatusConflict  = errors.New("session status changed concurrently")
)

// AuditEvent is an append-only trail entry for a successful mark.
type AuditEvent struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	StudentID      string    `json:"student_id"`
	MarkedBy       string    `json:"marked_by"`
	DistanceMeters *float64  `json:"distance_meters,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Store is the persistence boundary of the engine. The composite key
// (session_id, student_id) on attendance records is the concurrency
// boundary: MarkPresent must convert a race into one success and one
// ErrAlreadyPresent, and TransitionSession must compare-and-swap on the
// current status.
type Store interface {
	// CreateSession persists the session and one absent attendance record
	// per roster member, atomically.
	CreateSession(ctx context.Context, s *model.Session, roster []string) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	// ListSessionsByCreator returns sessions created by the professor,
	// optionally filtered by status ("" means all), newest first.
	ListSessionsByCreator(ctx context.Context, creatorID string, status model.SessionStatus) ([]model.Session, error)
	// ListSessionsByStudent returns sessions whose roster includes the
	// student, optionally filtered by status, newest first.
	ListSessionsByStudent(ctx context.Context, studentID string, status model.SessionStatus) ([]model.Session, error)
	// UpdateSession rewrites the mutable session fields. Status is not
	// touched here; use TransitionSession.
	UpdateSession(ctx context.Context, s *model.Session) error
	// TransitionSession moves the session from one status to another only
	// if the stored status still equals from (ErrStatusConflict otherwise).
	TransitionSession(ctx context.Context, id string, from, to model.SessionStatus) error
	// DeleteSession removes the session and all its attendance records.
	DeleteSession(ctx context.Context, id string) error

	// AddRosterMembers materializes absent records for the given students,
	// ignoring ids that already hold a record.
	AddRosterMembers(ctx context.Context, sessionID string, studentIDs []string) error
	// MarkPresent flips an absent record to present. ErrNoRecord if the
	// student is not on the roster, ErrAlreadyPresent if already present.
	MarkPresent(ctx context.Context, sessionID, studentID string, by model.MarkedBy, at time.Time) error
	GetRecord(ctx context.Context, sessionID, studentID string) (*model.AttendanceRecord, error)
	// ListRoster returns all records for the session ordered by student id.
	ListRoster(ctx context.Context, sessionID string) ([]model.AttendanceRecord, error)

	AppendAudit(ctx context.Context, evt AuditEvent) error
}
