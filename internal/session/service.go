// Package session owns session records and enforces the lifecycle state
// machine: new -> active -> completed, completed terminal, every transition
// gated on the creator.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classtrack/internal/metrics"
	"classtrack/internal/model"
	"classtrack/internal/roster"
	"classtrack/internal/store"
)

// Service is the session lifecycle manager.
type Service struct {
	store store.Store
	dir   roster.Directory
}

// NewService creates a lifecycle manager over the given store and
// collaborator directory.
func NewService(st store.Store, dir roster.Directory) *Service {
	return &Service{store: st, dir: dir}
}

// Input carries the caller-editable session fields.
type Input struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidTo       time.Time `json:"valid_to"`
	SubjectCode   string    `json:"subject_code"`
	BatchID       string    `json:"batch_id"`
	ClassConfigID string    `json:"class_config_id"`
}

func (in Input) validate() error {
	switch {
	case in.Title == "":
		return fmt.Errorf("%w: title required", ErrValidation)
	case in.Description == "":
		return fmt.Errorf("%w: description required", ErrValidation)
	case in.SubjectCode == "":
		return fmt.Errorf("%w: subject code required", ErrValidation)
	case in.BatchID == "":
		return fmt.Errorf("%w: batch id required", ErrValidation)
	case in.ClassConfigID == "":
		return fmt.Errorf("%w: class config id required", ErrValidation)
	case in.ValidFrom.IsZero() || in.ValidTo.IsZero():
		return fmt.Errorf("%w: validity window required", ErrValidation)
	}
	if !in.ValidFrom.Before(in.ValidTo) {
		return ErrInvalidTimeRange
	}
	return nil
}

// resolveRefs checks that every external reference exists and returns the
// batch roster.
func (s *Service) resolveRefs(ctx context.Context, in Input) ([]string, error) {
	if _, err := s.dir.GetSubject(ctx, in.SubjectCode); err != nil {
		return nil, err
	}
	if _, err := s.dir.GetLocation(ctx, in.ClassConfigID); err != nil {
		return nil, err
	}
	return s.dir.GetRoster(ctx, in.BatchID)
}

// Create persists a new session with status new and materializes an absent
// attendance record for every roster member, atomically.
func (s *Service) Create(ctx context.Context, caller model.Identity, in Input) (*model.Session, error) {
	if caller.Role != model.RoleProfessor {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	studentIDs, err := s.resolveRefs(ctx, in)
	if err != nil {
		return nil, err
	}

	sess := &model.Session{
		Title:         in.Title,
		Description:   in.Description,
		ValidFrom:     in.ValidFrom,
		ValidTo:       in.ValidTo,
		Status:        model.StatusNew,
		SubjectCode:   in.SubjectCode,
		BatchID:       in.BatchID,
		ClassConfigID: in.ClassConfigID,
		CreatorID:     caller.Subject,
	}
	if err := s.store.CreateSession(ctx, sess, studentIDs); err != nil {
		return nil, err
	}
	metrics.SessionsCreated.Inc()
	return sess, nil
}

// Get returns a session visible to the caller: its creator, or a student on
// its roster.
func (s *Service) Get(ctx context.Context, caller model.Identity, sessionID string) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CreatorID == caller.Subject {
		return sess, nil
	}
	if caller.Role == model.RoleStudent {
		if _, err := s.store.GetRecord(ctx, sessionID, caller.Subject); err == nil {
			return sess, nil
		}
	}
	return nil, ErrForbidden
}

// List returns the caller's sessions: created ones for a professor, roster
// memberships for a student. status "" means all statuses.
func (s *Service) List(ctx context.Context, caller model.Identity, status model.SessionStatus) ([]model.Session, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if caller.Role == model.RoleProfessor {
		return s.store.ListSessionsByCreator(ctx, caller.Subject, status)
	}
	return s.store.ListSessionsByStudent(ctx, caller.Subject, status)
}

// Transition moves the session along the lifecycle. Only new->active and
// active->completed are legal, and the stored status is compare-and-swapped
// so a concurrent transition fails instead of silently overwriting.
func (s *Service) Transition(ctx context.Context, caller model.Identity, sessionID string, target model.SessionStatus) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CreatorID != caller.Subject {
		return nil, ErrForbidden
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, target)
	}
	if !sess.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, sess.Status, target)
	}
	if err := s.store.TransitionSession(ctx, sessionID, sess.Status, target); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrIllegalTransition)
		}
		return nil, err
	}
	sess.Status = target
	return sess, nil
}

// Update rewrites the editable fields of a new or active session. A batch
// change re-resolves the roster: newly added students get absent records,
// records of removed students are retained for audit.
func (s *Service) Update(ctx context.Context, caller model.Identity, sessionID string, in Input) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CreatorID != caller.Subject {
		return nil, ErrForbidden
	}
	if sess.Status == model.StatusCompleted {
		return nil, fmt.Errorf("%w: completed session is read-only", ErrValidation)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	studentIDs, err := s.resolveRefs(ctx, in)
	if err != nil {
		return nil, err
	}

	batchChanged := in.BatchID != sess.BatchID
	sess.Title = in.Title
	sess.Description = in.Description
	sess.ValidFrom = in.ValidFrom
	sess.ValidTo = in.ValidTo
	sess.SubjectCode = in.SubjectCode
	sess.BatchID = in.BatchID
	sess.ClassConfigID = in.ClassConfigID

	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}
	if batchChanged {
		if err := s.store.AddRosterMembers(ctx, sessionID, studentIDs); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Delete removes the session and its attendance records regardless of
// status. The UI asks for a stronger confirmation on active sessions; the
// engine itself only checks the creator.
func (s *Service) Delete(ctx context.Context, caller model.Identity, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.CreatorID != caller.Subject {
		return ErrForbidden
	}
	return s.store.DeleteSession(ctx, sessionID)
}
