// Package attendance is the per-session attendance ledger. It owns the two
// marking paths: professor-driven bulk marks and geolocation-gated student
// self-marks. A present record is never unmarked.
package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"classtrack/internal/geo"
	"classtrack/internal/metrics"
	"classtrack/internal/model"
	"classtrack/internal/queue"
	"classtrack/internal/roster"
	"classtrack/internal/store"
)

// MarkEvent is published on the queue after every successful mark; the
// worker turns these into audit rows.
type MarkEvent struct {
	SessionID      string    `json:"session_id"`
	StudentID      string    `json:"student_id"`
	MarkedBy       string    `json:"marked_by"`
	DistanceMeters *float64  `json:"distance_meters,omitempty"`
	MarkedAt       time.Time `json:"marked_at"`
}

// MarkEventType tags queue messages carrying a MarkEvent.
const MarkEventType = "attendance.marked"

// SelfMarkResult is returned to a student after a successful self-mark.
type SelfMarkResult struct {
	DistanceMeters float64   `json:"distance_meters"`
	MarkedAt       time.Time `json:"marked_at"`
}

// Service coordinates attendance marking over the store, the live
// classroom-location resolver and the geofence check.
type Service struct {
	store     store.Store
	locations roster.LocationResolver
	events    queue.Queue
	radius    float64
	now       func() time.Time
}

// NewService creates a ledger. events may be nil when no worker is
// attached; radiusMeters <= 0 falls back to the default geofence.
func NewService(st store.Store, locations roster.LocationResolver, events queue.Queue, radiusMeters float64) *Service {
	if radiusMeters <= 0 {
		radiusMeters = geo.DefaultRadiusMeters
	}
	return &Service{
		store:     st,
		locations: locations,
		events:    events,
		radius:    radiusMeters,
		now:       time.Now,
	}
}

// MarkBulk sets every still-absent roster member in studentIDs to present
// on behalf of the session creator. Ids not on the roster and students
// already present are skipped; the returned count is newly marked students
// only.
func (s *Service) MarkBulk(ctx context.Context, caller model.Identity, sessionID string, studentIDs []string) (int, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if sess.CreatorID != caller.Subject {
		return 0, ErrForbidden
	}
	if sess.Status != model.StatusActive {
		metrics.MarkRejections.WithLabelValues("session_not_active").Inc()
		return 0, ErrSessionNotActive
	}

	marked := 0
	now := s.now().UTC()
	for _, studentID := range studentIDs {
		err := s.store.MarkPresent(ctx, sessionID, studentID, model.MarkedByProfessor, now)
		switch {
		case err == nil:
			marked++
			s.publish(ctx, MarkEvent{
				SessionID: sessionID,
				StudentID: studentID,
				MarkedBy:  string(model.MarkedByProfessor),
				MarkedAt:  now,
			})
		case errors.Is(err, store.ErrNoRecord), errors.Is(err, store.ErrAlreadyPresent):
			// skipped, not an error
		default:
			return marked, err
		}
	}
	metrics.MarksTotal.WithLabelValues("bulk").Add(float64(marked))
	return marked, nil
}

// MarkSelf records a geolocation-gated mark for the calling student. The
// session must be active and inside its validity window, the student on
// the roster and not already present, and the reported coordinates within
// the geofence of the session's classroom, resolved live by id.
func (s *Service) MarkSelf(ctx context.Context, caller model.Identity, sessionID string, reportedLat, reportedLon float64) (*SelfMarkResult, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusActive {
		metrics.MarkRejections.WithLabelValues("session_not_active").Inc()
		return nil, ErrSessionNotActive
	}
	now := s.now().UTC()
	if !sess.InWindow(now) {
		metrics.MarkRejections.WithLabelValues("outside_window").Inc()
		return nil, ErrSessionNotActive
	}

	rec, err := s.store.GetRecord(ctx, sessionID, caller.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			metrics.MarkRejections.WithLabelValues("not_in_roster").Inc()
			return nil, ErrNotInRoster
		}
		return nil, err
	}
	if rec.Status == model.MarkPresent {
		return nil, ErrAlreadyMarked
	}

	loc, err := s.locations.GetLocation(ctx, sess.ClassConfigID)
	if err != nil {
		return nil, err
	}
	res, err := geo.Validate(loc.Latitude, loc.Longitude, reportedLat, reportedLon, s.radius)
	if err != nil {
		metrics.MarkRejections.WithLabelValues("invalid_coordinates").Inc()
		return nil, err
	}
	if !res.Admit {
		metrics.MarkRejections.WithLabelValues("out_of_range").Inc()
		return nil, &OutOfRangeError{DistanceMeters: res.DistanceMeters, RadiusMeters: s.radius}
	}

	if err := s.store.MarkPresent(ctx, sessionID, caller.Subject, model.MarkedBySelf, now); err != nil {
		if errors.Is(err, store.ErrAlreadyPresent) {
			// Lost a race with a concurrent mark.
			return nil, ErrAlreadyMarked
		}
		if errors.Is(err, store.ErrNoRecord) {
			return nil, ErrNotInRoster
		}
		return nil, err
	}

	dist := res.DistanceMeters
	s.publish(ctx, MarkEvent{
		SessionID:      sessionID,
		StudentID:      caller.Subject,
		MarkedBy:       string(model.MarkedBySelf),
		DistanceMeters: &dist,
		MarkedAt:       now,
	})
	metrics.MarksTotal.WithLabelValues("self").Inc()
	return &SelfMarkResult{DistanceMeters: res.DistanceMeters, MarkedAt: now}, nil
}

// GetRoster returns the session's attendance records ordered by student
// id, visible to the creator and to roster members.
func (s *Service) GetRoster(ctx context.Context, caller model.Identity, sessionID string) ([]model.AttendanceRecord, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CreatorID != caller.Subject {
		if _, err := s.store.GetRecord(ctx, sessionID, caller.Subject); err != nil {
			return nil, ErrForbidden
		}
	}
	return s.store.ListRoster(ctx, sessionID)
}

// publish enqueues a mark event; delivery is best effort and never fails
// the mark itself.
func (s *Service) publish(ctx context.Context, evt MarkEvent) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, queue.Message{Type: MarkEventType, Body: body}); err != nil {
		log.Printf("mark event publish failed: %v", err)
	}
}
