package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"classtrack/internal/model"
)

// Memory is a mutex-guarded in-memory Store for dev mode and tests.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	records  map[string]map[string]model.AttendanceRecord // sessionID -> studentID -> record
	audit    []AuditEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]model.Session),
		records:  make(map[string]map[string]model.AttendanceRecord),
	}
}

func (m *Memory) CreateSession(ctx context.Context, s *model.Session, roster []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = model.StatusNew
	}
	m.sessions[s.ID] = *s
	recs := make(map[string]model.AttendanceRecord, len(roster))
	for _, studentID := range roster {
		recs[studentID] = model.AttendanceRecord{
			SessionID: s.ID,
			StudentID: studentID,
			Status:    model.MarkAbsent,
		}
	}
	m.records[s.ID] = recs
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *Memory) ListSessionsByCreator(ctx context.Context, creatorID string, status model.SessionStatus) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []model.Session
	for _, s := range m.sessions {
		if s.CreatorID == creatorID && (status == "" || s.Status == status) {
			res = append(res, s)
		}
	}
	sortNewestFirst(res)
	return res, nil
}

func (m *Memory) ListSessionsByStudent(ctx context.Context, studentID string, status model.SessionStatus) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []model.Session
	for id, s := range m.sessions {
		if status != "" && s.Status != status {
			continue
		}
		if _, ok := m.records[id][studentID]; ok {
			res = append(res, s)
		}
	}
	sortNewestFirst(res)
	return res, nil
}

func (m *Memory) UpdateSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrSessionNotFound
	}
	cur.Title = s.Title
	cur.Description = s.Description
	cur.ValidFrom = s.ValidFrom
	cur.ValidTo = s.ValidTo
	cur.SubjectCode = s.SubjectCode
	cur.BatchID = s.BatchID
	cur.ClassConfigID = s.ClassConfigID
	m.sessions[s.ID] = cur
	return nil
}

func (m *Memory) TransitionSession(ctx context.Context, id string, from, to model.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.Status != from {
		return ErrStatusConflict
	}
	s.Status = to
	m.sessions[id] = s
	return nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	delete(m.records, id)
	return nil
}

func (m *Memory) AddRosterMembers(ctx context.Context, sessionID string, studentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs, ok := m.records[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for _, studentID := range studentIDs {
		if _, exists := recs[studentID]; !exists {
			recs[studentID] = model.AttendanceRecord{
				SessionID: sessionID,
				StudentID: studentID,
				Status:    model.MarkAbsent,
			}
		}
	}
	return nil
}

func (m *Memory) MarkPresent(ctx context.Context, sessionID, studentID string, by model.MarkedBy, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID][studentID]
	if !ok {
		return ErrNoRecord
	}
	if rec.Status == model.MarkPresent {
		return ErrAlreadyPresent
	}
	t := at
	rec.Status = model.MarkPresent
	rec.MarkedAt = &t
	rec.MarkedBy = by
	m.records[sessionID][studentID] = rec
	return nil
}

func (m *Memory) GetRecord(ctx context.Context, sessionID, studentID string) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID][studentID]
	if !ok {
		return nil, ErrNoRecord
	}
	return &rec, nil
}

func (m *Memory) ListRoster(ctx context.Context, sessionID string) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs, ok := m.records[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	res := make([]model.AttendanceRecord, 0, len(recs))
	for _, rec := range recs {
		res = append(res, rec)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StudentID < res[j].StudentID })
	return res, nil
}

func (m *Memory) AppendAudit(ctx context.Context, evt AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	m.audit = append(m.audit, evt)
	return nil
}

// AuditTrail returns a copy of appended audit events, for tests.
func (m *Memory) AuditTrail() []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEvent, len(m.audit))
	copy(out, m.audit)
	return out
}

func sortNewestFirst(sessions []model.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}
