package roster

import (
	"context"
	"sync"

	"classtrack/internal/model"
)

// Static is an in-memory Directory for dev mode and tests.
type Static struct {
	mu        sync.RWMutex
	batches   map[string][]string
	locations map[string]model.Location
	subjects  map[string]Subject
}

// NewStatic creates an empty static directory.
func NewStatic() *Static {
	return &Static{
		batches:   make(map[string][]string),
		locations: make(map[string]model.Location),
		subjects:  make(map[string]Subject),
	}
}

// AddBatch registers a batch roster.
func (s *Static) AddBatch(batchID string, studentIDs ...string) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batchID] = append([]string(nil), studentIDs...)
	return s
}

// AddLocation registers a classroom configuration.
func (s *Static) AddLocation(classConfigID, label string, lat, lon float64) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[classConfigID] = model.Location{Label: label, Latitude: lat, Longitude: lon}
	return s
}

// AddSubject registers a subject.
func (s *Static) AddSubject(code, title string) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[code] = Subject{Code: code, Title: title}
	return s
}

func (s *Static) GetRoster(ctx context.Context, batchID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.batches[batchID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return append([]string(nil), ids...), nil
}

func (s *Static) GetLocation(ctx context.Context, classConfigID string) (*model.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[classConfigID]
	if !ok {
		return nil, ErrConfigNotFound
	}
	return &loc, nil
}

func (s *Static) GetSubject(ctx context.Context, subjectCode string) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subj, ok := s.subjects[subjectCode]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	return &subj, nil
}
