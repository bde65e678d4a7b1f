// Package roster adapts the external collaborators the engine depends on:
// the batch roster, classroom configuration and subject directory. All are
// resolved by id; the engine never owns their data.
package roster

import (
	"context"
	"errors"

	"classtrack/internal/model"
)

// Resolution errors. Callers treat any of these as the referenced entity
// not existing.
var (
	ErrBatchNotFound   = errors.New("batch not found")
	ErrConfigNotFound  = errors.New("classroom configuration not found")
	ErrSubjectNotFound = errors.New("subject not found")
)

// Subject is the existence-check view of a subject.
type Subject struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

// BatchResolver returns the student ids belonging to a batch.
type BatchResolver interface {
	GetRoster(ctx context.Context, batchID string) ([]string, error)
}

// LocationResolver returns the geographic point for a classroom
// configuration. The engine resolves live at mark time, so moving a
// classroom pin affects subsequent self-marks of existing sessions.
type LocationResolver interface {
	GetLocation(ctx context.Context, classConfigID string) (*model.Location, error)
}

// SubjectResolver checks that a subject code exists.
type SubjectResolver interface {
	GetSubject(ctx context.Context, subjectCode string) (*Subject, error)
}

// Directory bundles the three resolvers one backend usually provides.
type Directory interface {
	BatchResolver
	LocationResolver
	SubjectResolver
}
