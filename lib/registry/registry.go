// Package registry holds the boundaries to the collaborators the
// verification core consults but does not own: the subject registry, the
// presence record sink, and administrator credentials.
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicate is returned when a subject or admin already exists.
	ErrDuplicate = errors.New("registry: already exists")

	// ErrNotFound is returned when a lookup misses.
	ErrNotFound = errors.New("registry: not found")
)

// Subject is one registered check-in subject.
type Subject struct {
	SubjectID string    `json:"subjectId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Analytics is the aggregate view the admin dashboard shows.
type Analytics struct {
	TotalRecords   int `json:"totalRecords"`
	UniqueSubjects int `json:"uniqueSubjects"`
	TodayCount     int `json:"todayCount"`
}

// Subjects is the subject registry boundary. Exists is the only call the
// verification core itself makes; the rest serve the driving layer.
type Subjects interface {
	Exists(ctx context.Context, subjectID string) (bool, error)
	Register(ctx context.Context, subjectID string) error
	List(ctx context.Context) ([]Subject, error)
}

// Presence records confirmed check-ins. Record is invoked only after a
// CONFIRMED outcome; the verification core never writes here on any other
// path.
type Presence interface {
	Record(ctx context.Context, subjectID string, at time.Time, markedBy string) error
	Analytics(ctx context.Context) (Analytics, error)
}

// Admins stores administrator credentials. Only password hashes cross this
// boundary; hashing itself happens in the service layer.
type Admins interface {
	Create(ctx context.Context, username, passwordHash string) error
	PasswordHash(ctx context.Context, username string) (string, error)
}
