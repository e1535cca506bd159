package repositories

import (
	"context"
	"time"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
)

// SessionRepository defines the durable session store contract. The store
// owns session identifiers: Create assigns the id; Update addresses an
// existing session by id.
type SessionRepository interface {
	// Create persists a new session and assigns its id.
	Create(ctx context.Context, session *entities.ScreeningSession) error

	// Update overwrites the stored session addressed by session.ID.
	Update(ctx context.Context, session *entities.ScreeningSession) error

	// GetByID reconstructs a session exactly as last persisted.
	GetByID(ctx context.Context, id string) (*entities.ScreeningSession, error)

	// FindActiveByStudent returns the newest in-progress session for a
	// student, or a not-found error.
	FindActiveByStudent(ctx context.Context, studentID string) (*entities.ScreeningSession, error)

	// ListCompleted returns completed sessions matching the filter, newest
	// first.
	ListCompleted(ctx context.Context, filter SessionFilter) ([]*entities.ScreeningSession, error)
}

// SessionFilter narrows completed-session listings.
type SessionFilter struct {
	StudentID string
	PatientID string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
