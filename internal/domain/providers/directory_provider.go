package providers

import (
	"context"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
)

// DirectoryProvider reads student records from the external Directory
// Service. All operations are read-only; the directory owns the student
// lifecycle.
type DirectoryProvider interface {
	// GetStudent returns one student by its canonical id.
	GetStudent(ctx context.Context, id string) (*entities.Student, error)

	// ListStudents returns students matching the filter.
	ListStudents(ctx context.Context, filter StudentFilter) ([]*entities.Student, error)
}

// StudentFilter narrows directory listings.
type StudentFilter struct {
	School string
	Grade  string
	Query  string
	Limit  int
	Offset int
}
