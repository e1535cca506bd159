package providers

import (
	"context"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
)

// RegistrationProvider talks to the external Patient Registration Service.
// Creation is idempotent by student id on the service side; callers still
// look up first so a found patient is returned unchanged without a creation
// call.
type RegistrationProvider interface {
	// FindPatientByStudent returns the patient registered for the student,
	// or a not-found error when none exists.
	FindPatientByStudent(ctx context.Context, studentID string) (*entities.Patient, error)

	// CreatePatient registers a new patient from a draft and returns the
	// stored record.
	CreatePatient(ctx context.Context, draft entities.PatientDraft) (*entities.Patient, error)
}
