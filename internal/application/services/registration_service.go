package services

import (
	"context"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

// RegistrationService is the registration gate: it guarantees a durable
// patient record exists before any step past student registration captures
// clinical data.
type RegistrationService struct {
	provider providers.RegistrationProvider
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(provider providers.RegistrationProvider) *RegistrationService {
	return &RegistrationService{
		provider: provider,
	}
}

// EnsurePatient returns the patient registered for the student, creating one
// only when none exists. An existing patient is returned unchanged and no
// creation call is issued, so calling twice for the same student id yields
// the same patient both times.
func (s *RegistrationService) EnsurePatient(ctx context.Context, student *entities.Student, contact *entities.RegistrationData) (*entities.Patient, error) {
	if student == nil || student.ID == "" {
		return nil, apperrors.NewValidationError("a student with an id is required for registration")
	}

	patient, err := s.provider.FindPatientByStudent(ctx, student.ID)
	if err == nil {
		return patient, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, apperrors.NewExternalError("patient lookup failed", err)
	}

	draft := entities.NewPatientDraft(student, contact)
	created, err := s.provider.CreatePatient(ctx, draft)
	if err != nil {
		return nil, apperrors.NewExternalError("patient registration failed", err)
	}
	return created, nil
}
