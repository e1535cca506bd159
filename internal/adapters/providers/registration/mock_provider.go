package registration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

// MockRegistrationProvider is an in-memory registration service for local
// development. Creation is idempotent by student id, matching the real
// service contract.
type MockRegistrationProvider struct {
	mu        sync.Mutex
	byStudent map[string]*entities.Patient
}

// NewMockRegistrationProvider creates an empty mock registration service.
func NewMockRegistrationProvider() *MockRegistrationProvider {
	return &MockRegistrationProvider{byStudent: make(map[string]*entities.Patient)}
}

// FindPatientByStudent returns the patient registered for the student.
func (m *MockRegistrationProvider) FindPatientByStudent(ctx context.Context, studentID string) (*entities.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	patient, ok := m.byStudent[studentID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no patient registered for student %s", studentID))
	}
	copied := *patient
	return &copied, nil
}

// CreatePatient registers a patient from a draft. A second creation for the
// same student returns the first record unchanged.
func (m *MockRegistrationProvider) CreatePatient(ctx context.Context, draft entities.PatientDraft) (*entities.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byStudent[draft.StudentID]; ok {
		copied := *existing
		return &copied, nil
	}

	studentID := draft.StudentID
	patient := &entities.Patient{
		ID:          uuid.New().String(),
		StudentID:   &studentID,
		FirstName:   draft.FirstName,
		LastName:    draft.LastName,
		DateOfBirth: draft.DateOfBirth,
		CitizenID:   draft.CitizenID,
		Phone:       draft.Phone,
		Email:       draft.Email,
		CreatedAt:   time.Now(),
	}
	m.byStudent[draft.StudentID] = patient

	copied := *patient
	return &copied, nil
}
