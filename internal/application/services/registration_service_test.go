package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visionwell/vision-screening/backend/internal/application/services"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

func TestRegistrationService_EnsurePatient_CreatesOnce(t *testing.T) {
	provider := newStubRegistration()
	svc := services.NewRegistrationService(provider)
	student := &entities.Student{ID: "stu-1", FirstName: "Amina", LastName: "Okafor"}

	first, err := svc.EnsurePatient(context.Background(), student, nil)
	require.NoError(t, err)

	second, err := svc.EnsurePatient(context.Background(), student, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, provider.creates)
	assert.Equal(t, 2, provider.finds)
}

func TestRegistrationService_EnsurePatient_UsesOperatorContact(t *testing.T) {
	provider := newStubRegistration()
	svc := services.NewRegistrationService(provider)
	student := &entities.Student{ID: "stu-1", FirstName: "Amina", LastName: "Okafor"}

	patient, err := svc.EnsurePatient(context.Background(), student, &entities.RegistrationData{
		Phone: "5551234",
	})

	require.NoError(t, err)
	assert.Equal(t, "5551234", patient.Phone)
	// No email was entered, so the documented fallback applies.
	assert.Equal(t, entities.FallbackPatientEmail, patient.Email)
}

func TestRegistrationService_EnsurePatient_FallbackContact(t *testing.T) {
	provider := newStubRegistration()
	svc := services.NewRegistrationService(provider)
	student := &entities.Student{ID: "stu-2", FirstName: "Bola", LastName: "Adeyemi"}

	patient, err := svc.EnsurePatient(context.Background(), student, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.FallbackPatientPhone, patient.Phone)
	assert.Equal(t, entities.FallbackPatientEmail, patient.Email)
}

func TestRegistrationService_EnsurePatient_RequiresStudent(t *testing.T) {
	svc := services.NewRegistrationService(newStubRegistration())

	_, err := svc.EnsurePatient(context.Background(), nil, nil)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	_, err = svc.EnsurePatient(context.Background(), &entities.Student{}, nil)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestRegistrationService_EnsurePatient_LookupFailureIsExternal(t *testing.T) {
	provider := newStubRegistration()
	provider.findErr = apperrors.NewExternalError("registration service unreachable", nil)
	svc := services.NewRegistrationService(provider)

	_, err := svc.EnsurePatient(context.Background(), &entities.Student{ID: "stu-1"}, nil)

	assert.Equal(t, apperrors.ErrorTypeExternal, apperrors.TypeOf(err))
	assert.Equal(t, 0, provider.creates)
}
