package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

// RESTProvider implements RegistrationProvider against the Patient
// Registration Service REST API.
type RESTProvider struct {
	baseURL     string
	client      *http.Client
	credentials providers.CredentialProvider
}

// NewRESTProvider creates a new registration REST adapter.
func NewRESTProvider(baseURL string, timeout time.Duration, credentials providers.CredentialProvider) providers.RegistrationProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTProvider{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
		credentials: credentials,
	}
}

// FindPatientByStudent returns the patient registered for the student, or a
// not-found error when none exists.
func (p *RESTProvider) FindPatientByStudent(ctx context.Context, studentID string) (*entities.Patient, error) {
	endpoint := fmt.Sprintf("%s/patients?student_id=%s", p.baseURL, url.QueryEscape(studentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build registration request", err)
	}
	if err := p.addHeaders(ctx, req); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("registration request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no patient registered for student %s", studentID))
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, apperrors.NewUnauthorizedError("registration service rejected credentials")
	default:
		return nil, apperrors.NewExternalError(fmt.Sprintf("registration service returned status %d", resp.StatusCode), nil)
	}

	// The lookup endpoint returns a list; an empty list means no patient yet.
	var patients []entities.Patient
	if err := json.NewDecoder(resp.Body).Decode(&patients); err != nil {
		return nil, apperrors.NewExternalError("failed to decode registration response", err)
	}
	if len(patients) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no patient registered for student %s", studentID))
	}

	return &patients[0], nil
}

// CreatePatient registers a new patient from a draft.
func (p *RESTProvider) CreatePatient(ctx context.Context, draft entities.PatientDraft) (*entities.Patient, error) {
	endpoint := fmt.Sprintf("%s/patients/from-student/%s", p.baseURL, url.PathEscape(draft.StudentID))

	body, err := json.Marshal(draft)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to marshal patient draft", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build registration request", err)
	}
	if err := p.addHeaders(ctx, req); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("registration request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, apperrors.NewUnauthorizedError("registration service rejected credentials")
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return nil, apperrors.NewValidationError("registration service rejected patient draft")
	default:
		return nil, apperrors.NewExternalError(fmt.Sprintf("registration service returned status %d", resp.StatusCode), nil)
	}

	var patient entities.Patient
	if err := json.NewDecoder(resp.Body).Decode(&patient); err != nil {
		return nil, apperrors.NewExternalError("failed to decode registration response", err)
	}

	return &patient, nil
}

func (p *RESTProvider) addHeaders(ctx context.Context, req *http.Request) error {
	token, err := p.credentials.Token(ctx)
	if err != nil {
		return apperrors.NewUnauthorizedError("missing credentials for registration call")
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Accept", "application/json")
	return nil
}
