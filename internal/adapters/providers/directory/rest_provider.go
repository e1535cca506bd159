package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

// RESTProvider implements DirectoryProvider against the Directory Service
// REST API.
type RESTProvider struct {
	baseURL     string
	client      *http.Client
	credentials providers.CredentialProvider
}

// NewRESTProvider creates a new directory REST adapter.
func NewRESTProvider(baseURL string, timeout time.Duration, credentials providers.CredentialProvider) providers.DirectoryProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTProvider{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
		credentials: credentials,
	}
}

// studentPayload mirrors the directory wire format. Older directory
// deployments still send the record id as `_id`; both spellings decode into
// the canonical ID field.
type studentPayload struct {
	ID              string     `json:"id"`
	LegacyID        string     `json:"_id"`
	CitizenID       string     `json:"citizen_id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	School          string     `json:"school"`
	Grade           string     `json:"grade"`
	ConsentOnFile   bool       `json:"consent_on_file"`
	ScreeningStatus string     `json:"screening_status"`
}

func (p *studentPayload) toEntity() *entities.Student {
	id := p.ID
	if id == "" {
		id = p.LegacyID
	}
	return &entities.Student{
		ID:              id,
		CitizenID:       p.CitizenID,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		DateOfBirth:     p.DateOfBirth,
		School:          p.School,
		Grade:           p.Grade,
		ConsentOnFile:   p.ConsentOnFile,
		ScreeningStatus: entities.ScreeningStatus(p.ScreeningStatus),
	}
}

// GetStudent returns one student by its canonical id.
func (p *RESTProvider) GetStudent(ctx context.Context, id string) (*entities.Student, error) {
	endpoint := fmt.Sprintf("%s/students/%s", p.baseURL, url.PathEscape(id))

	resp, err := p.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("student with id %s not found", id))
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, apperrors.NewUnauthorizedError("directory rejected credentials")
	default:
		return nil, apperrors.NewExternalError(fmt.Sprintf("directory returned status %d", resp.StatusCode), nil)
	}

	var payload studentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("failed to decode directory response", err)
	}

	return payload.toEntity(), nil
}

// ListStudents returns students matching the filter.
func (p *RESTProvider) ListStudents(ctx context.Context, filter providers.StudentFilter) ([]*entities.Student, error) {
	query := url.Values{}
	if filter.School != "" {
		query.Set("school", filter.School)
	}
	if filter.Grade != "" {
		query.Set("grade", filter.Grade)
	}
	if filter.Query != "" {
		query.Set("q", filter.Query)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		query.Set("offset", strconv.Itoa(filter.Offset))
	}

	endpoint := fmt.Sprintf("%s/students", p.baseURL)
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	resp, err := p.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, apperrors.NewUnauthorizedError("directory rejected credentials")
	default:
		return nil, apperrors.NewExternalError(fmt.Sprintf("directory returned status %d", resp.StatusCode), nil)
	}

	var payloads []studentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, apperrors.NewExternalError("failed to decode directory response", err)
	}

	students := make([]*entities.Student, 0, len(payloads))
	for i := range payloads {
		students = append(students, payloads[i].toEntity())
	}
	return students, nil
}

func (p *RESTProvider) doGet(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build directory request", err)
	}

	token, err := p.credentials.Token(ctx)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("missing credentials for directory call")
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("directory request failed", err)
	}
	return resp, nil
}
