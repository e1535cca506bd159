package registration

import (
	"time"

	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
)

// NewRegistrationProvider selects the registration implementation from the
// configured base URL. An empty URL or the literal "mock" yields the
// in-memory store so the service can run without a live Registration Service.
func NewRegistrationProvider(baseURL string, timeout time.Duration, credentials providers.CredentialProvider) providers.RegistrationProvider {
	if baseURL == "" || baseURL == "mock" {
		return NewMockRegistrationProvider()
	}
	return NewRESTProvider(baseURL, timeout, credentials)
}
