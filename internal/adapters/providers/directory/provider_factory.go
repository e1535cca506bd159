package directory

import (
	"time"

	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
)

// NewDirectoryProvider selects the directory implementation from the
// configured base URL. An empty URL or the literal "mock" yields the
// in-memory roster so the service can run without a live Directory Service.
func NewDirectoryProvider(baseURL string, timeout time.Duration, credentials providers.CredentialProvider) providers.DirectoryProvider {
	if baseURL == "" || baseURL == "mock" {
		return NewMockDirectoryProvider()
	}
	return NewRESTProvider(baseURL, timeout, credentials)
}
