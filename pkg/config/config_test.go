package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DirectoryConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("DIRECTORY_BASE_URL", "http://directory.test:9001")
	os.Setenv("DIRECTORY_TIMEOUT", "3s")
	defer func() {
		os.Unsetenv("DIRECTORY_BASE_URL")
		os.Unsetenv("DIRECTORY_TIMEOUT")
	}()

	// Load config
	cfg, err := Load()
	assert.NoError(t, err)

	// Verify directory config
	assert.Equal(t, "http://directory.test:9001", cfg.Directory.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Directory.Timeout)
}

func TestLoad_Defaults(t *testing.T) {
	// Ensure env vars are cleared
	os.Unsetenv("DIRECTORY_BASE_URL")
	os.Unsetenv("REGISTRATION_BASE_URL")
	os.Unsetenv("DB_NAME")

	cfg, err := Load()
	assert.NoError(t, err)

	// Verify defaults
	assert.Equal(t, "http://localhost:9001", cfg.Directory.BaseURL)
	assert.Equal(t, "http://localhost:9002", cfg.Registration.BaseURL)
	assert.Equal(t, "vision_screening", cfg.Database.Database)
	assert.Equal(t, 10*time.Second, cfg.Registration.Timeout)
}
