//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visionwell/vision-screening/backend/internal/adapters/database"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

func newTestSession(operatorID, studentID string) *entities.ScreeningSession {
	now := time.Now().UTC()
	return &entities.ScreeningSession{
		OperatorID: operatorID,
		StudentID:  studentID,
		Status:     entities.SessionStatusInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSessionAdapter_PersistAndResume(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	client := newTestPostgresClient(t)
	defer client.Close()
	runMigrations(t, client, "../../migrations/001_initial_schema.sql")
	truncateTables(t, client)

	repo := database.NewSessionAdapter(client)
	ctx := context.Background()

	session := newTestSession("op-1", "stu-1")
	require.NoError(t, repo.Create(ctx, session))
	require.NotEmpty(t, session.ID)

	// Capture consent, advance two steps and persist.
	session.StepData.Merge(entities.StepData{
		Consent: &entities.ConsentData{
			Granted:      true,
			GuardianName: "Mrs Okafor",
			Method:       "paper",
			ConsentedAt:  time.Now().UTC(),
		},
	})
	session.CurrentStep = entities.StepStudentRegistration
	session.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Update(ctx, session))

	// A fresh load resumes exactly where the session was saved.
	loaded, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StepStudentRegistration, loaded.CurrentStep)
	assert.Equal(t, "stu-1", loaded.StudentID)
	assert.Nil(t, loaded.PatientID)
	require.NotNil(t, loaded.StepData.Consent)
	assert.True(t, loaded.StepData.Consent.Granted)
	assert.Equal(t, "Mrs Okafor", loaded.StepData.Consent.GuardianName)
}

func TestSessionAdapter_FindActiveByStudent(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	client := newTestPostgresClient(t)
	defer client.Close()
	runMigrations(t, client, "../../migrations/001_initial_schema.sql")
	truncateTables(t, client)

	repo := database.NewSessionAdapter(client)
	ctx := context.Background()

	older := newTestSession("op-1", "stu-7")
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, older))

	newer := newTestSession("op-2", "stu-7")
	require.NoError(t, repo.Create(ctx, newer))

	active, err := repo.FindActiveByStudent(ctx, "stu-7")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, active.ID)

	_, err = repo.FindActiveByStudent(ctx, "stu-none")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionAdapter_ListCompleted(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	client := newTestPostgresClient(t)
	defer client.Close()
	runMigrations(t, client, "../../migrations/001_initial_schema.sql")
	truncateTables(t, client)

	repo := database.NewSessionAdapter(client)
	ctx := context.Background()

	inProgress := newTestSession("op-1", "stu-1")
	require.NoError(t, repo.Create(ctx, inProgress))

	done := newTestSession("op-1", "stu-2")
	done.Status = entities.SessionStatusCompleted
	done.CurrentStep = entities.LastStep()
	require.NoError(t, repo.Create(ctx, done))

	completed, err := repo.ListCompleted(ctx, repositories.SessionFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)

	filtered, err := repo.ListCompleted(ctx, repositories.SessionFilter{StudentID: "stu-1", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, filtered)
}
