package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

// SessionAdapter implements the SessionRepository interface on Postgres. It
// is the durable session store: ids are assigned here on first persist.
type SessionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSessionAdapter creates a new session adapter
func NewSessionAdapter(client *postgres.Client) repositories.SessionRepository {
	return &SessionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a new session and assigns its id. The id is only set on
// the session once the INSERT succeeds, so a failed create leaves the
// session id-less and a retry goes through the create path again.
func (a *SessionAdapter) Create(ctx context.Context, session *entities.ScreeningSession) error {
	id := session.ID
	if id == "" {
		id = uuid.New().String()
	}

	stepData, err := json.Marshal(session.StepData)
	if err != nil {
		return apperrors.NewInternalError("failed to encode step data", err)
	}

	record := goqu.Record{
		"id":           id,
		"operator_id":  session.OperatorID,
		"student_id":   session.StudentID,
		"patient_id":   session.PatientID,
		"current_step": int(session.CurrentStep),
		"step_data":    stepData,
		"status":       session.Status,
		"created_at":   session.CreatedAt,
		"updated_at":   session.UpdatedAt,
	}

	query, args, err := a.db.Insert("screening_sessions").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create screening session", err)
	}

	session.ID = id
	return nil
}

// Update overwrites the stored session addressed by session.ID.
func (a *SessionAdapter) Update(ctx context.Context, session *entities.ScreeningSession) error {
	stepData, err := json.Marshal(session.StepData)
	if err != nil {
		return apperrors.NewInternalError("failed to encode step data", err)
	}

	record := goqu.Record{
		"student_id":   session.StudentID,
		"patient_id":   session.PatientID,
		"current_step": int(session.CurrentStep),
		"step_data":    stepData,
		"status":       session.Status,
		"updated_at":   session.UpdatedAt,
	}

	query, args, err := a.db.Update("screening_sessions").
		Set(record).
		Where(goqu.Ex{"id": session.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update screening session", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("screening session with id %s not found", session.ID))
	}

	return nil
}

// GetByID reconstructs a session exactly as last persisted.
func (a *SessionAdapter) GetByID(ctx context.Context, id string) (*entities.ScreeningSession, error) {
	query, args, err := a.db.Select(
		"id", "operator_id", "student_id", "patient_id", "current_step",
		"step_data", "status", "created_at", "updated_at",
	).From("screening_sessions").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	session, err := a.scanSession(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("screening session with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get screening session", err)
	}

	return session, nil
}

// FindActiveByStudent returns the newest in-progress session for a student.
func (a *SessionAdapter) FindActiveByStudent(ctx context.Context, studentID string) (*entities.ScreeningSession, error) {
	query, args, err := a.db.Select(
		"id", "operator_id", "student_id", "patient_id", "current_step",
		"step_data", "status", "created_at", "updated_at",
	).From("screening_sessions").
		Where(goqu.Ex{
			"student_id": studentID,
			"status":     entities.SessionStatusInProgress,
		}).
		Order(goqu.I("updated_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	session, err := a.scanSession(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no active session for student %s", studentID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find active session", err)
	}

	return session, nil
}

// ListCompleted returns completed sessions matching the filter, newest first.
func (a *SessionAdapter) ListCompleted(ctx context.Context, filter repositories.SessionFilter) ([]*entities.ScreeningSession, error) {
	ds := a.db.Select(
		"id", "operator_id", "student_id", "patient_id", "current_step",
		"step_data", "status", "created_at", "updated_at",
	).From("screening_sessions").
		Where(goqu.Ex{"status": entities.SessionStatusCompleted})

	if filter.StudentID != "" {
		ds = ds.Where(goqu.Ex{"student_id": filter.StudentID})
	}
	if filter.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientID})
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("updated_at").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("updated_at").Lte(*filter.To))
	}

	ds = ds.Order(goqu.I("updated_at").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list screening sessions", err)
	}
	defer rows.Close()

	var sessions []*entities.ScreeningSession
	for rows.Next() {
		session, err := a.scanSession(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan screening session", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate screening sessions", err)
	}

	return sessions, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (a *SessionAdapter) scanSession(row rowScanner) (*entities.ScreeningSession, error) {
	session := &entities.ScreeningSession{}
	var studentID, patientID sql.NullString
	var currentStep int
	var stepData []byte
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&session.ID,
		&session.OperatorID,
		&studentID,
		&patientID,
		&currentStep,
		&stepData,
		&session.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.StudentID = studentID.String
	if patientID.Valid {
		session.PatientID = &patientID.String
	}
	session.CurrentStep = entities.Step(currentStep)
	session.CreatedAt = createdAt
	session.UpdatedAt = updatedAt

	if len(stepData) > 0 {
		if err := json.Unmarshal(stepData, &session.StepData); err != nil {
			return nil, fmt.Errorf("failed to decode step data: %w", err)
		}
	}

	return session, nil
}
