package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
	"github.com/visionwell/vision-screening/backend/pkg/retry"
)

// DeliveryNotifier sends a best-effort notice to the school contact when a
// workflow completes. Failures never block completion.
type DeliveryNotifier interface {
	SendDeliveryNotice(ctx context.Context, session *entities.ScreeningSession) error
}

// WorkflowService is the step sequencer: it owns every transition of a
// screening session and the persistence checkpointing around it. Transitions
// are strictly sequential per session; a second operation arriving while one
// is in flight is rejected with a conflict error instead of being queued.
type WorkflowService struct {
	sessions     repositories.SessionRepository
	inventory    repositories.InventoryRepository
	directory    providers.DirectoryProvider
	registration *RegistrationService
	presence     *PresenceService
	history      *HistoryService
	notifier     DeliveryNotifier
	retryCfg     retry.Config

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(
	sessions repositories.SessionRepository,
	inventory repositories.InventoryRepository,
	directory providers.DirectoryProvider,
	registration *RegistrationService,
	presence *PresenceService,
) *WorkflowService {
	return &WorkflowService{
		sessions:     sessions,
		inventory:    inventory,
		directory:    directory,
		registration: registration,
		presence:     presence,
		retryCfg:     retry.PersistenceConfig(),
		inflight:     make(map[string]struct{}),
	}
}

// SetHistoryService wires outcome indexing on completion (optional).
func (s *WorkflowService) SetHistoryService(history *HistoryService) {
	s.history = history
}

// SetDeliveryNotifier wires the completion notice sender (optional).
func (s *WorkflowService) SetDeliveryNotifier(notifier DeliveryNotifier) {
	s.notifier = notifier
}

// StartSession creates a new session at the first step and persists it. The
// session store assigns the id.
func (s *WorkflowService) StartSession(ctx context.Context, operatorID string) (*entities.ScreeningSession, error) {
	if operatorID == "" {
		return nil, apperrors.NewValidationError("operator id is required")
	}

	now := time.Now()
	session := &entities.ScreeningSession{
		OperatorID:  operatorID,
		CurrentStep: entities.StepAppointmentSchedule,
		Status:      entities.SessionStatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	s.presence.Notify(ctx, entities.PresenceEventTypeOperatorJoined, session)
	return session, nil
}

// LoadSession reconstructs a session exactly as last persisted, so the
// sequencer reattaches at the saved step rather than step zero.
func (s *WorkflowService) LoadSession(ctx context.Context, sessionID string) (*entities.ScreeningSession, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

// FindActiveSession returns the newest in-progress session for a student so
// an operator can resume instead of starting a duplicate walk-through.
func (s *WorkflowService) FindActiveSession(ctx context.Context, studentID string) (*entities.ScreeningSession, error) {
	if studentID == "" {
		return nil, apperrors.NewValidationError("student id is required")
	}
	return s.sessions.FindActiveByStudent(ctx, studentID)
}

// SaveStep merges captured step data into the session and checkpoints it.
// Merging is append-only per step so repeated saves with identical data only
// move the updated timestamp.
func (s *WorkflowService) SaveStep(ctx context.Context, sessionID string, data entities.StepData) (*entities.ScreeningSession, error) {
	release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, apperrors.NewConflictError("session is already completed")
	}

	session.StepData.Merge(data)
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Next advances the session one step. Leaving the registration step requires
// the registration gate; a gate failure leaves the step and its captured data
// untouched for retry.
func (s *WorkflowService) Next(ctx context.Context, sessionID string) (*entities.ScreeningSession, error) {
	release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, apperrors.NewConflictError("session is already completed")
	}
	if session.AtLastStep() {
		return nil, apperrors.NewValidationError("already at the final step; complete the workflow instead")
	}

	if err := session.ValidateStep(session.CurrentStep); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if session.CurrentStep == entities.StepStudentRegistration && session.PatientID == nil {
		if err := s.runRegistrationGate(ctx, session); err != nil {
			return nil, err
		}
	}

	session.CurrentStep++
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	s.presence.Notify(ctx, entities.PresenceEventTypeStepChanged, session)
	return session, nil
}

// Back moves the session one step backwards. Always permitted above step
// zero; captured step data is never discarded.
func (s *WorkflowService) Back(ctx context.Context, sessionID string) (*entities.ScreeningSession, error) {
	release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, apperrors.NewConflictError("session is already completed")
	}
	if session.CurrentStep == 0 {
		return nil, apperrors.NewValidationError("already at the first step")
	}

	session.CurrentStep--
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	s.presence.Notify(ctx, entities.PresenceEventTypeStepChanged, session)
	return session, nil
}

// JumpToConsent jumps straight to the consent step after the operator picks a
// student from the directory list. Only valid from step zero; the patient id
// stays unset until the registration gate runs.
func (s *WorkflowService) JumpToConsent(ctx context.Context, sessionID, studentID string) (*entities.ScreeningSession, error) {
	if studentID == "" {
		return nil, apperrors.NewValidationError("student id is required")
	}

	release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, apperrors.NewConflictError("session is already completed")
	}
	if session.CurrentStep != entities.StepAppointmentSchedule {
		return nil, apperrors.NewValidationError("jumping to consent is only allowed from the first step")
	}

	session.StudentID = studentID
	session.CurrentStep = entities.StepParentConsent
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	s.presence.Notify(ctx, entities.PresenceEventTypeStepChanged, session)
	return session, nil
}

// SelectStudent switches the session to a different student. This is the
// explicit destructive operation: captured step data and the patient binding
// are discarded and the session restarts at the consent step. Selecting the
// already-bound student is a no-op.
func (s *WorkflowService) SelectStudent(ctx context.Context, sessionID, studentID string) (*entities.ScreeningSession, error) {
	if studentID == "" {
		return nil, apperrors.NewValidationError("student id is required")
	}

	release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, apperrors.NewConflictError("session is already completed")
	}
	if session.StudentID == studentID {
		return session, nil
	}

	if inv := session.StepData.Inventory; inv != nil && inv.ReservationID != "" && s.inventory != nil {
		if err := s.inventory.Release(ctx, inv.ReservationID); err != nil {
			log.Printf("failed to release reservation %s (ignored): %v", inv.ReservationID, err)
		}
	}

	session.StudentID = studentID
	session.PatientID = nil
	session.StepData = entities.StepData{}
	session.CurrentStep = entities.StepParentConsent
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	s.presence.Notify(ctx, entities.PresenceEventTypeStepChanged, session)
	return session, nil
}

// CheckInventory reserves stock for the frame chosen at the glasses selection
// step and records the result in the inventory step data. Changing frames
// releases the previous reservation first.
func (s *WorkflowService) CheckInventory(ctx context.Context, sessionID string) (*entities.ScreeningSession, error) {
	release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, apperrors.NewConflictError("session is already completed")
	}

	glasses := session.StepData.Glasses
	if glasses == nil || glasses.FrameCode == "" {
		return nil, apperrors.NewValidationError("a frame must be selected before checking inventory")
	}
	if s.inventory == nil {
		return nil, apperrors.NewInternalError("inventory repository not configured", nil)
	}

	if inv := session.StepData.Inventory; inv != nil && inv.ReservationID != "" && inv.FrameCode != glasses.FrameCode {
		if err := s.inventory.Release(ctx, inv.ReservationID); err != nil {
			log.Printf("failed to release reservation %s (ignored): %v", inv.ReservationID, err)
		}
		session.StepData.Inventory = nil
	}

	reservation, err := s.inventory.Reserve(ctx, session.ID, glasses.FrameCode)
	if err != nil {
		return nil, err
	}

	session.StepData.Inventory = &entities.InventoryData{
		ReservationID: reservation.ID,
		FrameCode:     reservation.FrameCode,
		InStock:       true,
	}
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Complete runs the terminal transition. Only valid at the final step; on
// persistence failure the stored state is unchanged and the error is
// surfaced. Completing an already-completed session is a no-op.
func (s *WorkflowService) Complete(ctx context.Context, sessionID string) (*entities.ScreeningSession, error) {
	release, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return session, nil
	}
	if !session.AtLastStep() {
		return nil, apperrors.NewValidationError("the workflow can only be completed from the final step")
	}
	if err := session.ValidateStep(session.CurrentStep); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if inv := session.StepData.Inventory; inv != nil && inv.ReservationID != "" && s.inventory != nil {
		if err := s.inventory.MarkDelivered(ctx, inv.ReservationID); err != nil {
			return nil, apperrors.NewInternalError("failed to close the frame reservation", err)
		}
	}

	now := time.Now()
	if session.StepData.Delivery != nil && session.StepData.Delivery.DeliveredAt == nil {
		session.StepData.Delivery.DeliveredAt = &now
	}
	session.Status = entities.SessionStatusCompleted
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	s.presence.Notify(ctx, entities.PresenceEventTypeCompleted, session)
	s.afterCompletion(ctx, session)
	return session, nil
}

// afterCompletion runs the best-effort side effects of a completed workflow:
// outcome indexing and the delivery notice. Neither can fail the completion.
func (s *WorkflowService) afterCompletion(ctx context.Context, session *entities.ScreeningSession) {
	if s.history != nil {
		if err := s.history.IndexSession(ctx, session); err != nil {
			log.Printf("failed to index outcome for session %s (ignored): %v", session.ID, err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.SendDeliveryNotice(ctx, session); err != nil {
			log.Printf("failed to send delivery notice for session %s (ignored): %v", session.ID, err)
		}
	}
}

// runRegistrationGate ensures a patient exists for the session's student and
// binds it. This is the only place a patient id is introduced.
func (s *WorkflowService) runRegistrationGate(ctx context.Context, session *entities.ScreeningSession) error {
	if session.StudentID == "" {
		return apperrors.NewValidationError("a student must be selected before registration")
	}

	student, err := s.directory.GetStudent(ctx, session.StudentID)
	if err != nil {
		return apperrors.NewExternalError("failed to load the student record; register the student before continuing", err)
	}

	patient, err := s.registration.EnsurePatient(ctx, student, session.StepData.Registration)
	if err != nil {
		return err
	}

	session.PatientID = &patient.ID
	return nil
}

// persist checkpoints the session with bounded exponential backoff. The
// store assigns the id on the first persist; afterwards the same document is
// updated in place.
func (s *WorkflowService) persist(ctx context.Context, session *entities.ScreeningSession) error {
	session.UpdatedAt = time.Now()

	err := retry.DoWithLog(ctx, s.retryCfg, "session store", func() error {
		if session.ID == "" {
			return s.sessions.Create(ctx, session)
		}
		return s.sessions.Update(ctx, session)
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Printf("session persist attempt %d failed: %v. Retrying in %v...", attempt, err, nextDelay)
	})
	if err != nil {
		return apperrors.NewInternalError("failed to save screening session", err)
	}
	return nil
}

// acquire takes the single-in-flight slot for a session, returning a release
// function. A second operation on the same session while one is running gets
// a conflict error, which prevents duplicate submissions from rapid repeated
// clicks.
func (s *WorkflowService) acquire(sessionID string) (func(), error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[sessionID]; busy {
		return nil, apperrors.NewConflictError("another operation is in progress for this session")
	}
	s.inflight[sessionID] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.inflight, sessionID)
		s.mu.Unlock()
	}, nil
}
