package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
)

// WorkflowService is the part of the workflow service the HTTP layer needs.
type WorkflowService interface {
	StartSession(ctx context.Context, operatorID string) (*entities.ScreeningSession, error)
	LoadSession(ctx context.Context, sessionID string) (*entities.ScreeningSession, error)
	FindActiveSession(ctx context.Context, studentID string) (*entities.ScreeningSession, error)
	SaveStep(ctx context.Context, sessionID string, data entities.StepData) (*entities.ScreeningSession, error)
	Next(ctx context.Context, sessionID string) (*entities.ScreeningSession, error)
	Back(ctx context.Context, sessionID string) (*entities.ScreeningSession, error)
	JumpToConsent(ctx context.Context, sessionID, studentID string) (*entities.ScreeningSession, error)
	SelectStudent(ctx context.Context, sessionID, studentID string) (*entities.ScreeningSession, error)
	CheckInventory(ctx context.Context, sessionID string) (*entities.ScreeningSession, error)
	Complete(ctx context.Context, sessionID string) (*entities.ScreeningSession, error)
}

// WorkflowHandler handles screening session HTTP requests
type WorkflowHandler struct {
	workflow WorkflowService
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(workflow WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

// StartSession handles POST /api/screening-sessions
func (h *WorkflowHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorID string `json:"operator_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.workflow.StartSession(r.Context(), req.OperatorID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, session)
}

// GetSession handles GET /api/screening-sessions/{id}
func (h *WorkflowHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	session, err := h.workflow.LoadSession(r.Context(), sessionID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

// GetActiveSession handles GET /api/screening-sessions/active?student_id=X
func (h *WorkflowHandler) GetActiveSession(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		respondWithError(w, http.StatusBadRequest, "student_id query parameter is required")
		return
	}

	session, err := h.workflow.FindActiveSession(r.Context(), studentID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

// SaveStep handles PUT /api/screening-sessions/{id}/steps/{step}.
// The body is the payload for the named step only; data captured at other
// steps is left as stored.
func (h *WorkflowHandler) SaveStep(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	step, err := entities.StepFromName(r.PathValue("step"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := decodeStepPayload(step, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid step payload")
		return
	}

	session, err := h.workflow.SaveStep(r.Context(), sessionID, data)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

// Next handles POST /api/screening-sessions/{id}/next
func (h *WorkflowHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workflow.Next)
}

// Back handles POST /api/screening-sessions/{id}/back
func (h *WorkflowHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workflow.Back)
}

// CheckInventory handles POST /api/screening-sessions/{id}/inventory-check
func (h *WorkflowHandler) CheckInventory(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workflow.CheckInventory)
}

// Complete handles POST /api/screening-sessions/{id}/complete
func (h *WorkflowHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workflow.Complete)
}

// JumpToConsent handles POST /api/screening-sessions/{id}/jump
func (h *WorkflowHandler) JumpToConsent(w http.ResponseWriter, r *http.Request) {
	h.studentTransition(w, r, h.workflow.JumpToConsent)
}

// SelectStudent handles POST /api/screening-sessions/{id}/select-patient
func (h *WorkflowHandler) SelectStudent(w http.ResponseWriter, r *http.Request) {
	h.studentTransition(w, r, h.workflow.SelectStudent)
}

func (h *WorkflowHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, string) (*entities.ScreeningSession, error),
) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	session, err := op(r.Context(), sessionID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

func (h *WorkflowHandler) studentTransition(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, string, string) (*entities.ScreeningSession, error),
) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	var req struct {
		StudentID string `json:"student_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := op(r.Context(), sessionID, req.StudentID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

// decodeStepPayload decodes the request body into the step's data variant.
func decodeStepPayload(step entities.Step, r *http.Request) (entities.StepData, error) {
	var data entities.StepData
	dec := json.NewDecoder(r.Body)

	switch step {
	case entities.StepAppointmentSchedule:
		payload := &entities.AppointmentData{}
		if err := dec.Decode(payload); err != nil {
			return data, err
		}
		data.Appointment = payload
	case entities.StepParentConsent:
		payload := &entities.ConsentData{}
		if err := dec.Decode(payload); err != nil {
			return data, err
		}
		data.Consent = payload
	case entities.StepStudentRegistration:
		payload := &entities.RegistrationData{}
		if err := dec.Decode(payload); err != nil {
			return data, err
		}
		data.Registration = payload
	case entities.StepVAScreening:
		payload := &entities.AcuityData{}
		if err := dec.Decode(payload); err != nil {
			return data, err
		}
		data.Acuity = payload
	case entities.StepDoctorDiagnosis:
		payload := &entities.DiagnosisData{}
		if err := dec.Decode(payload); err != nil {
			return data, err
		}
		data.Diagnosis = payload
	case entities.StepGlassesSelection:
		payload := &entities.GlassesData{}
		if err := dec.Decode(payload); err != nil {
			return data, err
		}
		data.Glasses = payload
	case entities.StepInventoryCheck:
		payload := &entities.InventoryData{}
		if err := dec.Decode(payload); err != nil {
			return data, err
		}
		data.Inventory = payload
	case entities.StepSchoolDelivery:
		payload := &entities.DeliveryData{}
		if err := dec.Decode(payload); err != nil {
			return data, err
		}
		data.Delivery = payload
	}

	return data, nil
}
