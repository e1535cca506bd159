package entities

import (
	"time"

	"github.com/google/uuid"
)

// PresenceEventType distinguishes the advisory presence notifications.
type PresenceEventType string

const (
	PresenceEventTypeStepChanged    PresenceEventType = "step_changed"
	PresenceEventTypeOperatorJoined PresenceEventType = "operator_joined"
	PresenceEventTypeOperatorLeft   PresenceEventType = "operator_left"
	PresenceEventTypeCompleted      PresenceEventType = "completed"
)

// PresenceEvent tells other operators who is looking at which step for which
// patient. It is purely advisory: no ordering or delivery guarantee, and it
// must never influence workflow correctness.
type PresenceEvent struct {
	ID         string            `json:"id"`
	EventType  PresenceEventType `json:"event_type"`
	SessionID  string            `json:"session_id"`
	OperatorID string            `json:"operator_id"`
	PatientID  string            `json:"patient_id,omitempty"`
	Step       string            `json:"step"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewPresenceEvent creates a presence event for the given session state.
func NewPresenceEvent(eventType PresenceEventType, session *ScreeningSession) *PresenceEvent {
	ev := &PresenceEvent{
		ID:         uuid.New().String(),
		EventType:  eventType,
		SessionID:  session.ID,
		OperatorID: session.OperatorID,
		Step:       session.CurrentStep.String(),
		Timestamp:  time.Now(),
	}
	if session.PatientID != nil {
		ev.PatientID = *session.PatientID
	}
	return ev
}
