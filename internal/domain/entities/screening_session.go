package entities

import (
	"fmt"
	"time"
)

// SessionStatus represents the lifecycle state of a screening session.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// ScreeningSession is the durable record of one student's walk through the
// screening workflow. ID is empty until the session store assigns one on the
// first persist. PatientID stays nil until the registration gate succeeds.
type ScreeningSession struct {
	ID          string        `json:"id,omitempty" db:"id"`
	OperatorID  string        `json:"operator_id" db:"operator_id"`
	StudentID   string        `json:"student_id,omitempty" db:"student_id"`
	PatientID   *string       `json:"patient_id,omitempty" db:"patient_id"`
	CurrentStep Step          `json:"current_step" db:"current_step"`
	StepData    StepData      `json:"step_data" db:"step_data"`
	Status      SessionStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// IsCompleted reports whether the session reached its terminal state.
func (s *ScreeningSession) IsCompleted() bool {
	return s.Status == SessionStatusCompleted
}

// AtLastStep reports whether the session sits on the final step.
func (s *ScreeningSession) AtLastStep() bool {
	return s.CurrentStep == LastStep()
}

// ValidateStep checks that the named step holds the fields required before
// the operator may leave it. These checks are local: a failure must block the
// transition without any network call.
func (s *ScreeningSession) ValidateStep(step Step) error {
	switch step {
	case StepAppointmentSchedule:
		// Step 0 needs no captured data; the operator either schedules or
		// jumps directly to consent after picking a student.
		return nil
	case StepParentConsent:
		if s.StepData.Consent == nil {
			return fmt.Errorf("consent decision is required")
		}
		if !s.StepData.Consent.Granted {
			return fmt.Errorf("parental consent must be granted before screening")
		}
	case StepStudentRegistration:
		if s.StudentID == "" {
			return fmt.Errorf("a student must be selected before registration")
		}
	case StepVAScreening:
		a := s.StepData.Acuity
		if a == nil || a.RightEye == "" || a.LeftEye == "" {
			return fmt.Errorf("visual acuity for both eyes is required")
		}
	case StepDoctorDiagnosis:
		d := s.StepData.Diagnosis
		if d == nil || d.Diagnosis == "" {
			return fmt.Errorf("a doctor diagnosis is required")
		}
	case StepGlassesSelection:
		d := s.StepData.Diagnosis
		if d != nil && d.NeedsGlasses {
			g := s.StepData.Glasses
			if g == nil || g.FrameCode == "" {
				return fmt.Errorf("a frame selection is required when glasses are prescribed")
			}
		}
	case StepInventoryCheck:
		if s.StepData.Diagnosis != nil && s.StepData.Diagnosis.NeedsGlasses {
			inv := s.StepData.Inventory
			if inv == nil || !inv.InStock {
				return fmt.Errorf("the selected frame must be confirmed in stock")
			}
		}
	case StepSchoolDelivery:
		d := s.StepData.Delivery
		if d == nil || d.Method == "" {
			return fmt.Errorf("a delivery method is required")
		}
	}
	return nil
}
