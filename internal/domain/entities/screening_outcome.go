package entities

import (
	"time"
)

// ScreeningOutcome is the flattened, searchable record of a completed
// screening session, used by the history review dashboard.
type ScreeningOutcome struct {
	SessionID    string    `json:"session_id"`
	StudentID    string    `json:"student_id"`
	PatientID    string    `json:"patient_id"`
	StudentName  string    `json:"student_name"`
	School       string    `json:"school"`
	Grade        string    `json:"grade"`
	Diagnosis    string    `json:"diagnosis"`
	NeedsGlasses bool      `json:"needs_glasses"`
	FrameCode    string    `json:"frame_code,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// OutcomeFromSession flattens a completed session into its searchable form.
// Student details come from the step data captured during the session; the
// directory record is not re-fetched.
func OutcomeFromSession(session *ScreeningSession, student *Student) *ScreeningOutcome {
	out := &ScreeningOutcome{
		SessionID:   session.ID,
		StudentID:   session.StudentID,
		CompletedAt: session.UpdatedAt,
	}
	if session.PatientID != nil {
		out.PatientID = *session.PatientID
	}
	if student != nil {
		out.StudentName = student.FullName()
		out.School = student.School
		out.Grade = student.Grade
	}
	if d := session.StepData.Diagnosis; d != nil {
		out.Diagnosis = d.Diagnosis
		out.NeedsGlasses = d.NeedsGlasses
	}
	if g := session.StepData.Glasses; g != nil {
		out.FrameCode = g.FrameCode
	}
	return out
}
