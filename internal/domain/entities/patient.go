package entities

import (
	"time"
)

// Fallback contact values used when the originating student record carries no
// phone or email. They are fixed constants so repeated registrations of the
// same student produce byte-identical creation requests.
const (
	FallbackPatientPhone = "0000000000"
	FallbackPatientEmail = "unknown@screening.invalid"
)

// Patient is the durable clinical identity created from exactly one student
// record by the external Patient Registration Service. StudentID is the
// optional back-reference to the originating directory record.
type Patient struct {
	ID          string     `json:"id"`
	StudentID   *string    `json:"student_id,omitempty"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CitizenID   string     `json:"citizen_id,omitempty"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PatientDraft is the creation request sent to the registration service when
// no patient exists for a student yet. NewPatientDraft fills contact fields
// deterministically from the student record.
type PatientDraft struct {
	StudentID   string     `json:"student_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CitizenID   string     `json:"citizen_id,omitempty"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
}

// NewPatientDraft builds a creation request from a student record, applying
// the documented fallback contact defaults. Contact may carry values entered
// by the operator at the registration step; it is consulted before falling
// back.
func NewPatientDraft(student *Student, contact *RegistrationData) PatientDraft {
	draft := PatientDraft{
		StudentID:   student.ID,
		FirstName:   student.FirstName,
		LastName:    student.LastName,
		DateOfBirth: student.DateOfBirth,
		CitizenID:   student.CitizenID,
		Phone:       FallbackPatientPhone,
		Email:       FallbackPatientEmail,
	}
	if contact != nil {
		if contact.Phone != "" {
			draft.Phone = contact.Phone
		}
		if contact.Email != "" {
			draft.Email = contact.Email
		}
	}
	return draft
}
