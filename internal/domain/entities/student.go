package entities

import (
	"time"
)

// ScreeningStatus is the directory's view of how far a student has come in
// the screening program.
type ScreeningStatus string

const (
	ScreeningStatusNotScreened ScreeningStatus = "not_screened"
	ScreeningStatusInProgress  ScreeningStatus = "in_progress"
	ScreeningStatusScreened    ScreeningStatus = "screened"
)

// Student is a read-only record owned by the external Directory Service.
// ID is the canonical identifier; legacy directory payloads that still send
// `_id` are normalized on decode by the directory adapter.
type Student struct {
	ID              string          `json:"id"`
	CitizenID       string          `json:"citizen_id,omitempty"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	DateOfBirth     *time.Time      `json:"date_of_birth,omitempty"`
	School          string          `json:"school"`
	Grade           string          `json:"grade"`
	ConsentOnFile   bool            `json:"consent_on_file"`
	ScreeningStatus ScreeningStatus `json:"screening_status"`
}

// FullName joins the student's name parts for display and indexing.
func (s *Student) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
