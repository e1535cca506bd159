package entities

import (
	"fmt"
)

// Step identifies a stage in the screening workflow. Values are ordinal
// indexes into the fixed step sequence.
type Step int

const (
	StepAppointmentSchedule Step = iota
	StepParentConsent
	StepStudentRegistration
	StepVAScreening
	StepDoctorDiagnosis
	StepGlassesSelection
	StepInventoryCheck
	StepSchoolDelivery
)

var stepNames = [...]string{
	"appointment_schedule",
	"parent_consent",
	"student_registration",
	"va_screening",
	"doctor_diagnosis",
	"glasses_selection",
	"inventory_check",
	"school_delivery",
}

// StepCount is the length of the fixed step sequence.
const StepCount = len(stepNames)

// LastStep returns the final step of the sequence.
func LastStep() Step {
	return Step(StepCount - 1)
}

// IsValid reports whether the step is within the fixed sequence.
func (s Step) IsValid() bool {
	return s >= 0 && int(s) < StepCount
}

// String returns the step's wire name.
func (s Step) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// StepFromName resolves a wire name back to a Step.
func StepFromName(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step name: %q", name)
}

// StepSequence returns the ordered step names, primarily for API consumers
// that render the wizard stepper.
func StepSequence() []string {
	seq := make([]string, StepCount)
	copy(seq, stepNames[:])
	return seq
}
