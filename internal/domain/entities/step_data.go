package entities

import (
	"time"
)

// StepData holds the captured form state for each workflow step. Exactly one
// variant exists per step; a nil variant means the step has not captured data
// yet. Merging is append-only per step: an incoming variant replaces its own
// slot and never clears the others.
type StepData struct {
	Appointment  *AppointmentData  `json:"appointment,omitempty" db:"appointment"`
	Consent      *ConsentData      `json:"consent,omitempty" db:"consent"`
	Registration *RegistrationData `json:"registration,omitempty" db:"registration"`
	Acuity       *AcuityData       `json:"acuity,omitempty" db:"acuity"`
	Diagnosis    *DiagnosisData    `json:"diagnosis,omitempty" db:"diagnosis"`
	Glasses      *GlassesData      `json:"glasses,omitempty" db:"glasses"`
	Inventory    *InventoryData    `json:"inventory,omitempty" db:"inventory"`
	Delivery     *DeliveryData     `json:"delivery,omitempty" db:"delivery"`
}

// AppointmentData is captured at the appointment scheduling step.
type AppointmentData struct {
	ScheduledAt  time.Time `json:"scheduled_at"`
	MobileUnitID string    `json:"mobile_unit_id"`
	Location     string    `json:"location"`
}

// ConsentData records the parent/guardian consent decision.
type ConsentData struct {
	Granted      bool      `json:"granted"`
	GuardianName string    `json:"guardian_name"`
	Method       string    `json:"method"` // "paper", "phone", "digital"
	ConsentedAt  time.Time `json:"consented_at"`
}

// RegistrationData carries contact details entered while registering the
// student as a patient. The resulting patient id lives on the session itself.
type RegistrationData struct {
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Note    string `json:"note"`
}

// AcuityData holds visual acuity measurements per eye (Snellen notation).
type AcuityData struct {
	RightEye        string `json:"right_eye"`
	LeftEye         string `json:"left_eye"`
	RightEyePinhole string `json:"right_eye_pinhole,omitempty"`
	LeftEyePinhole  string `json:"left_eye_pinhole,omitempty"`
	WearsGlasses    bool   `json:"wears_glasses"`
}

// DiagnosisData is entered by the screening doctor.
type DiagnosisData struct {
	DoctorName    string  `json:"doctor_name"`
	Diagnosis     string  `json:"diagnosis"`
	NeedsGlasses  bool    `json:"needs_glasses"`
	RightSphere   float64 `json:"right_sphere"`
	RightCylinder float64 `json:"right_cylinder"`
	RightAxis     int     `json:"right_axis"`
	LeftSphere    float64 `json:"left_sphere"`
	LeftCylinder  float64 `json:"left_cylinder"`
	LeftAxis      int     `json:"left_axis"`
}

// GlassesData records the frame and lens chosen by the student.
type GlassesData struct {
	FrameCode string `json:"frame_code"`
	LensType  string `json:"lens_type"`
	Color     string `json:"color"`
	Notes     string `json:"notes,omitempty"`
}

// InventoryData records the stock reservation made for the chosen frame.
type InventoryData struct {
	ReservationID string `json:"reservation_id"`
	FrameCode     string `json:"frame_code"`
	InStock       bool   `json:"in_stock"`
}

// DeliveryMethod is how completed glasses reach the student.
type DeliveryMethod string

const (
	DeliveryMethodSchool DeliveryMethod = "school"
	DeliveryMethodHome   DeliveryMethod = "home"
	DeliveryMethodPickup DeliveryMethod = "pickup"
)

// DeliveryData is captured at the school delivery step.
type DeliveryData struct {
	Method        DeliveryMethod `json:"method"`
	SchoolContact string         `json:"school_contact"`
	ContactPhone  string         `json:"contact_phone,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
}

// Merge applies incoming step data on top of the existing data. Only variants
// present in the incoming value are replaced; existing variants are never
// cleared, so backward navigation cannot drop captured state.
func (d *StepData) Merge(in StepData) {
	if in.Appointment != nil {
		d.Appointment = in.Appointment
	}
	if in.Consent != nil {
		d.Consent = in.Consent
	}
	if in.Registration != nil {
		d.Registration = in.Registration
	}
	if in.Acuity != nil {
		d.Acuity = in.Acuity
	}
	if in.Diagnosis != nil {
		d.Diagnosis = in.Diagnosis
	}
	if in.Glasses != nil {
		d.Glasses = in.Glasses
	}
	if in.Inventory != nil {
		d.Inventory = in.Inventory
	}
	if in.Delivery != nil {
		d.Delivery = in.Delivery
	}
}

// HasDataFor reports whether the step has captured any data.
func (d *StepData) HasDataFor(step Step) bool {
	switch step {
	case StepAppointmentSchedule:
		return d.Appointment != nil
	case StepParentConsent:
		return d.Consent != nil
	case StepStudentRegistration:
		return d.Registration != nil
	case StepVAScreening:
		return d.Acuity != nil
	case StepDoctorDiagnosis:
		return d.Diagnosis != nil
	case StepGlassesSelection:
		return d.Glasses != nil
	case StepInventoryCheck:
		return d.Inventory != nil
	case StepSchoolDelivery:
		return d.Delivery != nil
	}
	return false
}
