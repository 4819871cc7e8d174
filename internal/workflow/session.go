package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/hopecann/scheduling/internal/appointment"
	"github.com/hopecann/scheduling/internal/availability"
)

type Step string

const (
	StepSelectDoctor        Step = "select_doctor"
	StepSelectDateTime      Step = "select_datetime"
	StepSelectConsultType   Step = "select_consult_type"
	StepEnterPatientDetails Step = "enter_patient_details"
	StepLoginRequired       Step = "login_required"
	StepConfirmed           Step = "confirmed"
)

// Notices explain why a session moved backwards.
const (
	NoticeSlotTaken         = "slot_already_booked"
	NoticeSlotUnavailable   = "invalid_slot"
	NoticeProfileIncomplete = "patient_profile_incomplete"
	NoticeLoginRequired     = "login_required"
)

// PatientForm is what the patient typed on the details step. It survives
// every failed confirm and the login detour.
type PatientForm struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Session is one patient's in-progress booking journey.
type Session struct {
	ID            uuid.UUID                `json:"id"`
	Step          Step                     `json:"step"`
	DoctorID      *uuid.UUID               `json:"doctor_id,omitempty"`
	Date          string                   `json:"date,omitempty"`
	Time          *availability.TimeOfDay  `json:"time,omitempty"`
	ConsultType   appointment.ConsultType  `json:"consult_type,omitempty"`
	Form          *PatientForm             `json:"form,omitempty"`
	UserID        string                   `json:"user_id,omitempty"`
	Notice        string                   `json:"notice,omitempty"`
	AppointmentID *uuid.UUID               `json:"appointment_id,omitempty"`
	Appointment   *appointment.Appointment `json:"appointment,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}
