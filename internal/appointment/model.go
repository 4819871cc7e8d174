package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hopecann/scheduling/internal/availability"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type ConsultType string

const (
	ConsultVideo    ConsultType = "video"
	ConsultPhone    ConsultType = "phone"
	ConsultInPerson ConsultType = "in_person"
)

func (c ConsultType) Valid() bool {
	switch c {
	case ConsultVideo, ConsultPhone, ConsultInPerson:
		return true
	}
	return false
}

type Appointment struct {
	ID          uuid.UUID   `json:"id"`
	DoctorID    uuid.UUID   `json:"doctor_id"`
	PatientID   uuid.UUID   `json:"patient_id"`
	StartsAt    time.Time   `json:"starts_at"`
	Status      Status      `json:"status"`
	ConsultType ConsultType `json:"consult_type"`
	Reason      string      `json:"reason,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Details is the free-form part of a booking supplied by the patient.
type Details struct {
	ConsultType ConsultType `json:"consult_type"`
	Reason      string      `json:"reason,omitempty"`
	Notes       string      `json:"notes,omitempty"`
}

// BookingRequest targets one (doctor, date, time) slot.
type BookingRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      time.Time
	Time      availability.TimeOfDay
	Details   Details
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
