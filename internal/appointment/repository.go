package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrSlotAlreadyBooked       = errors.New("slot already has a scheduled appointment")
	ErrInvalidSlot             = errors.New("slot is not in the doctor's current availability")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrConstraintViolation is a permanent storage rejection such as a
	// reference to a missing patient. Retrying cannot succeed.
	ErrConstraintViolation = errors.New("appointment violates a storage constraint")
)

// Repository is the appointment store consumed by the booking service.
type Repository interface {
	// FindScheduled returns scheduled appointments for doctorID starting in [from, to).
	FindScheduled(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// InsertIfAbsent inserts appt only if no scheduled appointment exists for
	// (appt.DoctorID, appt.StartsAt). It returns ErrSlotAlreadyBooked when the
	// key is taken. Check and insert are a single atomic step.
	InsertIfAbsent(ctx context.Context, appt Appointment) (*Appointment, error)

	// UpdateStatus moves an appointment from one status to another and fails
	// with ErrAppointmentNotFound if it is not currently in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
