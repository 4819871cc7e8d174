package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hopecann/scheduling/internal/availability"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const scheduledSlotIndex = "appointments_scheduled_slot"

// storeError separates permanent integrity violations (SQLSTATE class 23)
// from transient failures, which callers may retry.
func storeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		if pgErr.Code == "23505" && pgErr.ConstraintName == scheduledSlotIndex {
			return ErrSlotAlreadyBooked
		}
		return fmt.Errorf("%w: %s: %s (%s)", ErrConstraintViolation, op, pgErr.ConstraintName, pgErr.Code)
	}
	return availability.Unavailable(op, err)
}

const appointmentColumns = `id, doctor_id, patient_id, starts_at, status, consult_type, reason, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var reason, notes *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.StartsAt,
		&a.Status,
		&a.ConsultType,
		&reason,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, storeError("scan appointment", err)
	}

	if reason != nil {
		a.Reason = *reason
	}
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, availability.Unavailable("read appointments", err)
	}
	return result, nil
}

func (r *PgRepository) FindScheduled(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status = 'scheduled'
		  AND starts_at >= $2
		  AND starts_at < $3
		ORDER BY starts_at
	`, doctorID, from, to)
	if err != nil {
		return nil, availability.Unavailable("find scheduled appointments", err)
	}
	return collectAppointments(rows)
}

// InsertIfAbsent relies on the partial unique index
// appointments_scheduled_slot (doctor_id, starts_at) WHERE status = 'scheduled'.
// A lost race inserts nothing and returns no row.
func (r *PgRepository) InsertIfAbsent(ctx context.Context, appt Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, starts_at, status, consult_type, reason, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'scheduled', $5, NULLIF($6, ''), NULLIF($7, ''), now(), now())
		ON CONFLICT (doctor_id, starts_at) WHERE status = 'scheduled' DO NOTHING
		RETURNING `+appointmentColumns,
		appt.ID, appt.DoctorID, appt.PatientID, appt.StartsAt, appt.ConsultType, appt.Reason, appt.Notes)

	created, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrSlotAlreadyBooked
	}
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY starts_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, availability.Unavailable("list appointments by patient", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return storeError("insert event log", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
