package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hopecann/scheduling/internal/availability"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

const patientColumns = `id, user_id, name, email, phone, date_of_birth, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var userID, email, phone *string
	if err := row.Scan(&p.ID, &userID, &p.Name, &email, &phone, &p.DateOfBirth, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, availability.Unavailable("scan patient", err)
	}
	if userID != nil {
		p.UserID = *userID
	}
	if email != nil {
		p.Email = *email
	}
	if phone != nil {
		p.Phone = *phone
	}
	return &p, nil
}

func (d *PgDirectory) PatientByUserID(ctx context.Context, userID string) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE user_id = $1`, userID)
	return scanPatient(row)
}

func (d *PgDirectory) PatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	return scanPatient(row)
}

// SavePatient inserts or updates a patient keyed by id.
func (d *PgDirectory) SavePatient(ctx context.Context, p Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO patients (id, user_id, name, email, phone, date_of_birth, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    phone = EXCLUDED.phone,
		    date_of_birth = EXCLUDED.date_of_birth,
		    updated_at = now()
	`, p.ID, p.UserID, p.Name, p.Email, p.Phone, p.DateOfBirth)
	if err != nil {
		return availability.Unavailable("save patient", err)
	}
	return nil
}
