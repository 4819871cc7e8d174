package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.Available, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, Unavailable("scan doctor", err)
	}
	return &d, nil
}

func (s *PgStore) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, specialty, available, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

// CreateDoctor inserts a doctor with an empty template.
func (s *PgStore) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialty, available, created_at, updated_at)
		VALUES ($1, $2, $3, false, now(), now())
		RETURNING id, name, specialty, available, created_at, updated_at
	`, d.ID, d.Name, d.Specialty)
	return scanDoctor(row)
}

func (s *PgStore) ListDoctors(ctx context.Context, onlyAvailable bool, limit, offset int) ([]Doctor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, specialty, available, created_at, updated_at
		FROM doctors
		WHERE NOT $1 OR available
		ORDER BY name, id
		LIMIT $2 OFFSET $3
	`, onlyAvailable, limit, offset)
	if err != nil {
		return nil, Unavailable("list doctors", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable("list doctors", err)
	}
	return out, nil
}

func (s *PgStore) GetTemplate(ctx context.Context, doctorID uuid.UUID) (Template, error) {
	return loadTemplate(ctx, s.pool, doctorID)
}

func loadTemplate(ctx context.Context, q querier, doctorID uuid.UUID) (Template, error) {
	rows, err := q.Query(ctx, `
		SELECT weekday, times
		FROM doctor_availability
		WHERE doctor_id = $1
	`, doctorID)
	if err != nil {
		return Template{}, Unavailable("load template", err)
	}
	defer rows.Close()

	days := make(map[Weekday][]TimeOfDay)
	for rows.Next() {
		var (
			dayName string
			raw     []string
		)
		if err := rows.Scan(&dayName, &raw); err != nil {
			return Template{}, Unavailable("scan template day", err)
		}
		d, err := ParseWeekday(dayName)
		if err != nil {
			return Template{}, fmt.Errorf("stored template for %s: %w", doctorID, err)
		}
		times, err := ParseTimes(raw)
		if err != nil {
			return Template{}, fmt.Errorf("stored template for %s %s: %w", doctorID, d, err)
		}
		days[d] = times
	}
	if err := rows.Err(); err != nil {
		return Template{}, Unavailable("load template", err)
	}
	return NewTemplate(days), nil
}

func (s *PgStore) UpdateTemplate(ctx context.Context, doctorID uuid.UUID, fn func(Template) Template) (Template, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Template{}, Unavailable("begin template update", err)
	}
	defer tx.Rollback(ctx)

	// The doctor row lock orders concurrent edits of the same template.
	var id uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, doctorID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrDoctorNotFound
		}
		return Template{}, Unavailable("lock doctor", err)
	}

	current, err := loadTemplate(ctx, tx, doctorID)
	if err != nil {
		return Template{}, err
	}
	next := fn(current)

	for _, d := range next.ChangedDays(current) {
		_, err := tx.Exec(ctx, `
			INSERT INTO doctor_availability (doctor_id, weekday, times, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (doctor_id, weekday)
			DO UPDATE SET times = EXCLUDED.times, updated_at = now()
		`, doctorID, d.String(), FormatTimes(next.Times(d)))
		if err != nil {
			return Template{}, Unavailable("write template day", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE doctors
		SET available = $2,
		    updated_at = now()
		WHERE id = $1
	`, doctorID, next.Available())
	if err != nil {
		return Template{}, Unavailable("update availability flag", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Template{}, Unavailable("commit template update", err)
	}
	return next, nil
}
