package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnauthenticated          = errors.New("no authenticated patient identity")
	ErrPatientProfileIncomplete = errors.New("patient profile is incomplete")
	ErrPatientNotFound          = errors.New("patient not found")
)

// Patient is the profile linked to an authenticated user.
type Patient struct {
	ID          uuid.UUID  `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Missing lists the required identity fields that are empty.
func (p *Patient) Missing() []string {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Phone) == "" {
		missing = append(missing, "phone")
	}
	if p.DateOfBirth == nil || p.DateOfBirth.IsZero() {
		missing = append(missing, "date_of_birth")
	}
	return missing
}

type Directory interface {
	PatientByUserID(ctx context.Context, userID string) (*Patient, error)
	PatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// Provider resolves session identities to bookable patients.
type Provider struct {
	dir Directory
}

func NewProvider(dir Directory) *Provider {
	return &Provider{dir: dir}
}

// ResolvePatientID maps an authenticated user id to the linked patient. A user
// without a linked or complete profile yields ErrPatientProfileIncomplete.
func (p *Provider) ResolvePatientID(ctx context.Context, userID string) (uuid.UUID, error) {
	if userID == "" {
		return uuid.Nil, ErrUnauthenticated
	}
	patient, err := p.dir.PatientByUserID(ctx, userID)
	if errors.Is(err, ErrPatientNotFound) {
		return uuid.Nil, fmt.Errorf("%w: no patient linked to user %s", ErrPatientProfileIncomplete, userID)
	}
	if err != nil {
		return uuid.Nil, err
	}
	if err := complete(patient); err != nil {
		return uuid.Nil, err
	}
	return patient.ID, nil
}

// CheckPatient verifies a known patient id has a complete profile.
func (p *Provider) CheckPatient(ctx context.Context, patientID uuid.UUID) error {
	patient, err := p.dir.PatientByID(ctx, patientID)
	if errors.Is(err, ErrPatientNotFound) {
		return fmt.Errorf("%w: patient %s has no profile", ErrPatientProfileIncomplete, patientID)
	}
	if err != nil {
		return err
	}
	return complete(patient)
}

func complete(p *Patient) error {
	if missing := p.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrPatientProfileIncomplete, strings.Join(missing, ", "))
	}
	return nil
}
