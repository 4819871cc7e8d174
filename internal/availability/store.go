package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists weekly templates and the doctor availability flag derived from them.
type Store interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, onlyAvailable bool, limit, offset int) ([]Doctor, error)

	// GetTemplate returns an empty template when nothing has been stored.
	GetTemplate(ctx context.Context, doctorID uuid.UUID) (Template, error)

	// UpdateTemplate runs fn over the current template and persists the
	// changed weekdays together with the recomputed availability flag in a
	// single write.
	UpdateTemplate(ctx context.Context, doctorID uuid.UUID, fn func(Template) Template) (Template, error)
}
