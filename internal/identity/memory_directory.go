package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type MemoryDirectory struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]Patient
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{patients: make(map[uuid.UUID]Patient)}
}

func (d *MemoryDirectory) SavePatient(_ context.Context, p Patient) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	d.patients[p.ID] = p
	return nil
}

func (d *MemoryDirectory) PatientByUserID(_ context.Context, userID string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.patients {
		if p.UserID == userID {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (d *MemoryDirectory) PatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}
