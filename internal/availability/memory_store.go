package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single instance demos.
type MemoryStore struct {
	mu        sync.RWMutex
	doctors   map[uuid.UUID]*Doctor
	templates map[uuid.UUID]Template
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:   make(map[uuid.UUID]*Doctor),
		templates: make(map[uuid.UUID]Template),
	}
}

// AddDoctor registers a doctor. The availability flag is derived from any
// template already stored for the id.
func (m *MemoryStore) AddDoctor(d Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	d.Available = m.templates[d.ID].Available()
	m.doctors[d.ID] = &d
}

func (m *MemoryStore) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) ListDoctors(_ context.Context, onlyAvailable bool, limit, offset int) ([]Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Doctor
	for _, d := range m.doctors {
		if onlyAvailable && !d.Available {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) GetTemplate(_ context.Context, doctorID uuid.UUID) (Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.templates[doctorID], nil
}

func (m *MemoryStore) UpdateTemplate(_ context.Context, doctorID uuid.UUID, fn func(Template) Template) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.doctors[doctorID]
	if !ok {
		return Template{}, ErrDoctorNotFound
	}
	next := fn(m.templates[doctorID])
	m.templates[doctorID] = next
	d.Available = next.Available()
	d.UpdatedAt = time.Now()
	return next, nil
}
