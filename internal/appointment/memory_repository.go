package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository. A single mutex makes
// InsertIfAbsent atomic, mirroring the partial unique index in Postgres.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	scheduled    map[scheduledKey]uuid.UUID
	events       []EventLog
}

type scheduledKey struct {
	doctorID uuid.UUID
	unix     int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
		scheduled:    make(map[scheduledKey]uuid.UUID),
	}
}

func keyOf(a *Appointment) scheduledKey {
	return scheduledKey{doctorID: a.DoctorID, unix: a.StartsAt.Unix()}
}

func (m *MemoryRepository) FindScheduled(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Appointment
	for _, a := range m.appointments {
		if a.DoctorID != doctorID || a.Status != StatusScheduled {
			continue
		}
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *MemoryRepository) InsertIfAbsent(_ context.Context, appt Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := keyOf(&appt)
	if _, taken := m.scheduled[k]; taken {
		return nil, ErrSlotAlreadyBooked
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now()
	appt.Status = StatusScheduled
	appt.CreatedAt = now
	appt.UpdatedAt = now

	stored := appt
	m.appointments[appt.ID] = &stored
	m.scheduled[k] = appt.ID
	return &appt, nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	if from == StatusScheduled && to != StatusScheduled {
		delete(m.scheduled, keyOf(a))
	}
	if to == StatusScheduled {
		if _, taken := m.scheduled[keyOf(a)]; taken {
			return nil, ErrSlotAlreadyBooked
		}
		m.scheduled[keyOf(a)] = a.ID
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EventLog(nil), m.events...)
}
