package appointment

import (
	"github.com/google/uuid"

	"github.com/hopecann/scheduling/internal/slots"
)

// AvailableSlots drops every candidate whose start instant matches a
// scheduled appointment of doctorID. Cancelled and completed appointments
// never exclude a slot. Candidate order is preserved.
func AvailableSlots(doctorID uuid.UUID, candidates []slots.Slot, booked []Appointment) []slots.Slot {
	taken := make(map[int64]struct{}, len(booked))
	for _, a := range booked {
		if a.DoctorID != doctorID || a.Status != StatusScheduled {
			continue
		}
		taken[a.StartsAt.Unix()] = struct{}{}
	}

	out := make([]slots.Slot, 0, len(candidates))
	for _, c := range candidates {
		if c.DoctorID != doctorID {
			continue
		}
		if _, ok := taken[c.Start().Unix()]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}
