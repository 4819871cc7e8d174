package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the doctor-facing entry point for editing weekly availability.
// Every write goes through Store.UpdateTemplate so the availability flag is
// recomputed alongside the template.
type Service struct {
	store     Store
	window    Window
	partition Partition
	log       zerolog.Logger
}

func NewService(store Store, window Window, partition Partition, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		window:    window,
		partition: partition,
		log:       logger.With().Str("component", "availability").Logger(),
	}
}

func (s *Service) Window() Window       { return s.window }
func (s *Service) Partition() Partition { return s.partition }

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.store.GetDoctor(ctx, id)
}

// ListDoctors pages through doctors; onlyAvailable filters on the cached flag.
func (s *Service) ListDoctors(ctx context.Context, onlyAvailable bool, limit, offset int) ([]Doctor, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListDoctors(ctx, onlyAvailable, limit, offset)
}

// GetTemplate never fails for an unknown doctor; it returns an empty template.
func (s *Service) GetTemplate(ctx context.Context, doctorID uuid.UUID) (Template, error) {
	return s.store.GetTemplate(ctx, doctorID)
}

// SetDaySlots replaces the full time set for one weekday. Duplicates are
// dropped and the result is stored sorted.
func (s *Service) SetDaySlots(ctx context.Context, doctorID uuid.UUID, day Weekday, times []TimeOfDay) (Template, error) {
	if !day.Valid() {
		return Template{}, fmt.Errorf("%w: %d", ErrInvalidWeekday, int8(day))
	}
	for _, t := range times {
		if err := s.checkTime(t); err != nil {
			return Template{}, err
		}
	}
	return s.update(ctx, doctorID, "set_day", func(t Template) Template {
		return t.WithDay(day, times)
	})
}

// AddSlot is a no-op when the time is already present.
func (s *Service) AddSlot(ctx context.Context, doctorID uuid.UUID, day Weekday, tod TimeOfDay) (Template, error) {
	if !day.Valid() {
		return Template{}, fmt.Errorf("%w: %d", ErrInvalidWeekday, int8(day))
	}
	if err := s.checkTime(tod); err != nil {
		return Template{}, err
	}
	return s.update(ctx, doctorID, "add_slot", func(t Template) Template {
		return t.With(day, tod)
	})
}

// RemoveSlot is a no-op when the time is absent.
func (s *Service) RemoveSlot(ctx context.Context, doctorID uuid.UUID, day Weekday, tod TimeOfDay) (Template, error) {
	if !day.Valid() {
		return Template{}, fmt.Errorf("%w: %d", ErrInvalidWeekday, int8(day))
	}
	return s.update(ctx, doctorID, "remove_slot", func(t Template) Template {
		return t.Without(day, tod)
	})
}

func (s *Service) ToggleSlot(ctx context.Context, doctorID uuid.UUID, day Weekday, tod TimeOfDay) (Template, error) {
	if !day.Valid() {
		return Template{}, fmt.Errorf("%w: %d", ErrInvalidWeekday, int8(day))
	}
	if err := s.checkTime(tod); err != nil {
		return Template{}, err
	}
	return s.update(ctx, doctorID, "toggle_slot", func(t Template) Template {
		return ToggleSlot(t, day, tod)
	})
}

func (s *Service) ApplyPattern(ctx context.Context, doctorID uuid.UUID, p Pattern) (Template, error) {
	if err := p.Validate(); err != nil {
		return Template{}, err
	}
	return s.update(ctx, doctorID, "apply_pattern", func(t Template) Template {
		return ApplyPattern(t, p, s.partition)
	})
}

func (s *Service) checkTime(t TimeOfDay) error {
	if !s.window.Contains(t) {
		return fmt.Errorf("%w: %s is not a bookable start between %s and %s", ErrInvalidTime, t, s.window.Open, s.window.Close)
	}
	return nil
}

func (s *Service) update(ctx context.Context, doctorID uuid.UUID, op string, fn func(Template) Template) (Template, error) {
	t, err := s.store.UpdateTemplate(ctx, doctorID, fn)
	if err != nil {
		return Template{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug().
		Str("op", op).
		Str("doctor_id", doctorID.String()).
		Int("slots", t.Len()).
		Bool("available", t.Available()).
		Msg("template updated")
	return t, nil
}
