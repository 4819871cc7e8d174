package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/notify"
	redisclient "github.com/hopecann/scheduling/internal/redis"
	"github.com/hopecann/scheduling/internal/slots"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var ErrInvalidConsultType = errors.New("invalid consult type")

// PatientChecker reports whether a patient may book. It returns
// identity.ErrPatientProfileIncomplete for profiles missing required fields.
type PatientChecker interface {
	CheckPatient(ctx context.Context, patientID uuid.UUID) error
}

type Options struct {
	Clock    slots.Clock
	Location *time.Location
	Horizon  slots.Horizon
	// BookingTimeout bounds a whole AttemptBooking call, lock wait included.
	BookingTimeout time.Duration
}

// Service reconciles projected availability with booked appointments and
// commits bookings.
type Service struct {
	repo     Repository
	doctors  availability.Store
	patients PatientChecker
	locker   redisclient.Locker
	notifier notify.Notifier
	clock    slots.Clock
	loc      *time.Location
	horizon  slots.Horizon
	timeout  time.Duration
	log      zerolog.Logger
}

func NewService(repo Repository, doctors availability.Store, patients PatientChecker, locker redisclient.Locker, notifier notify.Notifier, opts Options, logger zerolog.Logger) *Service {
	if opts.Clock == nil {
		opts.Clock = slots.SystemClock{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Horizon.Days == 0 {
		opts.Horizon = slots.DefaultHorizon
	}
	return &Service{
		repo:     repo,
		doctors:  doctors,
		patients: patients,
		locker:   locker,
		notifier: notifier,
		clock:    opts.Clock,
		loc:      opts.Location,
		horizon:  opts.Horizon,
		timeout:  opts.BookingTimeout,
		log:      logger.With().Str("component", "booking").Logger(),
	}
}

func (s *Service) Horizon() slots.Horizon   { return s.horizon }
func (s *Service) Location() *time.Location { return s.loc }

// HorizonStart is the first bookable date of the default horizon.
func (s *Service) HorizonStart() time.Time { return s.horizon.Start(s.clock, s.loc) }

// ListAvailable projects the doctor's template over days calendar days from
// start and removes slots that already hold a scheduled appointment.
func (s *Service) ListAvailable(ctx context.Context, doctorID uuid.UUID, start time.Time, days int, excludeWeekends bool) ([]slots.Slot, error) {
	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	tpl, err := s.doctors.GetTemplate(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	start = calendarDate(start, s.loc)
	candidates := slots.Project(doctorID, tpl, start, days, excludeWeekends)
	if len(candidates) == 0 {
		return candidates, nil
	}

	booked, err := s.repo.FindScheduled(ctx, doctorID, start, start.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return AvailableSlots(doctorID, candidates, booked), nil
}

// ListUpcoming is ListAvailable over the configured default horizon.
func (s *Service) ListUpcoming(ctx context.Context, doctorID uuid.UUID) ([]slots.Slot, error) {
	return s.ListAvailable(ctx, doctorID, s.HorizonStart(), s.horizon.Days, s.horizon.ExcludeWeekends)
}

// AttemptBooking commits a booking for one slot. The existence check and the
// insert run under a per-slot lock, and the repository insert itself is
// conditional, so concurrent attempts on the same slot yield exactly one
// appointment. A retry by the patient who already holds the slot returns
// their existing appointment.
func (s *Service) AttemptBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	appt, err := s.attemptBooking(ctx, req)
	if err != nil {
		if !errors.Is(err, availability.ErrStoreUnavailable) &&
			(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redisclient.ErrLockNotAcquired)) {
			err = availability.Unavailable("attempt booking", err)
		}
		s.log.Info().Err(err).
			Str("doctor_id", req.DoctorID.String()).
			Str("patient_id", req.PatientID.String()).
			Msg("booking rejected")
		return nil, err
	}
	return appt, nil
}

func (s *Service) attemptBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.Details.ConsultType == "" {
		req.Details.ConsultType = ConsultVideo
	}
	if !req.Details.ConsultType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidConsultType, req.Details.ConsultType)
	}

	if _, err := s.doctors.GetDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}
	if err := s.patients.CheckPatient(ctx, req.PatientID); err != nil {
		return nil, err
	}

	startsAt, err := s.validateSlot(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		result   *Appointment
		replayed bool
	)
	err = s.locker.WithSlotLock(ctx, redisclient.SlotKey(req.DoctorID, startsAt), func(lockCtx context.Context) error {
		existing, err := s.repo.FindScheduled(lockCtx, req.DoctorID, startsAt, startsAt.Add(time.Second))
		if err != nil {
			return fmt.Errorf("check scheduled appointment: %w", err)
		}
		for i := range existing {
			if !existing[i].StartsAt.Equal(startsAt) {
				continue
			}
			if existing[i].PatientID == req.PatientID {
				result, replayed = &existing[i], true
				return nil
			}
			return ErrSlotAlreadyBooked
		}

		created, err := s.repo.InsertIfAbsent(lockCtx, Appointment{
			DoctorID:    req.DoctorID,
			PatientID:   req.PatientID,
			StartsAt:    startsAt,
			ConsultType: req.Details.ConsultType,
			Reason:      req.Details.Reason,
			Notes:       req.Details.Notes,
		})
		if err != nil {
			return err
		}
		result = created

		s.logEvent(lockCtx, created.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":    created.DoctorID,
			"patient_id":   created.PatientID,
			"starts_at":    created.StartsAt,
			"consult_type": created.ConsultType,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		s.log.Info().
			Str("appointment_id", result.ID.String()).
			Msg("booking replay returned existing appointment")
		return result, nil
	}

	s.log.Info().
		Str("event", EventAppointmentBooked).
		Str("appointment_id", result.ID.String()).
		Str("doctor_id", result.DoctorID.String()).
		Time("starts_at", result.StartsAt).
		Msg("appointment booked")

	s.notify(ctx, notify.TopicAppointmentBooked, result)
	return result, nil
}

// validateSlot rejects selections that the current template and horizon do
// not offer, and returns the slot's start instant.
func (s *Service) validateSlot(ctx context.Context, req BookingRequest) (time.Time, error) {
	if !req.Time.Valid() {
		return time.Time{}, fmt.Errorf("%w: time %d out of range", ErrInvalidSlot, int(req.Time))
	}

	date := calendarDate(req.Date, s.loc)
	if !s.horizon.Contains(date, s.clock, s.loc) {
		return time.Time{}, fmt.Errorf("%w: %s is outside the booking horizon", ErrInvalidSlot, date.Format(time.DateOnly))
	}

	tpl, err := s.doctors.GetTemplate(ctx, req.DoctorID)
	if err != nil {
		return time.Time{}, err
	}
	if !tpl.Has(availability.WeekdayOf(date), req.Time) {
		return time.Time{}, fmt.Errorf("%w: doctor does not offer %s on %s", ErrInvalidSlot, req.Time, availability.WeekdayOf(date))
	}

	startsAt := req.Time.On(date)
	if !startsAt.After(s.clock.Now()) {
		return time.Time{}, fmt.Errorf("%w: %s is in the past", ErrInvalidSlot, startsAt.Format(time.RFC3339))
	}
	return startsAt, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.finish(ctx, id, StatusCancelled, EventAppointmentCancelled, notify.TopicAppointmentCancelled)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.finish(ctx, id, StatusCompleted, EventAppointmentCompleted, notify.TopicAppointmentCompleted)
}

// finish moves a scheduled appointment into a terminal status. Cancelling
// frees the (doctor, start) pair for rebooking; the row is kept.
func (s *Service) finish(ctx context.Context, id uuid.UUID, to Status, eventType, topic string) (*Appointment, error) {
	updated, err := s.repo.UpdateStatus(ctx, id, StatusScheduled, to)
	if errors.Is(err, ErrAppointmentNotFound) {
		if _, getErr := s.repo.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidStatusTransition
	}
	if err != nil {
		return nil, fmt.Errorf("%s appointment: %w", to, err)
	}

	s.logEvent(ctx, updated.ID, eventType, map[string]any{"status": to})
	s.notify(ctx, topic, updated)
	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) notify(ctx context.Context, topic string, a *Appointment) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, notify.Event{
		Topic:         topic,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		StartsAt:      a.StartsAt,
		ConsultType:   string(a.ConsultType),
		OccurredAt:    s.clock.Now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Str("appointment_id", a.ID.String()).Msg("notify failed")
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Str("appointment_id", appointmentID.String()).Msg("insert event log")
	}
}

// calendarDate keeps the calendar date of t as written and anchors it at
// midnight in loc.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
