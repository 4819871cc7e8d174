package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/appointment"
	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/identity"
	"github.com/hopecann/scheduling/internal/slots"
)

var (
	// ErrGuard is returned when a transition's precondition is not met.
	ErrGuard = errors.New("transition not allowed")
	// ErrLoginRequired means the session was parked at StepLoginRequired and
	// can be resumed with Confirm once the patient is authenticated.
	ErrLoginRequired = errors.New("login required to confirm booking")
	// ErrSessionOwner is returned when a session started by one patient is
	// confirmed by another.
	ErrSessionOwner = errors.New("booking session belongs to another user")
)

// Booker is the part of the booking service the workflow drives.
type Booker interface {
	ListUpcoming(ctx context.Context, doctorID uuid.UUID) ([]slots.Slot, error)
	AttemptBooking(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
}

type PatientResolver interface {
	ResolvePatientID(ctx context.Context, userID string) (uuid.UUID, error)
}

// State is a session plus the slot list the current step renders.
type State struct {
	*Session
	Slots []slots.Slot `json:"slots,omitempty"`
}

type Options struct {
	// AskConsultType enables the optional consult type step.
	AskConsultType bool
	Location       *time.Location
	Clock          slots.Clock
}

type Manager struct {
	booking  Booker
	patients PatientResolver
	store    SessionStore
	opts     Options
	log      zerolog.Logger
}

func NewManager(booking Booker, patients PatientResolver, store SessionStore, opts Options, logger zerolog.Logger) *Manager {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = slots.SystemClock{}
	}
	return &Manager{
		booking:  booking,
		patients: patients,
		store:    store,
		opts:     opts,
		log:      logger.With().Str("component", "workflow").Logger(),
	}
}

func (m *Manager) Start(ctx context.Context) (*State, error) {
	now := m.opts.Clock.Now()
	s := &Session{
		ID:        uuid.New(),
		Step:      StepSelectDoctor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return &State{Session: s}, nil
}

// Get returns the session, refreshing the slot list when it is on the date
// and time step.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*State, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &State{Session: s}
	if s.Step == StepSelectDateTime && s.DoctorID != nil {
		if st.Slots, err = m.booking.ListUpcoming(ctx, *s.DoctorID); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (m *Manager) SelectDoctor(ctx context.Context, id, doctorID uuid.UUID) (*State, error) {
	s, err := m.load(ctx, id, StepSelectDoctor, StepSelectDateTime)
	if err != nil {
		return nil, err
	}
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: a doctor must be selected", ErrGuard)
	}

	list, err := m.booking.ListUpcoming(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	if s.DoctorID == nil || *s.DoctorID != doctorID {
		s.Date, s.Time = "", nil
	}
	s.DoctorID = &doctorID
	s.Step = StepSelectDateTime
	s.Notice = ""
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	return &State{Session: s, Slots: list}, nil
}

func (m *Manager) SelectDateTime(ctx context.Context, id uuid.UUID, date string, tod *availability.TimeOfDay) (*State, error) {
	s, err := m.load(ctx, id, StepSelectDateTime)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(date) == "" || tod == nil {
		return nil, fmt.Errorf("%w: both a date and a time must be selected", ErrGuard)
	}
	d, err := slots.ParseDate(date, m.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q: %w", ErrGuard, date, err)
	}
	if !tod.Valid() {
		return nil, fmt.Errorf("%w: time %s", ErrGuard, tod)
	}

	t := *tod
	s.Date = d.Format(time.DateOnly)
	s.Time = &t
	s.Notice = ""
	if m.opts.AskConsultType {
		s.Step = StepSelectConsultType
	} else {
		if s.ConsultType == "" {
			s.ConsultType = appointment.ConsultVideo
		}
		s.Step = StepEnterPatientDetails
	}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	return &State{Session: s}, nil
}

func (m *Manager) SelectConsultType(ctx context.Context, id uuid.UUID, ct appointment.ConsultType) (*State, error) {
	s, err := m.load(ctx, id, StepSelectConsultType)
	if err != nil {
		return nil, err
	}
	if !ct.Valid() {
		return nil, fmt.Errorf("%w: consult type %q", ErrGuard, ct)
	}
	s.ConsultType = ct
	s.Step = StepEnterPatientDetails
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	return &State{Session: s}, nil
}

// EnterPatientDetails records the form. The session stays on the details
// step until Confirm succeeds.
func (m *Manager) EnterPatientDetails(ctx context.Context, id uuid.UUID, form PatientForm) (*State, error) {
	s, err := m.load(ctx, id, StepEnterPatientDetails, StepLoginRequired)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(form.Name) == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrGuard)
	}
	s.Form = &form
	s.Step = StepEnterPatientDetails
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	return &State{Session: s}, nil
}

// Back moves one step towards the start. Selections already made are kept.
func (m *Manager) Back(ctx context.Context, id uuid.UUID) (*State, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch s.Step {
	case StepSelectDateTime:
		s.Step = StepSelectDoctor
	case StepSelectConsultType:
		s.Step = StepSelectDateTime
	case StepEnterPatientDetails:
		if m.opts.AskConsultType {
			s.Step = StepSelectConsultType
		} else {
			s.Step = StepSelectDateTime
		}
	case StepLoginRequired:
		s.Step = StepEnterPatientDetails
	default:
		return nil, fmt.Errorf("%w: cannot go back from %s", ErrGuard, s.Step)
	}
	s.Notice = ""
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	return m.Get(ctx, id)
}

// Confirm commits the booking for the authenticated userID. It is also the
// resume entry point after a login detour. With no userID the session is
// parked at StepLoginRequired and ErrLoginRequired is returned.
//
// On a lost race or stale slot the session returns to StepSelectDateTime with
// the time cleared and a fresh slot list; the returned State and the error
// are both non-nil. The patient form is never discarded.
func (m *Manager) Confirm(ctx context.Context, id uuid.UUID, userID string) (*State, error) {
	s, err := m.load(ctx, id, StepEnterPatientDetails, StepLoginRequired)
	if err != nil {
		return nil, err
	}
	if s.DoctorID == nil || s.Date == "" || s.Time == nil {
		return nil, fmt.Errorf("%w: doctor, date and time must be selected", ErrGuard)
	}
	if s.Form == nil {
		return nil, fmt.Errorf("%w: patient details must be entered", ErrGuard)
	}

	if userID == "" {
		s.Step = StepLoginRequired
		s.Notice = NoticeLoginRequired
		if err := m.save(ctx, s); err != nil {
			return nil, err
		}
		return &State{Session: s}, ErrLoginRequired
	}
	if s.UserID != "" && s.UserID != userID {
		m.log.Warn().Str("session_id", s.ID.String()).Msg("booking session confirmed by a different user")
		return nil, ErrSessionOwner
	}
	s.UserID = userID

	patientID, err := m.patients.ResolvePatientID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrPatientProfileIncomplete) {
			s.Step = StepEnterPatientDetails
			s.Notice = NoticeProfileIncomplete
			if saveErr := m.save(ctx, s); saveErr != nil {
				return nil, saveErr
			}
			return &State{Session: s}, err
		}
		return nil, err
	}

	date, err := slots.ParseDate(s.Date, m.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: stored date %q: %w", ErrGuard, s.Date, err)
	}

	appt, err := m.booking.AttemptBooking(ctx, appointment.BookingRequest{
		DoctorID:  *s.DoctorID,
		PatientID: patientID,
		Date:      date,
		Time:      *s.Time,
		Details: appointment.Details{
			ConsultType: s.ConsultType,
			Reason:      s.Form.Reason,
			Notes:       s.Form.Notes,
		},
	})
	switch {
	case err == nil:
	case errors.Is(err, appointment.ErrSlotAlreadyBooked), errors.Is(err, appointment.ErrInvalidSlot):
		return m.reselect(ctx, s, err)
	default:
		return nil, err
	}

	s.Step = StepConfirmed
	s.Notice = ""
	s.AppointmentID = &appt.ID
	s.Appointment = appt
	if err := m.save(ctx, s); err != nil {
		// The appointment exists; losing the session only affects rendering.
		m.log.Warn().Err(err).Str("session_id", s.ID.String()).Msg("save confirmed session")
	}

	m.log.Info().
		Str("session_id", s.ID.String()).
		Str("appointment_id", appt.ID.String()).
		Msg("booking session confirmed")
	return &State{Session: s}, nil
}

// Discard drops the session. Nothing was persisted for it besides the
// session itself unless it already reached StepConfirmed, and the
// appointment survives in that case.
func (m *Manager) Discard(ctx context.Context, id uuid.UUID) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.log.Debug().Str("session_id", id.String()).Msg("booking session discarded")
	return nil
}

// reselect sends the session back to date and time selection after the
// chosen slot turned out to be unavailable.
func (m *Manager) reselect(ctx context.Context, s *Session, cause error) (*State, error) {
	s.Step = StepSelectDateTime
	s.Time = nil
	s.Notice = NoticeSlotUnavailable
	if errors.Is(cause, appointment.ErrSlotAlreadyBooked) {
		s.Notice = NoticeSlotTaken
	}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}

	list, err := m.booking.ListUpcoming(ctx, *s.DoctorID)
	if err != nil {
		return nil, err
	}
	m.log.Info().
		Str("session_id", s.ID.String()).
		Str("notice", s.Notice).
		Msg("booking session returned to slot selection")
	return &State{Session: s, Slots: list}, cause
}

func (m *Manager) load(ctx context.Context, id uuid.UUID, allowed ...Step) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, step := range allowed {
		if s.Step == step {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: session is at %s", ErrGuard, s.Step)
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	s.UpdatedAt = m.opts.Clock.Now()
	return m.store.Save(ctx, s)
}
