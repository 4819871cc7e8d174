package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/appointment"
	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/identity"
	redisclient "github.com/hopecann/scheduling/internal/redis"
	"github.com/hopecann/scheduling/internal/slots"
)

// Sunday noon; the booking horizon opens Monday 2024-06-03.
var testNow = time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)

type harness struct {
	mgr      *Manager
	booking  *appointment.Service
	repo     *appointment.MemoryRepository
	patients *identity.MemoryDirectory
	doctorID uuid.UUID
	userID   string
}

func newHarness(t *testing.T, askConsultType bool) *harness {
	t.Helper()
	ctx := context.Background()

	store := availability.NewMemoryStore()
	doctorID := uuid.New()
	store.AddDoctor(availability.Doctor{ID: doctorID, Name: gofakeit.Name()})
	_, err := store.UpdateTemplate(ctx, doctorID, func(availability.Template) availability.Template {
		return availability.NewTemplate(map[availability.Weekday][]availability.TimeOfDay{
			availability.Monday: {availability.At(9, 0), availability.At(10, 0)},
		})
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}

	patients := identity.NewMemoryDirectory()
	h := &harness{
		repo:     appointment.NewMemoryRepository(),
		patients: patients,
		doctorID: doctorID,
		userID:   "user-" + gofakeit.Username(),
	}
	h.addPatient(t, h.userID, true)

	provider := identity.NewProvider(patients)
	clock := slots.FixedClock(testNow)
	h.booking = appointment.NewService(h.repo, store, provider, redisclient.NewLocalSlotLocker(), nil, appointment.Options{
		Clock:          clock,
		Location:       time.UTC,
		Horizon:        slots.DefaultHorizon,
		BookingTimeout: time.Second,
	}, zerolog.Nop())

	h.mgr = NewManager(h.booking, provider, NewMemorySessionStore(time.Hour), Options{
		AskConsultType: askConsultType,
		Location:       time.UTC,
		Clock:          clock,
	}, zerolog.Nop())
	return h
}

func (h *harness) addPatient(t *testing.T, userID string, complete bool) uuid.UUID {
	t.Helper()
	p := identity.Patient{ID: uuid.New(), UserID: userID, Name: gofakeit.Name(), Email: gofakeit.Email()}
	if complete {
		dob := gofakeit.DateRange(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
		p.Phone = gofakeit.Phone()
		p.DateOfBirth = &dob
	}
	if err := h.patients.SavePatient(context.Background(), p); err != nil {
		t.Fatalf("save patient: %v", err)
	}
	return p.ID
}

func fakeForm() PatientForm {
	return PatientForm{
		Name:   gofakeit.Name(),
		Email:  gofakeit.Email(),
		Phone:  gofakeit.Phone(),
		Reason: gofakeit.Word(),
		Notes:  gofakeit.Word(),
	}
}

func tod(h, m int) *availability.TimeOfDay {
	t := availability.At(h, m)
	return &t
}

// readyToConfirm walks a fresh session up to the details step.
func (h *harness) readyToConfirm(t *testing.T, form PatientForm) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	st, err := h.mgr.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := st.ID

	st, err = h.mgr.SelectDoctor(ctx, id, h.doctorID)
	if err != nil {
		t.Fatalf("SelectDoctor: %v", err)
	}
	if st.Step != StepSelectDateTime || len(st.Slots) != 4 {
		t.Fatalf("expected date/time step with 4 slots, got %s with %d", st.Step, len(st.Slots))
	}

	if _, err := h.mgr.SelectDateTime(ctx, id, "2024-06-03", tod(10, 0)); err != nil {
		t.Fatalf("SelectDateTime: %v", err)
	}
	if _, err := h.mgr.SelectConsultType(ctx, id, appointment.ConsultPhone); err != nil {
		t.Fatalf("SelectConsultType: %v", err)
	}
	if _, err := h.mgr.EnterPatientDetails(ctx, id, form); err != nil {
		t.Fatalf("EnterPatientDetails: %v", err)
	}
	return id
}

func TestConfirmAfterLoginDetour(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	form := fakeForm()
	id := h.readyToConfirm(t, form)

	st, err := h.mgr.Confirm(ctx, id, "")
	if !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
	if st.Step != StepLoginRequired {
		t.Fatalf("expected login_required, got %s", st.Step)
	}

	resumed, err := h.mgr.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resumed.Form == nil || *resumed.Form != form {
		t.Fatalf("form not preserved across login detour: %+v", resumed.Form)
	}
	if resumed.Time == nil || *resumed.Time != availability.At(10, 0) || resumed.ConsultType != appointment.ConsultPhone {
		t.Fatalf("selection not preserved: %+v", resumed.Session)
	}

	st, err = h.mgr.Confirm(ctx, id, h.userID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if st.Step != StepConfirmed || st.Appointment == nil {
		t.Fatalf("expected confirmed session with appointment, got %+v", st.Session)
	}
	if st.Appointment.ConsultType != appointment.ConsultPhone || st.Appointment.Reason != form.Reason {
		t.Errorf("booking details not carried: %+v", st.Appointment)
	}
}

func TestConfirmLostRaceReturnsToSlotSelection(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	form := fakeForm()
	id := h.readyToConfirm(t, form)

	rival := h.addPatient(t, "rival", true)
	_, err := h.booking.AttemptBooking(ctx, appointment.BookingRequest{
		DoctorID:  h.doctorID,
		PatientID: rival,
		Date:      time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Time:      availability.At(10, 0),
	})
	if err != nil {
		t.Fatalf("rival booking: %v", err)
	}

	st, err := h.mgr.Confirm(ctx, id, h.userID)
	if !errors.Is(err, appointment.ErrSlotAlreadyBooked) {
		t.Fatalf("expected ErrSlotAlreadyBooked, got %v", err)
	}
	if st == nil || st.Step != StepSelectDateTime {
		t.Fatalf("expected return to select_datetime, got %+v", st)
	}
	if st.Time != nil {
		t.Error("stale time was kept")
	}
	if st.Notice != NoticeSlotTaken {
		t.Errorf("expected notice %q, got %q", NoticeSlotTaken, st.Notice)
	}
	if st.Form == nil || *st.Form != form {
		t.Error("form lost after failed confirm")
	}
	for _, s := range st.Slots {
		if s.Date.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)) && s.Time == availability.At(10, 0) {
			t.Fatal("refreshed slot list still offers the taken slot")
		}
	}
	if len(st.Slots) != 3 {
		t.Errorf("expected 3 remaining slots, got %d", len(st.Slots))
	}

	// Picking another slot lands on the details step with the form intact.
	if _, err := h.mgr.SelectDateTime(ctx, id, "2024-06-03", tod(9, 0)); err != nil {
		t.Fatalf("SelectDateTime: %v", err)
	}
	if _, err := h.mgr.SelectConsultType(ctx, id, appointment.ConsultVideo); err != nil {
		t.Fatalf("SelectConsultType: %v", err)
	}
	if st, err = h.mgr.Confirm(ctx, id, h.userID); err != nil || st.Step != StepConfirmed {
		t.Fatalf("second confirm: %v", err)
	}
}

func TestConfirmIncompleteProfileHaltsBeforeBooking(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.addPatient(t, "half-registered", false)
	form := fakeForm()

	st, err := h.mgr.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id := st.ID
	if _, err := h.mgr.SelectDoctor(ctx, id, h.doctorID); err != nil {
		t.Fatal(err)
	}
	st, err = h.mgr.SelectDateTime(ctx, id, "2024-06-03", tod(9, 0))
	if err != nil {
		t.Fatal(err)
	}
	if st.Step != StepEnterPatientDetails || st.ConsultType != appointment.ConsultVideo {
		t.Fatalf("expected consult step to be skipped, got %s / %q", st.Step, st.ConsultType)
	}
	if _, err := h.mgr.EnterPatientDetails(ctx, id, form); err != nil {
		t.Fatal(err)
	}

	st, err = h.mgr.Confirm(ctx, id, "half-registered")
	if !errors.Is(err, identity.ErrPatientProfileIncomplete) {
		t.Fatalf("expected ErrPatientProfileIncomplete, got %v", err)
	}
	if st.Step != StepEnterPatientDetails || st.Notice != NoticeProfileIncomplete {
		t.Errorf("unexpected state %s / %q", st.Step, st.Notice)
	}
	if st.Form == nil || *st.Form != form {
		t.Error("form lost")
	}
	if len(h.repo.Events()) != 0 {
		t.Error("appointment repository was touched")
	}
	booked, _ := h.repo.FindScheduled(ctx, h.doctorID, testNow, testNow.AddDate(0, 1, 0))
	if len(booked) != 0 {
		t.Errorf("expected no appointments, got %d", len(booked))
	}
}

func TestGuards(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	st, err := h.mgr.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id := st.ID

	if _, err := h.mgr.SelectDoctor(ctx, id, uuid.Nil); !errors.Is(err, ErrGuard) {
		t.Errorf("nil doctor: expected ErrGuard, got %v", err)
	}
	if _, err := h.mgr.SelectDoctor(ctx, id, uuid.New()); !errors.Is(err, availability.ErrDoctorNotFound) {
		t.Errorf("unknown doctor: expected ErrDoctorNotFound, got %v", err)
	}
	if _, err := h.mgr.SelectDateTime(ctx, id, "2024-06-03", tod(9, 0)); !errors.Is(err, ErrGuard) {
		t.Errorf("date before doctor: expected ErrGuard, got %v", err)
	}
	if _, err := h.mgr.Back(ctx, id); !errors.Is(err, ErrGuard) {
		t.Errorf("back from first step: expected ErrGuard, got %v", err)
	}

	if _, err := h.mgr.SelectDoctor(ctx, id, h.doctorID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.mgr.SelectDateTime(ctx, id, "2024-06-03", nil); !errors.Is(err, ErrGuard) {
		t.Errorf("missing time: expected ErrGuard, got %v", err)
	}
	if _, err := h.mgr.SelectDateTime(ctx, id, "", tod(9, 0)); !errors.Is(err, ErrGuard) {
		t.Errorf("missing date: expected ErrGuard, got %v", err)
	}
	if _, err := h.mgr.Confirm(ctx, id, h.userID); !errors.Is(err, ErrGuard) {
		t.Errorf("early confirm: expected ErrGuard, got %v", err)
	}
	if _, err := h.mgr.Get(ctx, uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session: expected ErrSessionNotFound, got %v", err)
	}
}

func TestBackKeepsSelections(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	id := h.readyToConfirm(t, fakeForm())

	want := []Step{StepSelectConsultType, StepSelectDateTime, StepSelectDoctor}
	for _, step := range want {
		st, err := h.mgr.Back(ctx, id)
		if err != nil {
			t.Fatalf("Back: %v", err)
		}
		if st.Step != step {
			t.Fatalf("expected %s, got %s", step, st.Step)
		}
		if st.DoctorID == nil || st.Form == nil {
			t.Fatalf("selections dropped at %s", step)
		}
	}
}

func TestMemorySessionStoreExpires(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	now := testNow
	store.now = func() time.Time { return now }
	ctx := context.Background()

	s := &Session{ID: uuid.New(), Step: StepSelectDoctor}
	if err := store.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, s.ID); err != nil {
		t.Fatalf("fresh session: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestConfirmRejectsDifferentUser(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.addPatient(t, "first-user", false)

	st, err := h.mgr.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id := st.ID
	if _, err := h.mgr.SelectDoctor(ctx, id, h.doctorID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.mgr.SelectDateTime(ctx, id, "2024-06-03", tod(9, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := h.mgr.EnterPatientDetails(ctx, id, fakeForm()); err != nil {
		t.Fatal(err)
	}

	// The first attempt binds the session to its user even though it fails.
	if _, err := h.mgr.Confirm(ctx, id, "first-user"); !errors.Is(err, identity.ErrPatientProfileIncomplete) {
		t.Fatalf("expected ErrPatientProfileIncomplete, got %v", err)
	}

	if _, err := h.mgr.Confirm(ctx, id, h.userID); !errors.Is(err, ErrSessionOwner) {
		t.Fatalf("expected ErrSessionOwner, got %v", err)
	}
	booked, _ := h.repo.FindScheduled(ctx, h.doctorID, testNow, testNow.AddDate(0, 1, 0))
	if len(booked) != 0 {
		t.Errorf("expected no appointments, got %d", len(booked))
	}
}

func TestDiscard(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	id := h.readyToConfirm(t, fakeForm())

	if err := h.mgr.Discard(ctx, id); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, err := h.mgr.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected discarded session to be gone, got %v", err)
	}
	if err := h.mgr.Discard(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second discard: expected ErrSessionNotFound, got %v", err)
	}
}
