package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	TopicAppointmentBooked    = "appointment.booked"
	TopicAppointmentCancelled = "appointment.cancelled"
	TopicAppointmentCompleted = "appointment.completed"
)

// Event is the message published after an appointment changes state.
type Event struct {
	Topic         string    `json:"topic"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	StartsAt      time.Time `json:"starts_at"`
	ConsultType   string    `json:"consult_type,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the log. Used when no broker is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.log.Info().
		Str("topic", ev.Topic).
		Str("appointment_id", ev.AppointmentID.String()).
		Str("doctor_id", ev.DoctorID.String()).
		Str("patient_id", ev.PatientID.String()).
		Time("starts_at", ev.StartsAt).
		Msg("appointment notification")
	return nil
}

// Async hands events to the wrapped notifier on a separate goroutine and
// returns immediately. Delivery failures are logged and otherwise dropped.
type Async struct {
	next    Notifier
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration, logger zerolog.Logger) *Async {
	return &Async{next: next, timeout: timeout, log: logger}
}

func (a *Async) Notify(ctx context.Context, ev Event) error {
	// Detach from the request so delivery survives the response being written.
	base := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		sendCtx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()

		if err := a.next.Notify(sendCtx, ev); err != nil {
			a.log.Warn().Err(err).
				Str("topic", ev.Topic).
				Str("appointment_id", ev.AppointmentID.String()).
				Msg("notification delivery failed")
		}
	}()
	return nil
}

// Wait blocks until all in-flight deliveries finish.
func (a *Async) Wait() {
	a.wg.Wait()
}
