package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/appointment"
	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/identity"
	"github.com/hopecann/scheduling/internal/workflow"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type TimesRequest struct {
	Times []string `json:"times"`
}

type TimeRequest struct {
	Time string `json:"time"`
}

type TemplateResponse struct {
	DoctorID  string                              `json:"doctor_id"`
	Available bool                                `json:"available"`
	Template  *availability.Template              `json:"template,omitempty"`
	Ranges    map[string][]availability.TimeRange `json:"ranges,omitempty"`
	Grid      []availability.TimeOfDay            `json:"grid,omitempty"`
}

type CreateAppointmentRequest struct {
	DoctorID    string `json:"doctor_id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	ConsultType string `json:"consult_type"`
	Reason      string `json:"reason"`
	Notes       string `json:"notes"`
}

type SelectDoctorRequest struct {
	DoctorID string `json:"doctor_id"`
}

type SelectDateTimeRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type SelectConsultTypeRequest struct {
	ConsultType string `json:"consult_type"`
}

// SessionErrorResponse carries the session alongside the error so the
// client can render the step it was sent back to.
type SessionErrorResponse struct {
	Error   string          `json:"error"`
	Details string          `json:"details,omitempty"`
	Session *workflow.State `json:"session"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("could not parse JSON: %w", err)
	}
	return nil
}

// classify maps domain errors onto HTTP status codes and stable error codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, availability.ErrDoctorNotFound):
		return http.StatusNotFound, "doctor_not_found"
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, workflow.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, identity.ErrPatientProfileIncomplete):
		return http.StatusUnprocessableEntity, "patient_profile_incomplete"
	case errors.Is(err, appointment.ErrSlotAlreadyBooked):
		return http.StatusConflict, "slot_already_booked"
	case errors.Is(err, appointment.ErrInvalidSlot):
		return http.StatusConflict, "invalid_slot"
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		return http.StatusConflict, "invalid_status_transition"
	case errors.Is(err, appointment.ErrConstraintViolation):
		return http.StatusUnprocessableEntity, "constraint_violation"
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, workflow.ErrLoginRequired):
		return http.StatusUnauthorized, "login_required"
	case errors.Is(err, workflow.ErrSessionOwner):
		return http.StatusForbidden, "session_forbidden"
	case errors.Is(err, availability.ErrInvalidTime),
		errors.Is(err, availability.ErrInvalidWeekday),
		errors.Is(err, availability.ErrInvalidPattern),
		errors.Is(err, appointment.ErrInvalidConsultType),
		errors.Is(err, workflow.ErrGuard):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, availability.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg(code)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	details := err.Error()
	if status == http.StatusInternalServerError {
		details = "internal server error"
	}
	writeError(w, status, code, details)
}
