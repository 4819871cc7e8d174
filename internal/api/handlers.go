package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/appointment"
	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/identity"
	"github.com/hopecann/scheduling/internal/slots"
)

type appointmentHandlers struct {
	svc      *appointment.Service
	patients *identity.Provider
	log      zerolog.Logger
}

// create books a slot for the authenticated patient.
func (h *appointmentHandlers) create(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "a bearer token is required to book")
		return
	}

	var req CreateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return
	}
	date, err := slots.ParseDate(req.Date, h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}
	tod, err := availability.ParseTimeOfDay(req.Time)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	patientID, err := h.patients.ResolvePatientID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	appt, err := h.svc.AttemptBooking(r.Context(), appointment.BookingRequest{
		DoctorID:  doctorID,
		PatientID: patientID,
		Date:      date,
		Time:      tod,
		Details: appointment.Details{
			ConsultType: appointment.ConsultType(req.ConsultType),
			Reason:      req.Reason,
			Notes:       req.Notes,
		},
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, appt)
}

// list returns a patient's appointments. Without patient_id the
// authenticated patient is used.
func (h *appointmentHandlers) list(w http.ResponseWriter, r *http.Request) {
	var patientID uuid.UUID
	if raw := r.URL.Query().Get("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		patientID = id
	} else {
		id, err := h.patients.ResolvePatientID(r.Context(), UserID(r.Context()))
		if err != nil {
			writeServiceError(w, r, h.log, err)
			return
		}
		patientID = id
	}

	limit, err := intQuery(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	appts, err := h.svc.ListByPatient(r.Context(), patientID, limit, offset)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	if appts == nil {
		appts = []appointment.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *appointmentHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
		return
	}
	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *appointmentHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, h.svc.Cancel)
}

func (h *appointmentHandlers) complete(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, h.svc.Complete)
}

func (h *appointmentHandlers) finish(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*appointment.Appointment, error)) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
		return
	}
	appt, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}
