package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/appointment"
	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/workflow"
)

type sessionHandlers struct {
	mgr *workflow.Manager
	log zerolog.Logger
}

// respond writes the session state. A transition that failed but still moved
// the session (lost race, login detour, incomplete profile) returns the
// error code together with the session.
func (h *sessionHandlers) respond(w http.ResponseWriter, r *http.Request, status int, st *workflow.State, err error) {
	if err == nil {
		writeJSON(w, status, st)
		return
	}
	if st == nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	httpStatus, code := classify(err)
	writeJSON(w, httpStatus, SessionErrorResponse{Error: code, Details: err.Error(), Session: st})
}

func (h *sessionHandlers) start(w http.ResponseWriter, r *http.Request) {
	st, err := h.mgr.Start(r.Context())
	h.respond(w, r, http.StatusCreated, st, err)
}

func (h *sessionHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.mgr.Get(r.Context(), id)
	h.respond(w, r, http.StatusOK, st, err)
}

func (h *sessionHandlers) discard(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.mgr.Discard(r.Context(), id); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandlers) selectDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req SelectDoctorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	doctorID := uuid.Nil
	if req.DoctorID != "" {
		parsed, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		doctorID = parsed
	}
	st, err := h.mgr.SelectDoctor(r.Context(), id, doctorID)
	h.respond(w, r, http.StatusOK, st, err)
}

func (h *sessionHandlers) selectDateTime(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req SelectDateTimeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	var tod *availability.TimeOfDay
	if req.Time != "" {
		t, err := availability.ParseTimeOfDay(req.Time)
		if err != nil {
			writeServiceError(w, r, h.log, err)
			return
		}
		tod = &t
	}
	st, err := h.mgr.SelectDateTime(r.Context(), id, req.Date, tod)
	h.respond(w, r, http.StatusOK, st, err)
}

func (h *sessionHandlers) selectConsultType(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req SelectConsultTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	st, err := h.mgr.SelectConsultType(r.Context(), id, appointment.ConsultType(req.ConsultType))
	h.respond(w, r, http.StatusOK, st, err)
}

func (h *sessionHandlers) enterDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var form workflow.PatientForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	st, err := h.mgr.EnterPatientDetails(r.Context(), id, form)
	h.respond(w, r, http.StatusOK, st, err)
}

func (h *sessionHandlers) back(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.mgr.Back(r.Context(), id)
	h.respond(w, r, http.StatusOK, st, err)
}

// confirm books the session's slot for the bearer of the request's token.
// Anonymous callers park the session until they log in and call again.
func (h *sessionHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.mgr.Confirm(r.Context(), id, UserID(r.Context()))
	h.respond(w, r, http.StatusOK, st, err)
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", err.Error())
		return uuid.Nil, false
	}
	return id, true
}
