package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/appointment"
	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/slots"
)

type doctorHandlers struct {
	svc     *availability.Service
	booking *appointment.Service
	log     zerolog.Logger
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a valid UUID", name)
	}
	return id, nil
}

func weekdayParam(r *http.Request) (availability.Weekday, error) {
	return availability.ParseWeekday(chi.URLParam(r, "weekday"))
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func (h *doctorHandlers) list(w http.ResponseWriter, r *http.Request) {
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
	onlyAvailable := r.URL.Query().Get("available") == "true"

	doctors, err := h.svc.ListDoctors(r.Context(), onlyAvailable, limit, offset)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	if doctors == nil {
		doctors = []availability.Doctor{}
	}
	writeJSON(w, http.StatusOK, doctors)
}

func (h *doctorHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "doctorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
		return
	}
	d, err := h.svc.GetDoctor(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *doctorHandlers) template(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "doctorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
		return
	}
	if _, err := h.svc.GetDoctor(r.Context(), id); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	tpl, err := h.svc.GetTemplate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	resp := h.templateResponse(id, tpl)
	if r.URL.Query().Get("view") == "ranges" {
		step := int(h.svc.Window().Step / time.Minute)
		resp.Ranges = make(map[string][]availability.TimeRange, len(availability.Weekdays))
		for _, d := range availability.Weekdays {
			resp.Ranges[d.String()] = availability.CollapseRanges(tpl.Times(d), step)
		}
		resp.Template = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *doctorHandlers) templateResponse(id uuid.UUID, tpl availability.Template) TemplateResponse {
	return TemplateResponse{
		DoctorID:  id.String(),
		Available: tpl.Available(),
		Template:  &tpl,
		Grid:      h.svc.Window().Grid(),
	}
}

// mutate runs one template edit and writes the resulting template.
func (h *doctorHandlers) mutate(w http.ResponseWriter, r *http.Request, fn func(id uuid.UUID, day availability.Weekday) (availability.Template, error)) {
	id, err := uuidParam(r, "doctorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
		return
	}
	day, err := weekdayParam(r)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	tpl, err := fn(id, day)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, h.templateResponse(id, tpl))
}

func (h *doctorHandlers) setDaySlots(w http.ResponseWriter, r *http.Request) {
	var req TimesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	times, err := availability.ParseTimes(req.Times)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	h.mutate(w, r, func(id uuid.UUID, day availability.Weekday) (availability.Template, error) {
		return h.svc.SetDaySlots(r.Context(), id, day, times)
	})
}

func (h *doctorHandlers) addSlot(w http.ResponseWriter, r *http.Request) {
	tod, ok := h.decodeTime(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, func(id uuid.UUID, day availability.Weekday) (availability.Template, error) {
		return h.svc.AddSlot(r.Context(), id, day, tod)
	})
}

func (h *doctorHandlers) toggleSlot(w http.ResponseWriter, r *http.Request) {
	tod, ok := h.decodeTime(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, func(id uuid.UUID, day availability.Weekday) (availability.Template, error) {
		return h.svc.ToggleSlot(r.Context(), id, day, tod)
	})
}

func (h *doctorHandlers) removeSlot(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "time is not a valid path segment")
		return
	}
	tod, err := availability.ParseTimeOfDay(raw)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	h.mutate(w, r, func(id uuid.UUID, day availability.Weekday) (availability.Template, error) {
		return h.svc.RemoveSlot(r.Context(), id, day, tod)
	})
}

func (h *doctorHandlers) decodeTime(w http.ResponseWriter, r *http.Request) (availability.TimeOfDay, bool) {
	var req TimeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return 0, false
	}
	tod, err := availability.ParseTimeOfDay(req.Time)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return 0, false
	}
	return tod, true
}

func (h *doctorHandlers) applyPattern(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "doctorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
		return
	}
	var p availability.Pattern
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	tpl, err := h.svc.ApplyPattern(r.Context(), id, p)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, h.templateResponse(id, tpl))
}

type SlotsResponse struct {
	DoctorID uuid.UUID    `json:"doctor_id"`
	Start    string       `json:"start"`
	Days     int          `json:"days"`
	Slots    []slots.Slot `json:"slots"`
}

// listSlots lists bookable slots. Without query parameters the default booking
// horizon is used.
func (h *doctorHandlers) listSlots(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "doctorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
		return
	}

	loc := h.booking.Location()
	horizon := h.booking.Horizon()
	start := h.booking.HorizonStart()
	q := r.URL.Query()

	if v := q.Get("start"); v != "" {
		if start, err = slots.ParseDate(v, loc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "start must be YYYY-MM-DD")
			return
		}
	}
	days, err := intQuery(r, "days", horizon.Days)
	if err != nil || days < 0 || days > 366 {
		writeError(w, http.StatusBadRequest, "invalid_request", "days must be between 0 and 366")
		return
	}
	exclude := horizon.ExcludeWeekends
	if v := q.Get("exclude_weekends"); v != "" {
		if exclude, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "exclude_weekends must be a boolean")
			return
		}
	}

	list, err := h.booking.ListAvailable(r.Context(), id, start, days, exclude)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, SlotsResponse{
		DoctorID: id,
		Start:    start.Format(time.DateOnly),
		Days:     days,
		Slots:    list,
	})
}
