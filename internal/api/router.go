package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/appointment"
	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/identity"
	"github.com/hopecann/scheduling/internal/workflow"
)

type RouterConfig struct {
	Availability *availability.Service
	Booking      *appointment.Service
	Workflow     *workflow.Manager
	Auth         *identity.Authenticator
	Patients     *identity.Provider
	Health       *HealthHandler
	Logger       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(AuthMiddleware(cfg.Auth))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	d := &doctorHandlers{svc: cfg.Availability, booking: cfg.Booking, log: cfg.Logger}
	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", d.list)
		r.Route("/{doctorID}", func(r chi.Router) {
			r.Get("/", d.get)
			r.Get("/availability", d.template)
			r.Post("/availability/pattern", d.applyPattern)
			r.Put("/availability/{weekday}", d.setDaySlots)
			r.Post("/availability/{weekday}/slots", d.addSlot)
			r.Delete("/availability/{weekday}/slots/{time}", d.removeSlot)
			r.Post("/availability/{weekday}/toggle", d.toggleSlot)
			r.Get("/slots", d.listSlots)
		})
	})

	a := &appointmentHandlers{svc: cfg.Booking, patients: cfg.Patients, log: cfg.Logger}
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", a.create)
		r.Get("/", a.list)
		r.Get("/{id}", a.get)
		r.Post("/{id}/cancel", a.cancel)
		r.Post("/{id}/complete", a.complete)
	})

	s := &sessionHandlers{mgr: cfg.Workflow, log: cfg.Logger}
	r.Route("/booking-sessions", func(r chi.Router) {
		r.Post("/", s.start)
		r.Get("/{id}", s.get)
		r.Delete("/{id}", s.discard)
		r.Post("/{id}/doctor", s.selectDoctor)
		r.Post("/{id}/datetime", s.selectDateTime)
		r.Post("/{id}/consult-type", s.selectConsultType)
		r.Post("/{id}/details", s.enterDetails)
		r.Post("/{id}/back", s.back)
		r.Post("/{id}/confirm", s.confirm)
	})

	return r
}
