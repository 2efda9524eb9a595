// Package rest exposes patients and appointments over JSON/HTTP.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/observability/metrics"
	"carebook/backend/internal/service/appointments"
	"carebook/backend/internal/service/patients"
)

type patientService interface {
	Create(ctx context.Context, in patients.CreateInput) (domain.Patient, error)
	List(ctx context.Context) ([]domain.Patient, error)
	Get(ctx context.Context, id int64) (domain.Patient, error)
	Update(ctx context.Context, id int64, in patients.UpdateInput) (domain.Patient, error)
	Remove(ctx context.Context, id int64) error
}

type appointmentService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	List(ctx context.Context) ([]domain.Appointment, error)
	Get(ctx context.Context, id int64) (domain.Appointment, error)
	ListByPatient(ctx context.Context, patientID int64) ([]domain.Appointment, error)
	Find(ctx context.Context, f appointments.Filter) ([]domain.Appointment, error)
	Update(ctx context.Context, id int64, in appointments.UpdateInput) (domain.Appointment, error)
	Remove(ctx context.Context, id int64) (domain.Appointment, error)
}

// Pinger reports storage reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Patients     patientService
	Appointments appointmentService
	Health       Pinger
	Logger       *slog.Logger

	// Metrics is optional; MetricsHandler, when set, is mounted at /metrics.
	Metrics        *metrics.HTTPMetrics
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
}

func NewRouter(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(instrument(log.With(slog.String("component", "rest.http")), cfg.Metrics))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors(cfg.CORSAllowedOrigins))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", healthHandler(cfg.Health))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	ph := &patientHandler{
		svc:          cfg.Patients,
		appointments: cfg.Appointments,
		log:          log.With(slog.String("component", "rest.patients")),
	}
	patientRoutes := func(r chi.Router) {
		r.Get("/", ph.list)
		r.Post("/", ph.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", ph.get)
			r.Put("/", ph.update)
			r.Patch("/", ph.update)
			r.Delete("/", ph.remove)
			r.Get("/appointments", ph.listAppointments)
			r.Post("/appointments", ph.createAppointment)
		})
	}
	r.Route("/patients", patientRoutes)
	r.Route("/pacientes", patientRoutes)

	ah := &appointmentHandler{
		svc: cfg.Appointments,
		log: log.With(slog.String("component", "rest.appointments")),
	}
	appointmentRoutes := func(r chi.Router) {
		r.Get("/", ah.list)
		r.Post("/", ah.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", ah.get)
			r.Put("/", ah.update)
			r.Patch("/", ah.update)
			r.Delete("/", ah.remove)
		})
	}
	r.Route("/appointments", appointmentRoutes)
	r.Route("/turnos", appointmentRoutes)

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
