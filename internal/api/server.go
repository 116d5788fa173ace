// Package api exposes slot resolution, deposit booking and the admin
// schedule surface over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"clinicbook/internal/audit"
	"clinicbook/internal/booking"
	"clinicbook/internal/closure"
	"clinicbook/internal/model"
)

// Store is the read/write surface the admin handlers use directly.
type Store interface {
	GetDoctor(ctx context.Context, id int64) (*model.Doctor, error)
	ListDoctors(ctx context.Context, activeOnly bool) ([]model.Doctor, error)
	CreateWindow(ctx context.Context, w *model.AvailabilityWindow) error
	ListWindows(ctx context.Context, doctorID int64, date string) ([]model.AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, id int64) error
	CreateClosure(ctx context.Context, c *model.Closure) error
	ListClosures(ctx context.Context) ([]model.Closure, error)
	DeleteClosure(ctx context.Context, id int64) error
	ListAppointments(ctx context.Context, doctorID int64, date string) ([]model.Appointment, error)
}

// ClosureChecker reports the closure in effect for a doctor on a date.
type ClosureChecker interface {
	IsClosed(ctx context.Context, doctorID int64, date string) (*closure.Info, error)
}

// Config controls authentication and throttling.
type Config struct {
	// APIKey guards the public API when set.
	APIKey string
	// AdminKey guards admin routes and the payment callback. Empty disables
	// them.
	AdminKey       string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server serves the HTTP API.
type Server struct {
	booking  *booking.Service
	store    Store
	closures ClosureChecker
	exporter *audit.Exporter
	cfg      Config
	logger   zerolog.Logger
}

// NewServer creates the API server. exporter may be nil, which disables
// the export route.
func NewServer(svc *booking.Service, store Store, closures ClosureChecker, exporter *audit.Exporter, cfg Config, logger *zerolog.Logger) *Server {
	return &Server{
		booking:  svc,
		store:    store,
		closures: closures,
		exporter: exporter,
		cfg:      cfg,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(recordMetrics)
	if s.cfg.RateLimitRPS > 0 {
		r.Use(newRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst).middleware)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(requireKey(apiKeyHeader, s.cfg.APIKey, true))

		api.Get("/doctors", s.handleDoctors)
		api.Get("/doctors/{id}/slots", s.handleSlots)
		api.Get("/doctors/{id}/closure", s.handleClosure)
		api.Post("/bookings/deposit", s.handleBookWithDeposit)
		api.Get("/deposits", s.handleDeposits)
		api.Get("/time/convert", s.handleConvert)

		api.Group(func(admin chi.Router) {
			admin.Use(requireKey(adminKeyHeader, s.cfg.AdminKey, false))
			admin.Post("/deposits", s.handleIncreaseDeposit)

			admin.Route("/admin", func(r chi.Router) {
				r.Get("/doctors/{id}/slots", s.handleSlotsPreview)

				r.Get("/windows", s.handleListWindows)
				r.Post("/windows", s.handleCreateWindow)
				r.Delete("/windows/{id}", s.handleDeleteWindow)

				r.Get("/closures", s.handleListClosures)
				r.Post("/closures", s.handleCreateClosure)
				r.Delete("/closures/{id}", s.handleDeleteClosure)

				r.Get("/appointments", s.handleListAppointments)
				r.Delete("/appointments/{id}", s.handleCancelAppointment)

				r.Get("/manual-deposits", s.handleListManualDeposits)
				r.Post("/manual-deposits", s.handleRequestManualDeposit)
				r.Post("/manual-deposits/{id}/approve", s.handleDecideManualDeposit(true))
				r.Post("/manual-deposits/{id}/reject", s.handleDecideManualDeposit(false))

				r.Get("/export", s.handleExport)
			})
		})
	})

	return r
}
