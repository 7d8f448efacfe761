package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/appointments"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/doctors"
	httpmiddleware "github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/http/middleware"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/http/respond"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	Authenticator       httpmiddleware.Authenticator
	UsersHandler        *identity.Handler
	DoctorsHandler      *doctors.Handler
	AppointmentsHandler *appointments.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// AuthRateLimiter throttles register and login per client IP (optional).
	AuthRateLimiter *httpmiddleware.RateLimiter

	// HealthCheck probes backing stores for /health (optional).
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	authenticated := httpmiddleware.Authenticate(cfg.Authenticator, cfg.Logger)
	doctorOnly := httpmiddleware.RequireRole(identity.RoleDoctor)
	doctorOrAdmin := httpmiddleware.RequireRole(identity.RoleDoctor, identity.RoleAdmin)
	adminOnly := httpmiddleware.RequireRole(identity.RoleAdmin)

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/users", func(users chi.Router) {
		users.Group(func(public chi.Router) {
			if cfg.AuthRateLimiter != nil {
				public.Use(cfg.AuthRateLimiter.Middleware)
			}
			public.Post("/register", cfg.UsersHandler.Register)
			public.Post("/login", cfg.UsersHandler.Login)
		})
		users.With(authenticated).Get("/profile", cfg.UsersHandler.Profile)
	})

	r.Route("/doctors", func(docs chi.Router) {
		docs.Get("/search", cfg.DoctorsHandler.Search)
		docs.Group(func(doctor chi.Router) {
			doctor.Use(authenticated, doctorOnly)
			doctor.Get("/me", cfg.DoctorsHandler.Me)
			doctor.Put("/me/fee", cfg.DoctorsHandler.UpdateFee)
			doctor.Get("/appointments/my", cfg.AppointmentsHandler.DoctorSchedule)
		})
		docs.Get("/{id}", cfg.DoctorsHandler.Get)
	})

	r.Route("/appointments", func(appts chi.Router) {
		appts.Use(authenticated)
		appts.Post("/book", cfg.AppointmentsHandler.Book)
		appts.Get("/booked-slots", cfg.AppointmentsHandler.BookedSlots)
		appts.Get("/my", cfg.AppointmentsHandler.Mine)
		appts.Route("/{id}", func(appt chi.Router) {
			appt.Get("/", cfg.AppointmentsHandler.Get)
			appt.Put("/cancel", cfg.AppointmentsHandler.Cancel)
			appt.With(doctorOrAdmin).Put("/confirm", cfg.AppointmentsHandler.Confirm)
			appt.With(doctorOrAdmin).Put("/complete", cfg.AppointmentsHandler.Complete)
		})
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(authenticated, adminOnly)
		admin.Get("/pending-doctors", cfg.DoctorsHandler.Pending)
		admin.Put("/verify-doctor/{id}", cfg.DoctorsHandler.Verify)
		admin.Get("/users", cfg.UsersHandler.ListUsers)
		admin.Put("/users/{id}/status", cfg.UsersHandler.SetStatus)
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
