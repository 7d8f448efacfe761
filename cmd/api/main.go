package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/cmd/mainconfig"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/api/router"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/app/bootstrap"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/appointments"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/compliance"
	appconfig "github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/config"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/doctors"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/events"
	httpmiddleware "github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/http/middleware"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/observability/metrics"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting healthcare appointment API",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	auditDB := openAuditDB(cfg.DatabaseURL, logger)
	if auditDB != nil {
		defer auditDB.Close()
	}
	stores := buildStores(pool)
	audit := compliance.NewAuditService(auditDB)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	metricsHandler, bookingMetrics := setupMetrics()
	publisher := setupEvents(ctx, cfg, logger)

	directory := doctors.NewService(stores.doctors, bootstrap.BuildListingCache(redisClient, cfg), audit, logger)
	users := identity.NewService(stores.users, identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), directory, audit, logger)
	booking := appointments.NewService(stores.ledger, directory, users, appointments.Config{
		Publisher: publisher,
		Auditor:   audit,
		Metrics:   bookingMetrics,
		Location:  cfg.Location(),
	}, logger)

	if err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Error("failed to reconcile admin account", "error", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	limiter := httpmiddleware.NewRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
	go limiter.Run(stop)

	r := router.New(&router.Config{
		Logger:              logger,
		Authenticator:       users,
		UsersHandler:        identity.NewHandler(users, logger),
		DoctorsHandler:      doctors.NewHandler(directory, logger),
		AppointmentsHandler: appointments.NewHandler(booking, logger),
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		AuthRateLimiter:     limiter,
		HealthCheck:         healthCheck(pool),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

type stores struct {
	users   identity.Repository
	doctors doctors.Repository
	ledger  appointments.Ledger
}

// buildStores picks Postgres when a pool is available and in-memory stores
// otherwise.
func buildStores(pool *pgxpool.Pool) stores {
	if pool == nil {
		return stores{
			users:   identity.NewInMemoryRepository(),
			doctors: doctors.NewInMemoryRepository(),
			ledger:  appointments.NewMemoryLedger(),
		}
	}
	return stores{
		users:   identity.NewPostgresRepository(pool),
		doctors: doctors.NewPostgresRepository(pool),
		ledger:  appointments.NewPostgresLedger(pool),
	}
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to reach postgres", "error", err)
		os.Exit(1)
	}
	return pool
}

// openAuditDB opens the database/sql handle the compliance trail writes
// through. It shares DATABASE_URL with the pool.
func openAuditDB(url string, logger *logging.Logger) *sql.DB {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		logger.Error("failed to open audit database", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(4)
	return db
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(registry)
}

func setupEvents(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) events.Publisher {
	if strings.TrimSpace(cfg.AppointmentEventsQueueURL) == "" {
		return bootstrap.BuildEventPublisher(nil, cfg, logger)
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	return bootstrap.BuildEventPublisher(&awsCfg, cfg, logger)
}

func healthCheck(pool *pgxpool.Pool) func(context.Context) error {
	if pool == nil {
		return nil
	}
	return pool.Ping
}
