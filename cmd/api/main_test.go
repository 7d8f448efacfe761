package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/appointments"
	appconfig "github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/config"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/events"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

func TestSetupMetricsExposesBookingMetrics(t *testing.T) {
	handler, bookingMetrics := setupMetrics()
	if handler == nil || bookingMetrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	bookingMetrics.ObserveBooking("booked", 0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "healthcare_appointments_bookings_total") {
		t.Fatalf("expected booking counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
	if db := openAuditDB("", logger); db != nil {
		t.Fatalf("expected nil audit db for empty URL")
	}
	if healthCheck(nil) != nil {
		t.Fatalf("expected no health probe without a pool")
	}
}

func TestBuildStoresInMemory(t *testing.T) {
	s := buildStores(nil)
	if _, ok := s.ledger.(*appointments.MemoryLedger); !ok {
		t.Fatalf("expected in-memory ledger, got %T", s.ledger)
	}
	if s.users == nil || s.doctors == nil {
		t.Fatalf("expected in-memory repositories")
	}
}

func TestSetupEventsWithoutQueueLogsOnly(t *testing.T) {
	pub := setupEvents(context.Background(), &appconfig.Config{}, logging.New("error"))
	if _, ok := pub.(*events.LogPublisher); !ok {
		t.Fatalf("expected log publisher, got %T", pub)
	}
}

func TestSetupEventsSQSPath(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:                 "us-east-1",
		AWSAccessKeyID:            "test",
		AWSSecretAccessKey:        "test",
		AWSEndpointOverride:       "http://localhost:4566",
		AppointmentEventsQueueURL: "http://localhost:4566/000000000000/appointment-events",
	}
	pub := setupEvents(context.Background(), cfg, logging.New("error"))
	if _, ok := pub.(*events.SQSPublisher); !ok {
		t.Fatalf("expected SQS publisher, got %T", pub)
	}
}
