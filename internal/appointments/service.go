package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/doctors"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/events"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/observability/metrics"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/validation"
)

var tracer = otel.Tracer("healthcare.internal.appointments")

// Directory resolves doctor profiles. Lookup may be served from a cache;
// Current always reflects the stored profile.
type Directory interface {
	Lookup(ctx context.Context, profileID uuid.UUID) (*doctors.Listing, error)
	Current(ctx context.Context, profileID uuid.UUID) (*doctors.Listing, error)
}

// People resolves account display names.
type People interface {
	DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Auditor records cancellations in the compliance trail.
type Auditor interface {
	LogAppointmentCancelled(ctx context.Context, actorID, appointmentID, cancelledBy, reason string) error
}

// Config carries the optional collaborators of the service.
type Config struct {
	Publisher events.Publisher
	Auditor   Auditor
	Metrics   *metrics.BookingMetrics
	// Location interprets slot times when checking they are in the future.
	// Defaults to UTC.
	Location *time.Location
}

// Service books, cancels and transitions appointments.
type Service struct {
	ledger    Ledger
	directory Directory
	people    People
	publisher events.Publisher
	audit     Auditor
	metrics   *metrics.BookingMetrics
	loc       *time.Location
	logger    *logging.Logger
	now       func() time.Time
}

// NewService wires the booking and cancellation engines.
func NewService(ledger Ledger, directory Directory, people People, cfg Config, logger *logging.Logger) *Service {
	if ledger == nil {
		panic("appointments: ledger required")
	}
	if directory == nil {
		panic("appointments: doctor directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		ledger:    ledger,
		directory: directory,
		people:    people,
		publisher: cfg.Publisher,
		audit:     cfg.Auditor,
		metrics:   cfg.Metrics,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// Book creates a pending appointment for the caller.
func (s *Service) Book(ctx context.Context, caller identity.Principal, req BookRequest) (*Details, error) {
	ctx, span := tracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(attribute.String("healthcare.patient_id", caller.UserID.String()))

	started := time.Now()
	appt, listing, err := s.book(ctx, caller, req)
	s.metrics.ObserveBooking(bookingOutcome(err), time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("healthcare.appointment_id", appt.ID.String()))

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", appt.DoctorID,
		"date", appt.Date.Format("2006-01-02"),
		"slot", appt.Slot,
	)
	s.publish(ctx, events.AppointmentBooked, appt)

	details := s.enrich(ctx, []*Appointment{appt})[0]
	details.Specialization = listing.Specialization
	if details.DoctorName == "" {
		details.DoctorName = listing.Name
	}
	return details, nil
}

func (s *Service) book(ctx context.Context, caller identity.Principal, req BookRequest) (*Appointment, *doctors.Listing, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, nil, invalidInput(err.Error())
	}
	profileID, err := uuid.Parse(req.DoctorProfileID)
	if err != nil {
		return nil, nil, invalidInput("doctorId must be a valid id")
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, nil, invalidInput(err.Error())
	}
	slot, err := ParseSlot(req.Slot)
	if err != nil {
		return nil, nil, invalidInput(err.Error())
	}

	listing, err := s.lookupDoctor(ctx, profileID, s.directory.Current)
	if err != nil {
		return nil, nil, err
	}
	if listing.AccountID == caller.UserID {
		return nil, nil, ErrSelfBooking
	}

	now := s.now()
	if !slotStart(date, slot, s.loc).After(now) {
		return nil, nil, ErrPastSlot
	}

	taken, err := s.ledger.SlotTaken(ctx, PartyDoctor, listing.AccountID, date, slot)
	if err != nil {
		return nil, nil, fmt.Errorf("appointments: check doctor slot: %w", err)
	}
	if taken {
		return nil, nil, ErrSlotTaken
	}
	busy, err := s.ledger.SlotTaken(ctx, PartyPatient, caller.UserID, date, slot)
	if err != nil {
		return nil, nil, fmt.Errorf("appointments: check patient slot: %w", err)
	}
	if busy {
		return nil, nil, ErrPatientBusy
	}

	appt := &Appointment{
		ID:              uuid.New(),
		PatientID:       caller.UserID,
		DoctorID:        listing.AccountID,
		DoctorProfileID: listing.ProfileID,
		Date:            date,
		Slot:            slot,
		Reason:          req.Reason,
		Notes:           req.Notes,
		ConsultationFee: listing.ConsultationFee,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.ledger.Insert(ctx, appt); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return appt, listing, nil
}

// Cancel cancels an active appointment on behalf of its patient, its doctor
// or an admin.
func (s *Service) Cancel(ctx context.Context, caller identity.Principal, id uuid.UUID, reason string) (*Details, error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("healthcare.appointment_id", id.String()))

	appt, err := s.cancel(ctx, caller, id, reason)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveCancellation(string(appt.CancelledBy))
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "cancelled_by", appt.CancelledBy)
	if s.audit != nil {
		if err := s.audit.LogAppointmentCancelled(ctx, caller.UserID.String(), appt.ID.String(), string(appt.CancelledBy), appt.CancellationReason); err != nil {
			s.logger.Warn("failed to audit cancellation", "appointment_id", appt.ID, "error", err)
		}
	}
	s.publish(ctx, events.AppointmentCancelled, appt)
	return s.enrich(ctx, []*Appointment{appt})[0], nil
}

func (s *Service) cancel(ctx context.Context, caller identity.Principal, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	by := cancelledBy(caller, appt)
	if by == "" {
		return nil, ErrNotPermitted
	}
	if err := cancellable(appt.Status); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = DefaultCancellationReason
	}

	updated, err := s.ledger.Cancel(ctx, id, by, reason, s.now())
	if errors.Is(err, errNotApplied) {
		// Lost a race; report against the status that won.
		current, getErr := s.get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if err := cancellable(current.Status); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyCancelled
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: cancel: %w", err)
	}
	return updated, nil
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, caller identity.Principal, id uuid.UUID) (*Details, error) {
	return s.transition(ctx, caller, id, StatusConfirmed)
}

// Complete marks a pending or confirmed appointment completed.
func (s *Service) Complete(ctx context.Context, caller identity.Principal, id uuid.UUID) (*Details, error) {
	return s.transition(ctx, caller, id, StatusCompleted)
}

func (s *Service) transition(ctx context.Context, caller identity.Principal, id uuid.UUID, to Status) (*Details, error) {
	ctx, span := tracer.Start(ctx, "appointments.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("healthcare.appointment_id", id.String()),
		attribute.String("healthcare.target_status", string(to)),
	)

	appt, err := s.get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if appt.DoctorID != caller.UserID && !caller.HasRole(identity.RoleAdmin) {
		return nil, ErrNotPermitted
	}
	if !CanTransition(appt.Status, to) {
		return nil, invalidTransition(appt.Status, to)
	}

	updated, err := s.ledger.Transition(ctx, id, appt.Status, to, s.now())
	if errors.Is(err, errNotApplied) {
		current, getErr := s.get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, invalidTransition(current.Status, to)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: transition: %w", err)
	}

	s.metrics.ObserveTransition(string(to))
	s.logger.Info("appointment status changed", "appointment_id", id, "from", appt.Status, "to", to)
	eventType := events.AppointmentConfirmed
	if to == StatusCompleted {
		eventType = events.AppointmentCompleted
	}
	s.publish(ctx, eventType, updated)
	return s.enrich(ctx, []*Appointment{updated})[0], nil
}

// Get returns an appointment the caller is a party to. Admins see all.
func (s *Service) Get(ctx context.Context, caller identity.Principal, id uuid.UUID) (*Details, error) {
	appt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != caller.UserID && appt.DoctorID != caller.UserID && !caller.HasRole(identity.RoleAdmin) {
		return nil, ErrNotPermitted
	}
	return s.enrich(ctx, []*Appointment{appt})[0], nil
}

// ListForPatient returns the caller's appointments as a patient, newest first.
func (s *Service) ListForPatient(ctx context.Context, caller identity.Principal) ([]*Details, error) {
	appts, err := s.ledger.ListByPatient(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by patient: %w", err)
	}
	return s.enrich(ctx, appts), nil
}

// ListForDoctor returns the caller's appointments as a doctor, oldest first.
func (s *Service) ListForDoctor(ctx context.Context, caller identity.Principal) ([]*Details, error) {
	appts, err := s.ledger.ListByDoctor(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by doctor: %w", err)
	}
	return s.enrich(ctx, appts), nil
}

// BookedSlots lists the slots held for a doctor profile on date.
func (s *Service) BookedSlots(ctx context.Context, profileID uuid.UUID, date time.Time) ([]string, error) {
	listing, err := s.lookupDoctor(ctx, profileID, s.directory.Lookup)
	if err != nil {
		return nil, err
	}
	slots, err := s.ledger.BookedSlots(ctx, listing.AccountID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	return slots, nil
}

// SlotTaken reports whether party id already holds an active appointment at
// date and slot.
func (s *Service) SlotTaken(ctx context.Context, party Party, id uuid.UUID, date time.Time, slot string) (bool, error) {
	taken, err := s.ledger.SlotTaken(ctx, party, id, date, slot)
	if err != nil {
		return false, fmt.Errorf("appointments: slot check: %w", err)
	}
	return taken, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.ledger.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

type lookupFunc func(ctx context.Context, profileID uuid.UUID) (*doctors.Listing, error)

func (s *Service) lookupDoctor(ctx context.Context, profileID uuid.UUID, lookup lookupFunc) (*doctors.Listing, error) {
	listing, err := lookup(ctx, profileID)
	if err != nil {
		if errors.Is(err, doctors.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("appointments: lookup doctor: %w", err)
	}
	return listing, nil
}

// enrich attaches display names. Name resolution failures are logged and
// leave names blank.
func (s *Service) enrich(ctx context.Context, appts []*Appointment) []*Details {
	out := make([]*Details, 0, len(appts))
	if len(appts) == 0 {
		return out
	}

	var names map[uuid.UUID]string
	if s.people != nil {
		seen := make(map[uuid.UUID]struct{})
		ids := make([]uuid.UUID, 0, len(appts)*2)
		for _, a := range appts {
			for _, id := range []uuid.UUID{a.PatientID, a.DoctorID} {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
		var err error
		names, err = s.people.DisplayNames(ctx, ids)
		if err != nil {
			s.logger.Warn("failed to resolve display names", "error", err)
		}
	}

	specializations := make(map[uuid.UUID]string)
	for _, a := range appts {
		spec, ok := specializations[a.DoctorProfileID]
		if !ok {
			if listing, err := s.directory.Lookup(ctx, a.DoctorProfileID); err == nil {
				spec = listing.Specialization
			}
			specializations[a.DoctorProfileID] = spec
		}
		out = append(out, &Details{
			Appointment:    a,
			PatientName:    names[a.PatientID],
			DoctorName:     names[a.DoctorID],
			Specialization: spec,
		})
	}
	return out
}

func (s *Service) publish(ctx context.Context, eventType string, appt *Appointment) {
	if s.publisher == nil {
		return
	}
	event := events.AppointmentEventV1{
		EventID:         uuid.NewString(),
		EventType:       eventType,
		AppointmentID:   appt.ID.String(),
		PatientID:       appt.PatientID.String(),
		DoctorID:        appt.DoctorID.String(),
		DoctorProfileID: appt.DoctorProfileID.String(),
		Date:            appt.Date.Format("2006-01-02"),
		Slot:            appt.Slot,
		Status:          string(appt.Status),
		ConsultationFee: appt.ConsultationFee,
		CancelledBy:     string(appt.CancelledBy),
		OccurredAt:      s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish appointment event", "event_type", eventType, "appointment_id", appt.ID, "error", err)
	}
}

// cancelledBy picks the cancelling party: patient, then doctor, then admin.
func cancelledBy(caller identity.Principal, appt *Appointment) CancelledBy {
	switch {
	case caller.UserID == appt.PatientID:
		return CancelledByPatient
	case caller.UserID == appt.DoctorID:
		return CancelledByDoctor
	case caller.HasRole(identity.RoleAdmin):
		return CancelledByAdmin
	}
	return ""
}

func cancellable(status Status) error {
	switch status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusCompleted:
		return ErrCannotCancelCompleted
	}
	return nil
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidOperation):
		return "rejected"
	}
	return "error"
}
