package appointments

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/http/respond"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

// Handler exposes the booking and cancellation engines over HTTP. Every
// route expects the access gate to have placed a principal on the context.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new appointments handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// MessageResponse pairs a status message with the affected appointment.
type MessageResponse struct {
	Message     string   `json:"message"`
	Appointment *Details `json:"appointment"`
}

// ListResponse wraps a list of appointments.
type ListResponse struct {
	Count        int        `json:"count"`
	Appointments []*Details `json:"appointments"`
}

// BookedSlotsResponse lists the held slots for a doctor on a date.
type BookedSlotsResponse struct {
	Date        string   `json:"date"`
	BookedSlots []string `json:"bookedSlots"`
}

// cancelRequest accepts the reason as cancellationReason, or reason for
// older clients.
type cancelRequest struct {
	CancellationReason string `json:"cancellationReason"`
	Reason             string `json:"reason"`
}

func (r cancelRequest) reason() string {
	if strings.TrimSpace(r.CancellationReason) != "" {
		return r.CancellationReason
	}
	return r.Reason
}

// Book handles POST /appointments/book
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req BookRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := h.service.Book(r.Context(), principal, req)
	if err != nil {
		h.writeError(w, err, "failed to book appointment")
		return
	}
	respond.JSON(w, http.StatusCreated, MessageResponse{Message: "Appointment booked successfully", Appointment: appt})
}

// BookedSlots handles GET /appointments/booked-slots?doctorId=&date=
func (h *Handler) BookedSlots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("doctorId") == "" || query.Get("date") == "" {
		respond.Error(w, http.StatusBadRequest, "doctorId and date are required")
		return
	}
	profileID, err := uuid.Parse(query.Get("doctorId"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "doctorId must be a valid id")
		return
	}
	date, err := ParseDate(query.Get("date"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	slots, err := h.service.BookedSlots(r.Context(), profileID, date)
	if err != nil {
		h.writeError(w, err, "failed to load booked slots")
		return
	}
	respond.JSON(w, http.StatusOK, BookedSlotsResponse{Date: date.Format("2006-01-02"), BookedSlots: slots})
}

// Mine handles GET /appointments/my
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	appts, err := h.service.ListForPatient(r.Context(), principal)
	if err != nil {
		h.writeError(w, err, "failed to list appointments")
		return
	}
	respond.JSON(w, http.StatusOK, ListResponse{Count: len(appts), Appointments: appts})
}

// DoctorSchedule handles GET /doctors/appointments/my
func (h *Handler) DoctorSchedule(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	appts, err := h.service.ListForDoctor(r.Context(), principal)
	if err != nil {
		h.writeError(w, err, "failed to list appointments")
		return
	}
	respond.JSON(w, http.StatusOK, ListResponse{Count: len(appts), Appointments: appts})
}

// Get handles GET /appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		h.writeError(w, err, "failed to load appointment")
		return
	}
	respond.JSON(w, http.StatusOK, appt)
}

// Cancel handles PUT /appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := h.service.Cancel(r.Context(), principal, id, req.reason())
	if err != nil {
		h.writeError(w, err, "failed to cancel appointment")
		return
	}
	respond.JSON(w, http.StatusOK, MessageResponse{Message: "Appointment cancelled successfully", Appointment: appt})
}

// Confirm handles PUT /appointments/{id}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Confirm, "Appointment confirmed")
}

// Complete handles PUT /appointments/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Complete, "Appointment completed")
}

type transitionFunc func(ctx context.Context, caller identity.Principal, id uuid.UUID) (*Details, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc, message string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	appt, err := apply(r.Context(), principal, id)
	if err != nil {
		h.writeError(w, err, "failed to update appointment")
		return
	}
	respond.JSON(w, http.StatusOK, MessageResponse{Message: message, Appointment: appt})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, identity.ErrUnauthorized.Error())
	}
	return principal, ok
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusNotFound, ErrAppointmentNotFound.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidOperation):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrConflict):
		respond.Error(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		respond.Error(w, http.StatusInternalServerError, fallback)
	}
}
