package doctors

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/http/respond"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

// Handler serves the doctor directory and verification endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new doctors handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// ListResponse wraps a list of profiles.
type ListResponse struct {
	Count   int        `json:"count"`
	Doctors []*Profile `json:"doctors"`
}

// Search handles GET /doctors/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	filter := SearchFilter{
		Specialization: r.URL.Query().Get("specialization"),
		Name:           r.URL.Query().Get("name"),
	}
	profiles, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.writeError(w, err, "failed to search doctors")
		return
	}
	h.writeList(w, profiles)
}

// Get handles GET /doctors/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusNotFound, ErrDoctorNotFound.Error())
		return
	}
	profile, err := h.service.Profile(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "failed to load doctor")
		return
	}
	respond.JSON(w, http.StatusOK, profile)
}

// Me handles GET /doctors/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, identity.ErrUnauthorized.Error())
		return
	}
	profile, err := h.service.OwnProfile(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, err, "failed to load doctor profile")
		return
	}
	respond.JSON(w, http.StatusOK, profile)
}

type feeRequest struct {
	ConsultationFee *int64 `json:"consultationFee"`
}

// UpdateFee handles PUT /doctors/me/fee
func (h *Handler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, identity.ErrUnauthorized.Error())
		return
	}
	var req feeRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConsultationFee == nil {
		respond.Error(w, http.StatusBadRequest, "consultationFee is required")
		return
	}
	profile, err := h.service.UpdateFee(r.Context(), principal.UserID, *req.ConsultationFee)
	if err != nil {
		h.writeError(w, err, "failed to update fee")
		return
	}
	respond.JSON(w, http.StatusOK, profile)
}

// Pending handles GET /admin/pending-doctors
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.Pending(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to list pending doctors")
		return
	}
	h.writeList(w, profiles)
}

type verifyRequest struct {
	Status Decision `json:"status"`
}

type verifyResponse struct {
	Message string   `json:"message"`
	Doctor  *Profile `json:"doctor"`
}

// Verify handles PUT /admin/verify-doctor/{id}
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, identity.ErrUnauthorized.Error())
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusNotFound, ErrDoctorNotFound.Error())
		return
	}
	var req verifyRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := h.service.Verify(r.Context(), principal, id, req.Status)
	if err != nil {
		h.writeError(w, err, "failed to verify doctor")
		return
	}
	message := "doctor verified successfully"
	if req.Status == DecisionRejected {
		message = "doctor verification rejected"
	}
	respond.JSON(w, http.StatusOK, verifyResponse{Message: message, Doctor: profile})
}

func (h *Handler) writeList(w http.ResponseWriter, profiles []*Profile) {
	if profiles == nil {
		profiles = []*Profile{}
	}
	respond.JSON(w, http.StatusOK, ListResponse{Count: len(profiles), Doctors: profiles})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrDoctorNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidDecision), errors.Is(err, ErrInvalidFee):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		respond.Error(w, http.StatusInternalServerError, fallback)
	}
}
