package identity

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/http/respond"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

// Handler serves account endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new identity handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type registerResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// Register handles POST /users/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "failed to register user")
		return
	}
	message := "user registered successfully"
	if user.Role == RoleDoctor {
		message = "doctor registered successfully, pending admin verification"
	}
	respond.JSON(w, http.StatusCreated, registerResponse{Message: message, User: user})
}

// Login handles POST /users/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "failed to log in")
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

// Profile handles GET /users/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, ErrUnauthorized.Error())
		return
	}
	user, err := h.service.Profile(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, err, "failed to load profile")
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

// ListUsersResponse is the response for listing accounts
type ListUsersResponse struct {
	Users []*User `json:"users"`
	Count int     `json:"count"`
}

// ListUsers handles GET /admin/users?role=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), Role(r.URL.Query().Get("role")))
	if err != nil {
		h.writeError(w, err, "failed to list users")
		return
	}
	if users == nil {
		users = []*User{}
	}
	respond.JSON(w, http.StatusOK, ListUsersResponse{Users: users, Count: len(users)})
}

type statusRequest struct {
	IsActive *bool `json:"isActive"`
}

// SetStatus handles PUT /admin/users/{id}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, ErrUnauthorized.Error())
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req statusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		respond.Error(w, http.StatusBadRequest, "isActive is required")
		return
	}
	user, err := h.service.SetActive(r.Context(), principal, id, *req.IsActive)
	if err != nil {
		h.writeError(w, err, "failed to update user status")
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrAdminImmutable):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrLicenseTaken):
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		respond.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInactive), errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUserNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		respond.Error(w, http.StatusInternalServerError, fallback)
	}
}
