package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/http/respond"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

// Authenticator resolves a bearer token to the calling account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (identity.Principal, error)
}

// Authenticate requires a valid bearer token and places the caller on the
// request context. Disabled accounts get 403, everything else that fails 401.
func Authenticate(auth Authenticator, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				respond.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			principal, err := auth.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, identity.ErrInactive):
				respond.Error(w, http.StatusForbidden, err.Error())
				return
			case errors.Is(err, identity.ErrUnauthorized):
				respond.Error(w, http.StatusUnauthorized, "invalid token")
				return
			default:
				logger.Error("authentication failed", "error", err, "path", r.URL.Path)
				respond.Error(w, http.StatusInternalServerError, "authentication failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects callers whose role is not listed. It must run after
// Authenticate.
func RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := identity.PrincipalFromContext(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, identity.ErrUnauthorized.Error())
				return
			}
			if !principal.HasRole(roles...) {
				respond.Error(w, http.StatusForbidden, "access denied for role "+string(principal.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
