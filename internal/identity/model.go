package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the access level attached to an account.
type Role string

const (
	RolePatient   Role = "patient"
	RoleDoctor    Role = "doctor"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// User is an account in the identity store.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RegisterRequest is the public sign-up payload. Doctor fields are only read
// when Role is doctor.
type RegisterRequest struct {
	Username        string   `json:"username" validate:"required,max=100"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required,min=6"`
	Role            Role     `json:"role" validate:"required,oneof=patient doctor moderator"`
	Phone           string   `json:"phone" validate:"omitempty,max=32"`
	Specialization  string   `json:"specialization"`
	LicenseNumber   string   `json:"licenseNumber"`
	Qualifications  []string `json:"qualifications"`
	ExperienceYears int      `json:"experience" validate:"gte=0"`
	Bio             string   `json:"bio"`
	ConsultationFee int64    `json:"consultationFee" validate:"gte=0"`
}

// Normalize trims fields and lower-cases the email.
func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Specialization = strings.TrimSpace(r.Specialization)
	r.LicenseNumber = strings.TrimSpace(r.LicenseNumber)
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
}

// DoctorRegistration carries the profile fields captured at sign-up.
type DoctorRegistration struct {
	Specialization  string
	LicenseNumber   string
	Qualifications  []string
	ExperienceYears int
	Bio             string
	ConsultationFee int64
}

// DoctorInfo is the verification summary returned to doctors at login.
type DoctorInfo struct {
	ProfileID      uuid.UUID `json:"id"`
	IsVerified     bool      `json:"isVerified"`
	Specialization string    `json:"specialization"`
}

// LoginRequest is the credential payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token      string      `json:"token"`
	ExpiresAt  time.Time   `json:"expiresAt"`
	User       *User       `json:"user"`
	DoctorInfo *DoctorInfo `json:"doctorInfo,omitempty"`
}

// Identity is what the gate needs to admit a caller.
type Identity struct {
	ID       uuid.UUID
	Role     Role
	IsActive bool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
