package doctors

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a doctor's directory entry joined with the owning account.
type Profile struct {
	ID              uuid.UUID  `json:"id"`
	AccountID       uuid.UUID  `json:"userId"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	Specialization  string     `json:"specialization"`
	LicenseNumber   string     `json:"licenseNumber,omitempty"`
	Qualifications  []string   `json:"qualifications"`
	ExperienceYears int        `json:"experience"`
	Bio             string     `json:"bio"`
	ConsultationFee int64      `json:"consultationFee"`
	IsVerified      bool       `json:"isVerified"`
	VerifiedBy      *uuid.UUID `json:"verifiedBy,omitempty"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Listing is the subset of a profile the booking engine needs. It is what
// the directory cache stores.
type Listing struct {
	ProfileID       uuid.UUID `json:"profileId"`
	AccountID       uuid.UUID `json:"accountId"`
	Name            string    `json:"name"`
	Specialization  string    `json:"specialization"`
	ConsultationFee int64     `json:"consultationFee"`
	IsVerified      bool      `json:"isVerified"`
}

// Listing projects the profile for lookups.
func (p *Profile) Listing() *Listing {
	return &Listing{
		ProfileID:       p.ID,
		AccountID:       p.AccountID,
		Name:            p.Name,
		Specialization:  p.Specialization,
		ConsultationFee: p.ConsultationFee,
		IsVerified:      p.IsVerified,
	}
}

// SearchFilter narrows the public doctor search. Name matches either the
// doctor's username or specialization.
type SearchFilter struct {
	Specialization string
	Name           string
}

// Decision is an admin verdict on a pending profile.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)
