package appointments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the status holds its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCompleted || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// CancelledBy names the party that cancelled.
type CancelledBy string

const (
	CancelledByPatient CancelledBy = "patient"
	CancelledByDoctor  CancelledBy = "doctor"
	CancelledByAdmin   CancelledBy = "admin"
)

// DefaultCancellationReason is recorded when the caller gives none.
const DefaultCancellationReason = "No reason provided"

// Party selects which side of an appointment a slot check is keyed on.
type Party string

const (
	PartyDoctor  Party = "doctor"
	PartyPatient Party = "patient"
)

// Appointment is a ledger entry. Date is midnight UTC; the time of day lives
// in Slot as an "HH:MM" token.
type Appointment struct {
	ID                 uuid.UUID   `json:"id"`
	PatientID          uuid.UUID   `json:"patientId"`
	DoctorID           uuid.UUID   `json:"doctorId"`
	DoctorProfileID    uuid.UUID   `json:"doctorProfileId"`
	Date               time.Time   `json:"appointmentDate"`
	Slot               string      `json:"appointmentTime"`
	Reason             string      `json:"reason"`
	Notes              string      `json:"notes"`
	ConsultationFee    int64       `json:"consultationFee"`
	Status             Status      `json:"status"`
	CancelledBy        CancelledBy `json:"cancelledBy,omitempty"`
	CancellationReason string      `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// Details is an appointment with display names resolved.
type Details struct {
	*Appointment
	PatientName    string `json:"patientName,omitempty"`
	DoctorName     string `json:"doctorName,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

// BookRequest is the booking payload.
type BookRequest struct {
	DoctorProfileID string `json:"doctorId" validate:"required"`
	Date            string `json:"appointmentDate" validate:"required"`
	Slot            string `json:"appointmentTime" validate:"required"`
	Reason          string `json:"reason" validate:"required,max=1000"`
	Notes           string `json:"notes" validate:"max=2000"`
}

// Normalize trims whitespace on every field.
func (r *BookRequest) Normalize() {
	r.DoctorProfileID = strings.TrimSpace(r.DoctorProfileID)
	r.Date = strings.TrimSpace(r.Date)
	r.Slot = strings.TrimSpace(r.Slot)
	r.Reason = strings.TrimSpace(r.Reason)
	r.Notes = strings.TrimSpace(r.Notes)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date at midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("appointmentDate must be YYYY-MM-DD")
}

// ParseSlot validates an "HH:MM" time of day and returns it in canonical
// two-digit form so equal slots compare equal.
func ParseSlot(raw string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("appointmentTime must be HH:MM")
	}
	return t.Format("15:04"), nil
}

// slotStart combines a calendar date and slot in loc.
func slotStart(date time.Time, slot string, loc *time.Location) time.Time {
	t, _ := time.Parse("15:04", slot)
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}
