package doctors

import "errors"

var (
	// ErrDoctorNotFound is returned when a profile does not exist or is not visible
	ErrDoctorNotFound = errors.New("doctor not found")

	// ErrInvalidDecision is returned when a verification status is not approved or rejected
	ErrInvalidDecision = errors.New("invalid status")

	// ErrInvalidFee is returned when a consultation fee is negative
	ErrInvalidFee = errors.New("consultationFee must be zero or greater")
)
