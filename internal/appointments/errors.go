package appointments

import "errors"

// Error kinds. Every error returned by the service wraps exactly one of these.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrInvalidOperation = errors.New("invalid operation")
)

var (
	// ErrAppointmentNotFound is returned when an appointment does not exist
	ErrAppointmentNotFound = newKindError(ErrNotFound, "appointment not found")

	// ErrDoctorNotFound is returned when the doctor profile does not exist
	ErrDoctorNotFound = newKindError(ErrNotFound, "doctor not found")

	// ErrSelfBooking is returned when a doctor books with their own profile
	ErrSelfBooking = newKindError(ErrInvalidOperation, "cannot book appointment with yourself")

	// ErrPastSlot is returned when the requested date and time are not in the future
	ErrPastSlot = newKindError(ErrInvalidInput, "appointment date and time must be in the future")

	// ErrSlotTaken is returned when the doctor already holds the slot
	ErrSlotTaken = newKindError(ErrConflict, "this time slot is already booked, please choose another time")

	// ErrPatientBusy is returned when the patient already holds the slot with any doctor
	ErrPatientBusy = newKindError(ErrConflict, "you already have an appointment at this time")

	// ErrAlreadyCancelled is returned when cancelling a cancelled appointment
	ErrAlreadyCancelled = newKindError(ErrInvalidOperation, "appointment is already cancelled")

	// ErrCannotCancelCompleted is returned when cancelling a completed appointment
	ErrCannotCancelCompleted = newKindError(ErrInvalidOperation, "cannot cancel a completed appointment")

	// ErrNotPermitted is returned when the caller is not a party to the appointment
	ErrNotPermitted = newKindError(ErrForbidden, "you don't have permission to access this appointment")
)

// errNotApplied is returned by a ledger when a conditional update matched no
// row because the status changed underneath it.
var errNotApplied = errors.New("appointments: status precondition not met")

type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) *kindError {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func invalidInput(msg string) error {
	return newKindError(ErrInvalidInput, msg)
}

func invalidTransition(from, to Status) error {
	return newKindError(ErrInvalidOperation, "cannot change appointment from "+string(from)+" to "+string(to))
}
