package identity

import "errors"

var (
	// ErrInvalidInput is returned when registration or login fields are malformed
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmailTaken is returned when an account already uses the email
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrLicenseTaken is returned when a doctor registers an existing license number
	ErrLicenseTaken = errors.New("license number already registered")

	// ErrInvalidCredentials is returned when email or password do not match
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnauthorized is returned when a bearer token cannot be resolved
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInactive is returned when the account has been disabled
	ErrInactive = errors.New("account is deactivated")

	// ErrForbidden is returned when the caller lacks the required role
	ErrForbidden = errors.New("forbidden")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrAdminImmutable is returned when an admin account would be disabled
	ErrAdminImmutable = errors.New("cannot change admin status")
)

type fieldError struct {
	msg string
}

func (e *fieldError) Error() string { return e.msg }

func (e *fieldError) Unwrap() error { return ErrInvalidInput }

// invalid builds an ErrInvalidInput carrying a caller-facing message.
func invalid(msg string) error {
	return &fieldError{msg: msg}
}
