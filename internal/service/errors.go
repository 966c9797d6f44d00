package service

import "errors"

var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrNotCancellable     = errors.New("booking can no longer be cancelled")
	ErrNotPatient         = errors.New("only patient accounts can book appointments")
	ErrInvalidCredentials = errors.New("email and password are required")
)

var (
	ErrInvalidEmail     = errors.New("that does not look like an email address")
	ErrNameRequired     = errors.New("full name is required")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrSamePassword     = errors.New("new password must differ from the current one")
	ErrInvalidCode      = errors.New("verification code must be 6 digits")
	ErrNothingToUpdate  = errors.New("nothing to update")
	ErrInvalidPhone     = errors.New("phone number must be 8 to 15 digits")
)
