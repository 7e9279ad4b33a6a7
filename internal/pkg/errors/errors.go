package errors

import "errors"

var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("insufficient permission")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrServiceUnavailable covers storage and collaborator failures.
	// Quota checks that hit it must deny, never admit.
	ErrServiceUnavailable = errors.New("service unavailable")
)

type Error struct {
	Err     error
	Message string
	Code    string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
		Code:    "INTERNAL_ERROR",
	}
}
