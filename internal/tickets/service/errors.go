package tickets

import (
	"errors"
	"fmt"
)

// Domain errors. The API maps each to a stable message and status code.
var (
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidTier      = errors.New("invalid ticket tier")
	ErrInvalidStatus    = errors.New("invalid ticket status")
	ErrCapacityExceeded = errors.New("this ticket tier is sold out")
	ErrDuplicateEmail   = errors.New("this email is already registered")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
	ErrConcurrentUpdate = errors.New("ticket was modified concurrently, please retry")
	ErrRegistrationBusy = errors.New("registration is busy, please retry")
	ErrPersistence      = errors.New("storage unavailable")
)

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
