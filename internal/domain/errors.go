package domain

import (
	"errors"
	"fmt"
)

// Domain errors are returned by command functions. They never leave state
// changed and map to client errors at the API boundary.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrUnknownMember     = errors.New("unknown member")
	ErrAlreadyAssigned   = errors.New("member is already assigned")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrAlreadyMember     = errors.New("person is already a member")
	ErrStatusInUse       = errors.New("status is assigned to tasks")
	ErrMissingProfile    = errors.New("missing profile")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidArgument   = errors.New("invalid argument")

	// ErrUninitialized is returned for commands against an aggregate that
	// has not been created yet.
	ErrUninitialized = fmt.Errorf("%w: aggregate not created", ErrNotFound)
)

// ErrCorruptHistory is returned when a stored event cannot be applied to the
// state replayed so far. It is an infrastructure error, not a domain error.
var ErrCorruptHistory = errors.New("event history cannot be applied")

var domainErrors = []error{
	ErrNotFound,
	ErrUnknownStatus,
	ErrUnknownMember,
	ErrAlreadyAssigned,
	ErrDuplicateUsername,
	ErrAlreadyMember,
	ErrStatusInUse,
	ErrMissingProfile,
	ErrAlreadyExists,
	ErrInvalidArgument,
}

// IsDomainError reports whether err is a validation failure raised by a command.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

