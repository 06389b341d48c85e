package chore

import "errors"

var (
	ErrChoreNotFound     = errors.New("chore not found")
	ErrHouseholdNotFound = errors.New("household not found")
	ErrNotMember         = errors.New("not a member of this household")
	ErrNotAdmin          = errors.New("admin role required")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotYetAvailable   = errors.New("chore is not available yet")
	ErrValidation        = errors.New("validation failed")
)
