package household

import "errors"

var (
	ErrHouseholdNotFound = errors.New("household not found")
	ErrNotMember         = errors.New("not a member of this household")
	ErrNotAdmin          = errors.New("admin role required")
	ErrInvalidCode       = errors.New("invalid invite code")
	ErrAlreadyMember     = errors.New("already a member of this household")
	ErrLastAdmin         = errors.New("household must keep at least one admin")
	ErrCodeGeneration    = errors.New("invite code generation failed")
	ErrInviteUnavailable = errors.New("email invites are not configured")
	ErrValidation        = errors.New("validation failed")
)
