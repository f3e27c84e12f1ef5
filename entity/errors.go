package entity

import "errors"

// Domain error taxonomy. Stores and core return these sentinels so the HTTP
// layer can map them to status codes with errors.Is instead of matching
// driver-specific failures.
var (
	ErrInviteInvalid    = errors.New("invalid or expired invite")
	ErrCapacityExceeded = errors.New("participant limit reached")
	ErrEventNotFound    = errors.New("event not found")

	// ErrAlreadyJoined marks idempotent re-entry into an event; the join
	// flow treats it as success.
	ErrAlreadyJoined = errors.New("already joined")

	ErrInvalidEquityDivision = errors.New("equity division must be at least 1")
	ErrAdminNotConfigured    = errors.New("admin account not set")
	ErrTimeout               = errors.New("operation timed out")

	// ErrConflict is a unique-constraint violation surfaced as a typed
	// error; callers recover it into the idempotent path where possible.
	ErrConflict = errors.New("storage conflict")
)
