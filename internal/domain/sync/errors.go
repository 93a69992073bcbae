package sync

import "errors"

var (
	// ErrProfileNotFound is returned when no activity profile exists for a tenant
	ErrProfileNotFound = errors.New("sync: activity profile not found")

	// ErrSessionNotFound is returned when a sync session does not exist
	ErrSessionNotFound = errors.New("sync: session not found")

	// ErrInvalidPlatform is returned for unknown platform codes
	ErrInvalidPlatform = errors.New("sync: invalid platform")

	// ErrInvalidActivityType is returned for unknown activity kinds
	ErrInvalidActivityType = errors.New("sync: invalid activity type")

	// ErrInvalidTransition is returned when a session status transition is not allowed
	ErrInvalidTransition = errors.New("sync: invalid session status transition")

	// ErrSessionTerminal is returned when mutating a completed/failed/cancelled session
	ErrSessionTerminal = errors.New("sync: session is in a terminal state")

	// ErrConcurrentModification is returned when an optimistic write loses the race
	ErrConcurrentModification = errors.New("sync: record was modified by another process")
)
