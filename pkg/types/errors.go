package types

import "errors"

// Error taxonomy shared by the lifecycle manager, relay and API layers.
// Lifecycle and relay failures are surfaced synchronously and never mutate
// state; AlreadyClaimed and InvalidState are informational outcomes that
// callers may treat as a conflict rather than a hard failure.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnauthorized     = errors.New("not authorized for this session")
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyClaimed   = errors.New("session already claimed by another instructor")
	ErrInvalidState     = errors.New("transition not legal from current state")
	ErrStoreUnavailable = errors.New("session log store unavailable")
)
