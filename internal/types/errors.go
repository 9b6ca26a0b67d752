package types

import "errors"

// Error taxonomy shared across services. Handlers map these onto HTTP
// statuses; the ingest pipeline reports them per fan-out branch.
var (
	// ErrNotFound covers missing bundles, metrics, cards and relation targets.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a duplicate-create race on an idempotency key. It is
	// recovered internally by retrying the lookup and should not reach callers.
	ErrConflict = errors.New("conflict")
	// ErrValidation marks a malformed producer payload or request body.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration marks a malformed built-in bundle definition. Fatal at
	// startup; seeding must halt rather than skip.
	ErrConfiguration = errors.New("invalid configuration")
)
