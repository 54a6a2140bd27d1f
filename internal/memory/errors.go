package memory

import "errors"

// Failure taxonomy for the memory subsystem. Callers branch with errors.Is;
// the Tools facade flattens these into the descriptive strings the agent
// loop expects. Nothing in this package panics across its public surface.
var (
	// ErrUnavailable means a backend (vector index, embedding function or
	// metadata store) could not be reached or initialized.
	ErrUnavailable = errors.New("vector backend unavailable")

	// ErrNotFound means a deletion filter matched no records.
	ErrNotFound = errors.New("no matching memory found")

	// ErrInvalidFilter means a deletion was requested without a subject.
	// This is a guardrail against accidental full wipes, not a transient
	// failure.
	ErrInvalidFilter = errors.New("deletion requires a subject filter")
)
