package workshop

import "errors"

var (
	// ErrTemplateNotFound means no prompt template exists for the requested
	// step. Fatal for the request.
	ErrTemplateNotFound = errors.New("prompt template not found")
	// ErrReferenceDataUnavailable marks missing technology or sector content.
	// Callers degrade to empty content.
	ErrReferenceDataUnavailable = errors.New("reference data unavailable")
	// ErrGenerationFailed wraps any provider failure. Fatal for the request.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrPersistenceFailed marks a write that failed after generation
	// succeeded. Logged, never surfaced.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrUnauthorizedTransition marks a non-moderator advance. Never surfaced.
	ErrUnauthorizedTransition = errors.New("unauthorized transition")

	ErrInputsIncomplete = errors.New("inputs incomplete")
	ErrSessionNotFound  = errors.New("session not found")
	ErrEmptyText        = errors.New("text is empty")
)
