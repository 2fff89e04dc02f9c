package studio

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("studio: no store configured")
	ErrStoreClosed = errors.New("studio: store closed")

	// Not found errors.
	ErrJobNotFound      = errors.New("studio: job not found")
	ErrTemplateNotFound = errors.New("studio: template not found")
	ErrErrorNotFound    = errors.New("studio: error log entry not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("studio: job already exists")

	// Validation errors.
	ErrUnknownGender   = errors.New("studio: unknown gender variant")
	ErrInvalidRequest  = errors.New("studio: invalid job request")
	ErrUnresolvedToken = errors.New("studio: prompt has unresolved placeholders")

	// State errors.
	ErrInvalidState = errors.New("studio: invalid state transition")

	// Quota errors.
	ErrQuotaExhausted = errors.New("studio: no generations left")
)
