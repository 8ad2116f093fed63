package model

import "errors"

// Error kinds shared by every layer. Callers match them with errors.Is;
// implementations wrap them with fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrInvalidInput covers bad extensions, oversized content and unsatisfiable ranges.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound covers missing records and missing blobs.
	ErrNotFound = errors.New("not found")
	// ErrIOFailure covers storage errors not explained by the kinds above.
	ErrIOFailure = errors.New("io failure")
)
