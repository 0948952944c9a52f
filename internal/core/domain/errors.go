package domain

import "errors"

var (
	// ErrNotFound is returned when a restaurant or focus target cannot be resolved.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCoordinates is returned for non-finite or out-of-range coordinates.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrInvalidPostalCode is returned for blank or malformed postal codes.
	ErrInvalidPostalCode = errors.New("invalid postal code")

	// ErrInvalidPreferences is returned when diner preferences fail validation.
	ErrInvalidPreferences = errors.New("invalid preferences")
)
