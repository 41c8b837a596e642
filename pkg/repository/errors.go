package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput is returned when query options fail validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownColumn is returned when a sort or group column is not whitelisted
	ErrUnknownColumn = errors.New("unknown column")
)

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
