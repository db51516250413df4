package domain

import "errors"

var (
	// ErrNotFound is returned when a task does not exist or belongs to another owner
	ErrNotFound = errors.New("task not found")

	// ErrInvalidArgument is returned for malformed positions, missing fields and invalid dates
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPersistence is returned when the storage backend is unreachable or fails
	ErrPersistence = errors.New("persistence failure")

	// ErrDeliveryFailed is returned by delivery adapters when a reminder could not be sent.
	// It never reaches an HTTP caller.
	ErrDeliveryFailed = errors.New("reminder delivery failed")

	// ErrUnauthenticated is returned when a request carries no usable owner identity
	ErrUnauthenticated = errors.New("unauthenticated")
)
