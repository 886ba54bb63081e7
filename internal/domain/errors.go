// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyInvestmentID is returned when an investment has no identifier.
	ErrEmptyInvestmentID = errors.New("investment ID cannot be empty")

	// ErrEmptyInvestmentName is returned when an investment has no company name.
	ErrEmptyInvestmentName = errors.New("investment name cannot be empty")

	// ErrInvalidShallowState is returned when a shallow state is not one of the known values.
	ErrInvalidShallowState = errors.New("invalid shallow state")

	// ErrInvalidDeepState is returned when a deep state is not one of the known values.
	ErrInvalidDeepState = errors.New("invalid deep state")

	// ErrInvalidTransition is returned when a shallow state change skips the lifecycle.
	ErrInvalidTransition = errors.New("invalid shallow state transition")
)
