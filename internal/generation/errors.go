package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package
var (
	// ErrTransientFailure is returned for errors that might resolve on retry.
	// Every failure of a single generation attempt wraps it.
	ErrTransientFailure = errors.New("transient error during report generation")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = fmt.Errorf("%w: invalid response from language model", ErrTransientFailure)

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = fmt.Errorf("%w: content blocked by language model safety filters", ErrTransientFailure)

	// ErrTimeout is returned when a call does not finish before its profile deadline.
	ErrTimeout = fmt.Errorf("%w: generation timed out", ErrTransientFailure)

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
