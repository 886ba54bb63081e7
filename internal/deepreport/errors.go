package deepreport

import "errors"

var (
	// ErrInvalidConfig is returned when the service is missing a collaborator.
	ErrInvalidConfig = errors.New("invalid deep report configuration")

	// ErrInvalidReport is returned when the model reply is not a JSON object
	// or fails schema validation.
	ErrInvalidReport = errors.New("invalid deep report")

	// ErrPersist is returned when the outcome could not be stored.
	ErrPersist = errors.New("failed to store deep report")
)
