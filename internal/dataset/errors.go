package dataset

import "errors"

var (
	// ErrInvalidSnapshot is returned when a snapshot file cannot be decoded
	// or holds an invalid investment.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrInvalidCSV is returned when the holdings CSV is malformed.
	ErrInvalidCSV = errors.New("invalid holdings csv")
)
