package config

import "errors"

// ErrInvalidConfig is returned when configuration cannot be read or fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")
