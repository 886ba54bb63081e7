package task

import (
	"errors"
	"fmt"

	"github.com/oljefondvakt/fundwatch/internal/generation"
)

// Common errors returned by the task package
var (
	// ErrQueueClosed is returned when enqueuing after the result queue was closed.
	ErrQueueClosed = errors.New("result queue is closed")

	// ErrCountMismatch is returned when a reply does not hold one entry per batch item.
	ErrCountMismatch = fmt.Errorf("%w: report count does not match batch size", generation.ErrTransientFailure)

	// ErrSchemaMismatch is returned when a reply fails schema validation.
	ErrSchemaMismatch = fmt.Errorf("%w: report does not match schema", generation.ErrTransientFailure)

	// ErrInvalidConfig is returned for unusable run settings.
	ErrInvalidConfig = errors.New("invalid run configuration")
)
