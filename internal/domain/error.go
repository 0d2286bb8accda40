package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownSign     = errors.New("unknown zodiac sign")

	// Failure kinds. Wrap the cause next to the kind:
	//   fmt.Errorf("append prediction: %w: %w", domain.ErrStorage, err)
	ErrConfiguration = errors.New("configuration error")
	ErrGeneration    = errors.New("generation failed")
	ErrStorage       = errors.New("storage failure")
	ErrDelivery      = errors.New("delivery failed")

	ErrLockNotAcquired = errors.New("lock not acquired")
)
