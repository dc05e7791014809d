package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Per-entity data errors: collected and reported alongside partial
	// results, never fatal to the whole batch.
	ErrInsufficientHistory      = errors.New("insufficient history for requested lag order")
	ErrInsufficientSeriesLength = errors.New("series too short for backtest configuration")

	// Structural errors: fatal to the call that triggered them.
	ErrMissingFutureRegressors = errors.New("future exogenous features required but absent")
	ErrInsufficientResiduals   = errors.New("insufficient residuals for interval calibration")
	ErrConfigurationMismatch   = errors.New("strategy configuration mismatch")
	ErrUnknownFrequency        = errors.New("unrecognized frequency alias")
	ErrEmptyPanel              = errors.New("panel contains no observations")
	ErrNotFitted               = errors.New("forecaster has not been fitted")
	ErrDuplicateTimestamp      = errors.New("duplicate timestamp within entity")
	ErrSearchExhausted         = errors.New("search produced no successful evaluations")
)

// Error constructors with context
func NewInsufficientHistoryError(entity string, have, need int) error {
	return fmt.Errorf("%w: entity %s has %d observations, needs %d", ErrInsufficientHistory, entity, have, need)
}

func NewInsufficientSeriesLengthError(entity string, have, need int) error {
	return fmt.Errorf("%w: entity %s has %d observations, backtest needs %d", ErrInsufficientSeriesLength, entity, have, need)
}

func NewMissingFutureRegressorsError(entity string, at int64) error {
	return fmt.Errorf("%w: entity %s at time %d", ErrMissingFutureRegressors, entity, at)
}

func NewConfigMismatchError(field string, a, b interface{}) error {
	return fmt.Errorf("%w: %s differs between sub-strategies (%v vs %v)", ErrConfigurationMismatch, field, a, b)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// Error checking helpers
func IsEntityDataError(err error) bool {
	return errors.Is(err, ErrInsufficientHistory) ||
		errors.Is(err, ErrInsufficientSeriesLength)
}

func IsStructuralError(err error) bool {
	return errors.Is(err, ErrMissingFutureRegressors) ||
		errors.Is(err, ErrConfigurationMismatch) ||
		errors.Is(err, ErrUnknownFrequency) ||
		errors.Is(err, ErrNotFitted)
}
