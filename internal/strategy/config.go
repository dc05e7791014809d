// Package strategy implements the multi-horizon forecasting strategies:
// recursive, direct, and their unweighted ensemble. One global model (or
// one per horizon for direct) is fit across all entities jointly.
package strategy

import (
	"fmt"

	"gocast/domain/core"
	"gocast/ports"
)

// Kind selects the multi-horizon forecasting strategy
type Kind string

const (
	Recursive Kind = "recursive"
	Direct    Kind = "direct"
	Ensemble  Kind = "ensemble"
)

// Config is the immutable description of a forecasting strategy. A
// validated Config produces an Engine; the Engine never mutates it.
type Config struct {
	Strategy Kind
	Lags     int
	Freq     core.Frequency

	// MaxHorizons bounds the number of independently trained estimators
	// for direct and ensemble strategies. Requests beyond it reuse the
	// last trained horizon's model and are flagged.
	MaxHorizons int

	// Regressor is the injected estimator-fitting capability. It must be
	// safe to invoke concurrently across entities and backtest windows.
	Regressor ports.Regressor

	// MaxParallel bounds concurrent per-entity work; <= 0 uses a default.
	MaxParallel int
}

const defaultMaxParallel = 8

func (c Config) maxParallel() int {
	if c.MaxParallel > 0 {
		return c.MaxParallel
	}
	return defaultMaxParallel
}

// Validate checks the configuration. Structural problems here are fatal at
// construction time, never silently resolved.
func (c Config) Validate() error {
	switch c.Strategy {
	case Recursive, Direct, Ensemble:
	default:
		return core.NewValidationError("strategy", fmt.Sprintf("unknown strategy %q", c.Strategy))
	}
	if c.Lags < 1 {
		return core.NewValidationError("lags", fmt.Sprintf("%d < 1", c.Lags))
	}
	if c.Freq.IsZero() {
		return core.NewValidationError("freq", "frequency is required")
	}
	if c.Strategy != Recursive && c.MaxHorizons < 1 {
		return core.NewValidationError("max_horizons", fmt.Sprintf("%d < 1 for %s strategy", c.MaxHorizons, c.Strategy))
	}
	if c.Regressor == nil {
		return core.NewValidationError("regressor", "estimator capability is required")
	}
	return nil
}
