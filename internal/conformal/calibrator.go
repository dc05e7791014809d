// Package conformal turns backtest residuals into additive prediction
// intervals, EnbPI-style: empirical residual quantiles per entity and
// horizon offset are added to the point forecast. No distributional
// assumptions are made.
package conformal

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"gocast/domain/core"
	"gocast/domain/forecast"
	"gocast/domain/panel"
)

// DefaultMinResiduals is the minimum residual count below which an
// entity/horizon group falls back to the pooled estimate.
const DefaultMinResiduals = 10

// Config controls interval calibration
type Config struct {
	// Alphas are the target quantile levels in (0,1), ascending. The
	// first and last become the interval's lower and upper offsets.
	Alphas []float64

	// MinResiduals is the per-group sample floor; <= 0 uses the default
	MinResiduals int

	// PoolEntities pools residuals across entities per horizon instead of
	// calibrating per entity, trading locality for sample size.
	PoolEntities bool
}

func (c Config) minResiduals() int {
	if c.MinResiduals > 0 {
		return c.MinResiduals
	}
	return DefaultMinResiduals
}

// Validate checks the alpha levels
func (c Config) Validate() error {
	if len(c.Alphas) < 2 {
		return core.NewValidationError("alphas", "need at least a lower and an upper level")
	}
	prev := 0.0
	for _, a := range c.Alphas {
		if a <= 0 || a >= 1 {
			return core.NewValidationError("alphas", fmt.Sprintf("level %v outside (0,1)", a))
		}
		if a <= prev {
			return core.NewValidationError("alphas", "levels must be strictly ascending")
		}
		prev = a
	}
	return nil
}

// Calibrator derives prediction intervals from residual records. One
// calibration call takes exclusive ownership of its residual slice.
type Calibrator struct {
	cfg Config
}

// New creates a calibrator
func New(cfg Config) (*Calibrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calibrator{cfg: cfg}, nil
}

type group struct {
	entity  panel.EntityID
	horizon int
}

// Calibrate attaches intervals to the given point forecasts. Residual
// variance grows with horizon, so offsets are always computed per horizon
// offset; per entity unless pooling is configured. Groups below the sample
// floor fall back to the pooled per-horizon estimate and are flagged; if
// pooling is also too thin the whole call fails and the caller keeps the
// uncalibrated point forecast. Residual samples never cross horizons, so a
// horizon with no residuals at all fails the call the same way.
func (c *Calibrator) Calibrate(residuals []forecast.Residual, points []forecast.Point) ([]forecast.Interval, error) {
	if len(residuals) == 0 {
		return nil, core.ErrInsufficientResiduals
	}

	byGroup := make(map[group][]float64)
	pooled := make(map[int][]float64)
	for _, r := range residuals {
		g := group{r.Entity, r.Horizon}
		byGroup[g] = append(byGroup[g], r.Value())
		pooled[r.Horizon] = append(pooled[r.Horizon], r.Value())
	}

	minN := c.cfg.minResiduals()
	lowQ := c.cfg.Alphas[0]
	highQ := c.cfg.Alphas[len(c.cfg.Alphas)-1]

	intervals := make([]forecast.Interval, 0, len(points))
	for _, pt := range points {
		sample := byGroup[group{pt.Entity, pt.Horizon}]
		flags := pt.Flags
		if c.cfg.PoolEntities || len(sample) < minN {
			if !c.cfg.PoolEntities {
				flags = append(append([]forecast.Flag(nil), pt.Flags...), forecast.FlagPooledInterval)
			}
			sample = pooled[pt.Horizon]
		}
		if len(sample) < minN {
			return nil, fmt.Errorf("%w: entity %s horizon %d has %d residuals after pooling, needs %d",
				core.ErrInsufficientResiduals, pt.Entity, pt.Horizon, len(sample), minN)
		}

		lower, err := quantile(sample, lowQ)
		if err != nil {
			return nil, err
		}
		upper, err := quantile(sample, highQ)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, forecast.Interval{
			Entity:  pt.Entity,
			Time:    pt.Time,
			Horizon: pt.Horizon,
			Lower:   pt.Value + lower,
			Point:   pt.Value,
			Upper:   pt.Value + upper,
			Flags:   flags,
		})
	}
	return intervals, nil
}

func quantile(sample []float64, q float64) (float64, error) {
	// Extreme lower tails on small samples clamp to the sample minimum
	// rather than erroring out of the percentile routine.
	if q*float64(len(sample)) < 1 {
		v, err := stats.Min(sample)
		if err != nil {
			return 0, fmt.Errorf("computing residual quantile %v: %w", q, err)
		}
		return v, nil
	}
	v, err := stats.Percentile(sample, q*100)
	if err != nil {
		return 0, fmt.Errorf("computing residual quantile %v: %w", q, err)
	}
	return v, nil
}
