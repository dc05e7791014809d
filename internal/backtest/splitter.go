// Package backtest generates deterministic train/test window sequences for
// validation and residual collection. Windows are position offsets relative
// to one entity's own time axis: the same relative layout is reused for
// every entity, anchored at that entity's series end.
package backtest

import (
	"fmt"

	"gocast/domain/core"
)

// Mode selects how the train range evolves across splits
type Mode string

const (
	// Expanding keeps train start fixed at the series start and grows the
	// train range by StepSize each split.
	Expanding Mode = "expanding"

	// Sliding moves both ends of the train range by StepSize, keeping
	// train length fixed at WindowSize.
	Sliding Mode = "sliding"
)

// SplitConfig is a pure description of the window sequence. Identical
// configurations always produce identical windows; there is no randomness.
type SplitConfig struct {
	TestSize   int
	StepSize   int
	NSplits    int
	WindowSize int // sliding only
	Mode       Mode
}

// Validate checks structural invariants of the configuration
func (c SplitConfig) Validate() error {
	if c.TestSize < 1 {
		return core.NewValidationError("test_size", fmt.Sprintf("%d < 1", c.TestSize))
	}
	if c.StepSize < 1 {
		return core.NewValidationError("step_size", fmt.Sprintf("%d < 1", c.StepSize))
	}
	if c.NSplits < 1 {
		return core.NewValidationError("n_splits", fmt.Sprintf("%d < 1", c.NSplits))
	}
	switch c.Mode {
	case Expanding:
		if c.WindowSize != 0 {
			return core.NewValidationError("window_size", "only meaningful in sliding mode")
		}
	case Sliding:
		if c.WindowSize < 1 {
			return core.NewValidationError("window_size", fmt.Sprintf("%d < 1 in sliding mode", c.WindowSize))
		}
	default:
		return core.NewValidationError("mode", fmt.Sprintf("unknown mode %q", c.Mode))
	}
	return nil
}

// Window is one train/test split as half-open position ranges
// [TrainStart, TrainEnd) and [TestStart, TestEnd) into a series.
type Window struct {
	Index      int
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
}

// TrainLen returns the train range length
func (w Window) TrainLen() int {
	return w.TrainEnd - w.TrainStart
}

// Windows lays out NSplits windows over a series of the given length,
// oldest to newest, with the last split's test range ending at the series
// end. Fails with InsufficientSeriesLength when the series cannot host the
// oldest split.
func (c SplitConfig) Windows(length int) ([]Window, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	need := c.TestSize + (c.NSplits-1)*c.StepSize + 1
	if c.Mode == Sliding {
		need = c.TestSize + (c.NSplits-1)*c.StepSize + c.WindowSize
	}
	if length < need {
		return nil, core.NewInsufficientSeriesLengthError("", length, need)
	}

	windows := make([]Window, c.NSplits)
	for i := 0; i < c.NSplits; i++ {
		testEnd := length - (c.NSplits-1-i)*c.StepSize
		testStart := testEnd - c.TestSize
		trainEnd := testStart
		trainStart := 0
		if c.Mode == Sliding {
			trainStart = trainEnd - c.WindowSize
		}
		if trainStart < 0 || trainEnd <= trainStart {
			return nil, core.NewInsufficientSeriesLengthError("", length, need)
		}
		windows[i] = Window{
			Index:      i,
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  testStart,
			TestEnd:    testEnd,
		}
	}
	return windows, nil
}
