package core

import (
	"fmt"
	"time"
)

// Frequency describes the spacing of a panel's time axis. Duration-based
// aliases advance timestamps by a fixed number of seconds; month-based
// aliases use calendar arithmetic; the integer alias treats the time axis
// as a unit-less index.
type Frequency struct {
	alias   string
	seconds int64
	months  int
	index   bool
}

// Recognized frequency aliases.
const (
	FreqSecond    = "1s"
	FreqMinute    = "1m"
	FreqHalfHour  = "30m"
	FreqHour      = "1h"
	FreqDay       = "1d"
	FreqWeek      = "1w"
	FreqMonth     = "1mo"
	FreqQuarter   = "3mo"
	FreqYear      = "1y"
	FreqIndex     = "1i"
)

var frequencies = map[string]Frequency{
	FreqSecond:   {alias: FreqSecond, seconds: 1},
	FreqMinute:   {alias: FreqMinute, seconds: 60},
	FreqHalfHour: {alias: FreqHalfHour, seconds: 1800},
	FreqHour:     {alias: FreqHour, seconds: 3600},
	FreqDay:      {alias: FreqDay, seconds: 86400},
	FreqWeek:     {alias: FreqWeek, seconds: 7 * 86400},
	FreqMonth:    {alias: FreqMonth, months: 1},
	FreqQuarter:  {alias: FreqQuarter, months: 3},
	FreqYear:     {alias: FreqYear, months: 12},
	FreqIndex:    {alias: FreqIndex, index: true},
}

// ParseFrequency resolves a frequency alias
func ParseFrequency(alias string) (Frequency, error) {
	f, ok := frequencies[alias]
	if !ok {
		return Frequency{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, alias)
	}
	return f, nil
}

// MustFrequency resolves a frequency alias, panicking on unknown input.
// For use with the compile-time alias constants only.
func MustFrequency(alias string) Frequency {
	f, err := ParseFrequency(alias)
	if err != nil {
		panic(err)
	}
	return f
}

// Alias returns the string token this frequency was parsed from
func (f Frequency) Alias() string {
	return f.alias
}

// IsZero reports whether the frequency is unset
func (f Frequency) IsZero() bool {
	return f.alias == ""
}

// IsIndex reports whether the time axis is a unit-less integer index
func (f Frequency) IsIndex() bool {
	return f.index
}

// Add advances a timestamp by the given number of frequency steps. For
// index frequencies the timestamp is the index itself; otherwise it is a
// Unix timestamp in seconds.
func (f Frequency) Add(t int64, steps int) int64 {
	switch {
	case f.index:
		return t + int64(steps)
	case f.months > 0:
		return time.Unix(t, 0).UTC().AddDate(0, f.months*steps, 0).Unix()
	default:
		return t + int64(steps)*f.seconds
	}
}

// Equal reports whether two frequencies denote the same step
func (f Frequency) Equal(other Frequency) bool {
	return f.alias == other.alias
}
