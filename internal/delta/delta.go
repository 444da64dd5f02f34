// Package delta classifies the trend between a metric's current value and the
// value persisted by the previous backup run.
package delta

import "math"

const (
	DirectionIncreased = "increased"
	DirectionDecreased = "decreased"
	DirectionUnchanged = "unchanged"
)

// Delta describes how a metric moved between two runs. It is embedded in the
// run summary, never persisted on its own.
type Delta struct {
	Current      float64 `json:"current"`
	Previous     float64 `json:"previous"`
	Diff         float64 `json:"diff"`
	Direction    string  `json:"direction"`
	AbsoluteDiff float64 `json:"absoluteDiff"`
}

// Compute returns the delta between current and previous, or nil when either
// value is non-finite. The nil case is the first run, where no previous
// summary exists to compare against.
func Compute(current, previous float64) *Delta {
	if !isFinite(current) || !isFinite(previous) {
		return nil
	}
	d := &Delta{
		Current:      current,
		Previous:     previous,
		Diff:         current - previous,
		AbsoluteDiff: math.Abs(current - previous),
	}
	switch {
	case current > previous:
		d.Direction = DirectionIncreased
	case current < previous:
		d.Direction = DirectionDecreased
	default:
		d.Direction = DirectionUnchanged
	}
	return d
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
