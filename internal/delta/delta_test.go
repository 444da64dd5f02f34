package delta

import (
	"math"
	"testing"
)

func TestComputeDirections(t *testing.T) {
	cases := []struct {
		current, previous float64
		direction         string
		absolute          float64
	}{
		{100, 50, DirectionIncreased, 50},
		{50, 100, DirectionDecreased, 50},
		{75, 75, DirectionUnchanged, 0},
		{0, 0, DirectionUnchanged, 0},
		{10, 0, DirectionIncreased, 10},
		{-3, 2, DirectionDecreased, 5},
	}
	for _, c := range cases {
		d := Compute(c.current, c.previous)
		if d == nil {
			t.Fatalf("Compute(%v, %v) = nil, want delta", c.current, c.previous)
		}
		if d.Direction != c.direction {
			t.Errorf("Compute(%v, %v).Direction = %q, want %q",
				c.current, c.previous, d.Direction, c.direction)
		}
		if d.AbsoluteDiff != c.absolute {
			t.Errorf("Compute(%v, %v).AbsoluteDiff = %v, want %v",
				c.current, c.previous, d.AbsoluteDiff, c.absolute)
		}
		if d.Diff != c.current-c.previous {
			t.Errorf("Compute(%v, %v).Diff = %v, want %v",
				c.current, c.previous, d.Diff, c.current-c.previous)
		}
	}
}

func TestComputeNonFinite(t *testing.T) {
	bad := []float64{math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, v := range bad {
		if d := Compute(v, 10); d != nil {
			t.Errorf("Compute(%v, 10) = %+v, want nil", v, d)
		}
		if d := Compute(10, v); d != nil {
			t.Errorf("Compute(10, %v) = %+v, want nil", v, d)
		}
	}
}
