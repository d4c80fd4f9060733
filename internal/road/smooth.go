package road

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRadius is returned when a smoothing radius below 1 is requested.
var ErrInvalidRadius = errors.New("filter radius must be at least 1")

// Normalization selects the divisor applied to each circular window sum.
type Normalization string

const (
	// NormalizeRadius divides each window sum by the radius. This is the
	// filter existing RoadData files were produced with; the output is scaled
	// by roughly (2r+1)/r relative to the input.
	NormalizeRadius Normalization = "radius"

	// NormalizeWindow is the corrected variant: each window sum is divided by
	// the window sample count 2r+1, giving a true moving average.
	NormalizeWindow Normalization = "window"
)

// ParseNormalization maps a config string onto a Normalization. The empty
// string selects NormalizeRadius.
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(strings.ToLower(strings.TrimSpace(s))) {
	case "", NormalizeRadius:
		return NormalizeRadius, nil
	case NormalizeWindow:
		return NormalizeWindow, nil
	default:
		return "", fmt.Errorf("unknown normalization %q: expected %q or %q", s, NormalizeRadius, NormalizeWindow)
	}
}

// Apply smooths trace with the selected normalization.
func (n Normalization) Apply(trace Trace, radius int) (Trace, error) {
	switch n {
	case "", NormalizeRadius:
		return Smooth(trace, radius)
	case NormalizeWindow:
		return SmoothWindowMean(trace, radius)
	default:
		return nil, fmt.Errorf("unknown normalization %q", string(n))
	}
}

// Smooth applies a circular moving-sum filter to trace. For every index i the
// positions trace[(i+d) mod n] for d in [-radius, radius] are summed and the
// sum is divided by radius (not by the 2*radius+1 samples in the window).
//
// The input is not modified. An empty trace yields an empty result. A radius
// of n or more wraps around the loop more than once, so samples near i may be
// counted several times.
func Smooth(trace Trace, radius int) (Trace, error) {
	return smooth(trace, radius, float64(radius))
}

// SmoothWindowMean is the corrected variant of Smooth that divides each
// window sum by the window size, 2*radius+1.
func SmoothWindowMean(trace Trace, radius int) (Trace, error) {
	return smooth(trace, radius, float64(2*radius+1))
}

func smooth(trace Trace, radius int, divisor float64) (Trace, error) {
	n := len(trace)
	if n == 0 {
		return Trace{}, nil
	}
	if radius < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRadius, radius)
	}

	out := make(Trace, n)
	for i := range trace {
		var sum Position
		for d := -radius; d <= radius; d++ {
			j := ((i+d)%n + n) % n
			sum.X += trace[j].X
			sum.Y += trace[j].Y
		}
		out[i] = Position{X: sum.X / divisor, Y: sum.Y / divisor}
	}
	return out, nil
}
