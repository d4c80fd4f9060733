package road

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the shape of a recorded loop.
type Summary struct {
	Samples    int      `json:"samples"`
	PathLength float64  `json:"path_length"` // closed loop, last sample back to first
	Centroid   Position `json:"centroid"`
	MeanRadius float64  `json:"mean_radius"` // mean distance from the centroid
	MaxStep    float64  `json:"max_step"`    // largest gap between consecutive samples
}

// Summarize computes loop statistics for trace. An empty trace yields a zero
// Summary.
func Summarize(trace Trace) Summary {
	n := len(trace)
	if n == 0 {
		return Summary{}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range trace {
		xs[i], ys[i] = p.X, p.Y
	}
	centroid := Position{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}

	steps := make([]float64, n)
	radii := make([]float64, n)
	for i, p := range trace {
		next := trace[(i+1)%n]
		steps[i] = math.Hypot(next.X-p.X, next.Y-p.Y)
		radii[i] = math.Hypot(p.X-centroid.X, p.Y-centroid.Y)
	}

	return Summary{
		Samples:    n,
		PathLength: floats.Sum(steps),
		Centroid:   centroid,
		MeanRadius: stat.Mean(radii, nil),
		MaxStep:    floats.Max(steps),
	}
}

// ResidualRMS returns the root-mean-square distance between matching samples
// of raw and filtered. Both traces must have the same length.
func ResidualRMS(raw, filtered Trace) (float64, error) {
	if len(raw) != len(filtered) {
		return 0, fmt.Errorf("trace length mismatch: raw=%d filtered=%d", len(raw), len(filtered))
	}
	if len(raw) == 0 {
		return 0, nil
	}
	sq := make([]float64, len(raw))
	for i := range raw {
		dx := filtered[i].X - raw[i].X
		dy := filtered[i].Y - raw[i].Y
		sq[i] = dx*dx + dy*dy
	}
	return math.Sqrt(stat.Mean(sq, nil)), nil
}
