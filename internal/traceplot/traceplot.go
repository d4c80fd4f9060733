// Package traceplot renders recorded road traces: a static PNG written next
// to each export and an interactive chart served over HTTP.
package traceplot

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/clockdrive/internal/road"
)

// GuideCount is the number of hour guide rays drawn around the centre.
const GuideCount = 12

// ErrEmptyTrace is returned when there is nothing to plot.
var ErrEmptyTrace = errors.New("traceplot: empty trace")

var (
	rawColor      = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	filteredColor = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	guideColor    = color.RGBA{R: 255, G: 165, B: 0, A: 255}
)

// GuideAngle returns the screen angle, in radians, of the ray for a position
// ratio in [0,1) around the clock. Ratio 0 points straight up; angles grow
// clockwise in client coordinates, where y increases downwards.
func GuideAngle(ratio float64) float64 {
	return 2 * math.Pi * (ratio - 0.25)
}

// GuideRays returns the end points of the GuideCount hour rays starting at
// centre, each of the given length.
func GuideRays(centre road.Position, length float64) []road.Position {
	ends := make([]road.Position, GuideCount)
	for h := range ends {
		a := GuideAngle(float64(h) / GuideCount)
		ends[h] = road.Position{X: centre.X + math.Cos(a)*length, Y: centre.Y + math.Sin(a)*length}
	}
	return ends
}

// Plot builds the raw-versus-filtered figure. The y axis is inverted so the
// figure matches the on-screen layout of the recording.
func Plot(raw, filtered road.Trace, centre road.Position) (*plot.Plot, error) {
	if len(raw) == 0 && len(filtered) == 0 {
		return nil, ErrEmptyTrace
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Road trace (%d raw, %d filtered)", len(raw), len(filtered))
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	for h, end := range GuideRays(centre, reach(centre, raw, filtered)*1.1) {
		ray, err := plotter.NewLine(plotter.XYs{{X: centre.X, Y: centre.Y}, {X: end.X, Y: end.Y}})
		if err != nil {
			return nil, err
		}
		ray.Color = guideColor
		ray.Width = vg.Points(0.5)
		ray.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		p.Add(ray)
		if h == 0 {
			p.Legend.Add("hour guides", ray)
		}
	}

	if len(raw) > 0 {
		sc, err := plotter.NewScatter(toXYs(raw, false))
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = rawColor
		sc.GlyphStyle.Radius = vg.Points(1.5)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add("raw", sc)
	}

	if len(filtered) > 0 {
		line, err := plotter.NewLine(toXYs(filtered, true))
		if err != nil {
			return nil, err
		}
		line.Color = filteredColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("filtered", line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// SavePNG writes the figure to path. The format follows the file extension.
func SavePNG(path string, raw, filtered road.Trace, centre road.Position) error {
	p, err := Plot(raw, filtered, centre)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

// toXYs converts a trace; closed repeats the first point to close the loop.
func toXYs(t road.Trace, closed bool) plotter.XYs {
	n := len(t)
	if closed && n > 1 {
		n++
	}
	xys := make(plotter.XYs, n)
	for i := range xys {
		p := t[i%len(t)]
		xys[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return xys
}

// reach is the largest distance from centre to any plotted point, at least 1.
func reach(centre road.Position, traces ...road.Trace) float64 {
	r := 1.0
	for _, t := range traces {
		for _, p := range t {
			r = math.Max(r, math.Hypot(p.X-centre.X, p.Y-centre.Y))
		}
	}
	return r
}
