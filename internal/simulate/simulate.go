// Package simulate fast-forwards the clock display through a span of time,
// drawing one frame per simulated step.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/clockdrive/internal/timeutil"
)

// ErrInvalidPlan is returned for a plan with a non-positive step or a
// negative span.
var ErrInvalidPlan = errors.New("simulate: invalid plan")

// Renderer is the display being driven. Advance moves any animation forward
// by the given number of frames; Draw renders the clock face for t.
type Renderer interface {
	Advance(frames int)
	Draw(t time.Time)
}

// Plan describes a fast-forward run: Draw is called for Start, Start+Step,
// and so on up to and including Start+Span.
type Plan struct {
	Name  string
	Start time.Time
	Span  time.Duration
	Step  time.Duration
}

// Plan24Hour covers a full day from 2000-01-01 00:00 in 90 second steps.
func Plan24Hour() Plan {
	return Plan{
		Name:  "24h",
		Start: time.Date(2000, 1, 1, 0, 0, 0, 0, time.Local),
		Span:  24 * time.Hour,
		Step:  90 * time.Second,
	}
}

// Plan1Hour covers the hour after now in 15 second steps.
func Plan1Hour(now time.Time) Plan {
	return Plan{Name: "1h", Start: now, Span: time.Hour, Step: 15 * time.Second}
}

// PlanByName returns the plan selected by a command line value, "24h" or
// "1h".
func PlanByName(name string, now time.Time) (Plan, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "24h":
		return Plan24Hour(), nil
	case "1h":
		return Plan1Hour(now), nil
	default:
		return Plan{}, fmt.Errorf("%w: unknown plan %q, expected 24h or 1h", ErrInvalidPlan, name)
	}
}

// Validate checks the step and span.
func (p Plan) Validate() error {
	if p.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %v", ErrInvalidPlan, p.Step)
	}
	if p.Span < 0 {
		return fmt.Errorf("%w: span must not be negative, got %v", ErrInvalidPlan, p.Span)
	}
	return nil
}

// Frames is the number of Draw calls Run makes for p.
func (p Plan) Frames() int {
	if p.Step <= 0 || p.Span < 0 {
		return 0
	}
	return int(p.Span/p.Step) + 1
}

// Run drives r through p as fast as it can render and returns the wall time
// taken, measured with clock. It stops early with ctx.Err() when ctx is
// cancelled.
func Run(ctx context.Context, p Plan, r Renderer, clock timeutil.Clock) (time.Duration, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	start := clock.Now()
	for offset := time.Duration(0); offset <= p.Span; offset += p.Step {
		if err := ctx.Err(); err != nil {
			return clock.Since(start), err
		}
		r.Advance(1)
		r.Draw(p.Start.Add(offset))
	}
	return clock.Since(start), nil
}

var displayLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
}

// ParseDisplayTime parses an operator-entered time for the clock display. A
// bare "15:04:05" or "15:04" is taken as that time on now's date. Text that
// does not parse yields now.
func ParseDisplayTime(text string, now time.Time) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return now
	}

	for _, layout := range displayLayouts {
		if t, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			return t
		}
	}
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if t, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			y, m, d := now.Date()
			return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, now.Location())
		}
	}
	return now
}
