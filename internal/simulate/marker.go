package simulate

import (
	"sync"
	"time"

	"github.com/banshee-data/clockdrive/internal/road"
)

// PositionRatio maps a time onto its position around the 12 hour road, in
// [0,1). Every hour covers an equal share of the loop.
func PositionRatio(t time.Time) float64 {
	h := t.Hour() % 12
	secs := h*3600 + t.Minute()*60 + t.Second()
	return (float64(secs) + float64(t.Nanosecond())/1e9) / (12 * 3600)
}

// PositionAt returns the trace sample the hour hand marker sits on at t.
func PositionAt(trace road.Trace, t time.Time) (road.Position, bool) {
	if len(trace) == 0 {
		return road.Position{}, false
	}
	i := int(PositionRatio(t) * float64(len(trace)))
	if i >= len(trace) {
		i = len(trace) - 1
	}
	return trace[i], true
}

// Marker is a Renderer that moves a marker along a recorded road. It keeps
// the frame count and the last drawn position so a run can be inspected.
type Marker struct {
	Trace road.Trace
	// OnDraw, if set, is called for every frame.
	OnDraw func(t time.Time, pos road.Position)

	mu      sync.Mutex
	frames  int
	drawn   int
	last    road.Position
	lastAt  time.Time
	visited map[int]bool
}

// Advance implements Renderer.
func (m *Marker) Advance(frames int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames += frames
}

// Draw implements Renderer.
func (m *Marker) Draw(t time.Time) {
	pos, ok := PositionAt(m.Trace, t)

	m.mu.Lock()
	m.drawn++
	m.lastAt = t
	if ok {
		if m.visited == nil {
			m.visited = make(map[int]bool)
		}
		m.visited[t.Hour()%12] = true
		m.last = pos
	}
	onDraw := m.OnDraw
	m.mu.Unlock()

	if ok && onDraw != nil {
		onDraw(t, pos)
	}
}

// MarkerStats summarises what a Marker has drawn.
type MarkerStats struct {
	Frames       int
	Draws        int
	LastAt       time.Time
	Last         road.Position
	HoursVisited int
}

// Stats returns the current counters.
func (m *Marker) Stats() MarkerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MarkerStats{
		Frames:       m.frames,
		Draws:        m.drawn,
		LastAt:       m.lastAt,
		Last:         m.last,
		HoursVisited: len(m.visited),
	}
}
