// Package pointer supplies the per-tick pointer positions the recorder
// samples. Positions come from a fixed value, a scripted replay or a serial
// digitiser streaming "x,y" lines.
package pointer

import (
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/clockdrive/internal/road"
)

// Source reports the latest observed pointer position. ok is false until the
// source has observed anything.
type Source interface {
	Position() (pos road.Position, ok bool)
}

// Fixed is a Source that always reports the same position.
type Fixed road.Position

// Position implements Source.
func (f Fixed) Position() (road.Position, bool) { return road.Position(f), true }

// Scripted replays a fixed sequence, one position per call. Once exhausted it
// keeps reporting the final position, like a pointer left at rest.
type Scripted struct {
	mu        sync.Mutex
	positions road.Trace
	next      int
}

// NewScripted returns a Scripted source over a copy of positions.
func NewScripted(positions road.Trace) *Scripted {
	return &Scripted{positions: positions.Clone()}
}

// LoadScripted reads a replay script in road CSV form.
func LoadScripted(r io.Reader) (*Scripted, error) {
	trace, err := road.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("load replay: %w", err)
	}
	return NewScripted(trace), nil
}

// Position implements Source.
func (s *Scripted) Position() (road.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.positions) == 0 {
		return road.Position{}, false
	}
	i := s.next
	if i >= len(s.positions) {
		i = len(s.positions) - 1
	} else {
		s.next++
	}
	return s.positions[i], true
}

// Remaining returns how many scripted positions have not been replayed yet.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions) - s.next
}
