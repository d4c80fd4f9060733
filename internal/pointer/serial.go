package pointer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/banshee-data/clockdrive/internal/monitoring"
	"github.com/banshee-data/clockdrive/internal/road"
)

var logf = monitoring.Prefixed("pointer")

// ErrMalformedLine is wrapped by ParseLine errors.
var ErrMalformedLine = errors.New("malformed position line")

// SerialSource tracks the latest position reported by a line-oriented device:
// one "x,y" pair per line. Monitor must be running for the position to update.
type SerialSource struct {
	port io.ReadCloser

	mu      sync.RWMutex
	pos     road.Position
	seen    bool
	lines   int
	skipped int

	closeOnce sync.Once
	closeErr  error
}

// NewSerialSource wraps an open port, or any reader producing position lines.
func NewSerialSource(port io.ReadCloser) *SerialSource {
	return &SerialSource{port: port}
}

// Position implements Source.
func (s *SerialSource) Position() (road.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pos, s.seen
}

// Stats returns the number of accepted and skipped lines.
func (s *SerialSource) Stats() (accepted, skipped int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lines, s.skipped
}

// Monitor reads lines until the port reaches EOF, fails, or ctx is done.
// Malformed lines are logged and skipped. EOF returns nil.
func (s *SerialSource) Monitor(ctx context.Context) error {
	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The scanner blocks in Read, so it runs on its own goroutine and the
	// loop below stays responsive to ctx.
	go func() {
		defer close(lineChan)
		scan := bufio.NewScanner(s.port)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return fmt.Errorf("read pointer port: %w", err)
				default:
				}
				// nil on EOF
				return ctx.Err()
			}
			s.handleLine(line)
		}
	}
}

func (s *SerialSource) handleLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	pos, err := ParseLine(line)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.skipped++
		logf("skipping line: %v", err)
		return
	}
	s.pos = pos
	s.seen = true
	s.lines++
}

// Close closes the underlying port. It is safe to call more than once.
func (s *SerialSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

// ParseLine parses an "x,y" position line. Surrounding whitespace and a
// trailing carriage return are ignored.
func ParseLine(line string) (road.Position, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 2 {
		return road.Position{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return road.Position{}, fmt.Errorf("%w: x in %q: %v", ErrMalformedLine, line, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return road.Position{}, fmt.Errorf("%w: y in %q: %v", ErrMalformedLine, line, err)
	}
	return road.Position{X: x, Y: y}, nil
}
