package road

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes one "x,y" line per position in trace order. Values use the
// shortest decimal representation that round-trips, so 3.0 is written as "3".
// There is no header row.
func WriteCSV(w io.Writer, trace Trace) error {
	cw := csv.NewWriter(w)
	for i, p := range trace {
		if err := cw.Write([]string{formatCoord(p.X), formatCoord(p.Y)}); err != nil {
			return fmt.Errorf("write position %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a trace written by WriteCSV, or a RoadData file produced by
// the desktop application. Blank lines are skipped.
func ReadCSV(r io.Reader) (Trace, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var trace Trace
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read road csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		x, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid x %q: %w", line, record[0], err)
		}
		y, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid y %q: %w", line, record[1], err)
		}
		trace = append(trace, Position{X: x, Y: y})
	}
	return trace, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
