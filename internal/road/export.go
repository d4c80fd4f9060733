package road

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/clockdrive/internal/fsutil"
	"github.com/banshee-data/clockdrive/internal/monitoring"
	"github.com/banshee-data/clockdrive/internal/security"
)

// ErrExport marks failures while writing an exported trace to disk.
var ErrExport = errors.New("road export failed")

// DefaultExportPrefix is the file name prefix the renderer looks for.
const DefaultExportPrefix = "RoadData"

// ExportFileName returns the timestamped file name for an export created at t,
// e.g. "RoadData.20260119_173129.csv". The prefix is sanitized.
func ExportFileName(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = DefaultExportPrefix
	}
	return fmt.Sprintf("%s.%s.csv", security.SanitizeFilename(prefix), t.Format("20060102_150405"))
}

// Exporter smooths a completed trace and writes it below Dir.
type Exporter struct {
	FS            fsutil.FileSystem
	Dir           string
	Prefix        string
	Radius        int
	Normalization Normalization
}

// Export filters trace and writes the result to a new timestamped CSV file.
// It returns the written path and the filtered trace. The input trace is not
// modified.
func (e *Exporter) Export(trace Trace, now time.Time) (string, Trace, error) {
	filtered, err := e.Normalization.Apply(trace, e.Radius)
	if err != nil {
		return "", nil, err
	}

	fsys := e.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	path := filepath.Join(e.Dir, ExportFileName(e.Prefix, now))
	if err := security.ValidatePathWithinDirectory(path, e.Dir); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	if e.Dir != "" {
		if err := fsys.MkdirAll(e.Dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("%w: create %s: %w", ErrExport, e.Dir, err)
		}
	}
	if err := WriteFile(fsys, path, filtered); err != nil {
		return "", nil, err
	}

	monitoring.Logf("exported %d road positions to %s", len(filtered), path)
	return path, filtered, nil
}

// WriteFile writes trace as CSV to path. The file is closed on every return
// path; a close error is reported when the write itself succeeded.
func WriteFile(fsys fsutil.FileSystem, path string, trace Trace) (err error) {
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrExport, path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", ErrExport, path, cerr)
		}
	}()

	if err := WriteCSV(w, trace); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrExport, path, err)
	}
	return nil
}

// ReadFile loads a trace previously written with WriteFile.
func ReadFile(fsys fsutil.FileSystem, path string) (Trace, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
