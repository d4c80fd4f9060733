package config

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"github.com/banshee-data/clockdrive/internal/fsutil"
	"github.com/banshee-data/clockdrive/internal/pointer"
	"github.com/banshee-data/clockdrive/internal/road"
)

// DefaultConfigPath is the path to the shipped recording defaults.
const DefaultConfigPath = "config/recording.defaults.json"

const maxConfigSize = 1 * 1024 * 1024 // 1MB

// Built-in defaults returned by the Get* accessors when a field is unset.
const (
	DefaultIntervalSeconds = 5.0
	DefaultSegments        = 12
	DefaultFilterRadius    = 2
	DefaultTickInterval    = 50 * time.Millisecond
	DefaultExportDir       = "datas"
)

// RecordingConfig holds the calibration session settings. Every field is
// optional; nil fields fall back to the defaults above, so partial files are
// safe.
type RecordingConfig struct {
	// Recorder
	IntervalSeconds *float64 `json:"interval_seconds,omitempty"`
	Segments        *int     `json:"segments,omitempty"`
	TickInterval    *string  `json:"tick_interval,omitempty"` // duration string like "50ms"

	// Filter
	FilterRadius  *int    `json:"filter_radius,omitempty"`
	Normalization *string `json:"normalization,omitempty"` // "radius" or "window"

	// Output
	ExportDir    *string `json:"export_dir,omitempty"`
	ExportPrefix *string `json:"export_prefix,omitempty"`
	Plot         *bool   `json:"plot,omitempty"`
	DBPath       *string `json:"db_path,omitempty"` // empty disables persistence

	Serial *pointer.PortOptions `json:"serial,omitempty"`
}

// LoadRecordingConfig reads and validates a RecordingConfig from a JSON file
// on fsys. The file must have a .json extension and be at most 1MB. Unknown
// fields are ignored.
func LoadRecordingConfig(fsys fsutil.FileSystem, path string) (*RecordingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	f, err := fsys.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return nil, fmt.Errorf("config file too large: more than %d bytes", maxConfigSize)
	}

	cfg := &RecordingConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that are set.
func (c *RecordingConfig) Validate() error {
	if c.IntervalSeconds != nil {
		v := *c.IntervalSeconds
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("interval_seconds must be positive, got %v", v)
		}
	}
	if c.Segments != nil && *c.Segments <= 0 {
		return fmt.Errorf("segments must be positive, got %d", *c.Segments)
	}
	if c.TickInterval != nil && *c.TickInterval != "" {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %s", *c.TickInterval)
		}
	}
	if c.FilterRadius != nil && *c.FilterRadius < 1 {
		return fmt.Errorf("filter_radius must be at least 1, got %d", *c.FilterRadius)
	}
	if c.Normalization != nil {
		if _, err := road.ParseNormalization(*c.Normalization); err != nil {
			return err
		}
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	return nil
}

// GetInterval returns the per-segment duration.
func (c *RecordingConfig) GetInterval() time.Duration {
	secs := DefaultIntervalSeconds
	if c.IntervalSeconds != nil && *c.IntervalSeconds > 0 {
		secs = *c.IntervalSeconds
	}
	return time.Duration(secs * float64(time.Second))
}

// GetSegments returns the number of clock segments recorded.
func (c *RecordingConfig) GetSegments() int {
	if c.Segments == nil {
		return DefaultSegments
	}
	return *c.Segments
}

// GetTickInterval parses and returns the sampling cadence.
func (c *RecordingConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return DefaultTickInterval
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil || d <= 0 {
		return DefaultTickInterval
	}
	return d
}

// GetFilterRadius returns the smoothing radius.
func (c *RecordingConfig) GetFilterRadius() int {
	if c.FilterRadius == nil {
		return DefaultFilterRadius
	}
	return *c.FilterRadius
}

// GetNormalization returns the smoothing divisor mode, defaulting to the
// radius divisor used by existing RoadData files.
func (c *RecordingConfig) GetNormalization() road.Normalization {
	if c.Normalization == nil {
		return road.NormalizeRadius
	}
	n, err := road.ParseNormalization(*c.Normalization)
	if err != nil {
		return road.NormalizeRadius
	}
	return n
}

// GetExportDir returns the export directory.
func (c *RecordingConfig) GetExportDir() string {
	if c.ExportDir == nil || *c.ExportDir == "" {
		return DefaultExportDir
	}
	return *c.ExportDir
}

// GetExportPrefix returns the export file name prefix.
func (c *RecordingConfig) GetExportPrefix() string {
	if c.ExportPrefix == nil || *c.ExportPrefix == "" {
		return road.DefaultExportPrefix
	}
	return *c.ExportPrefix
}

// GetPlot reports whether a PNG plot is written next to each export.
func (c *RecordingConfig) GetPlot() bool {
	if c.Plot == nil {
		return true
	}
	return *c.Plot
}

// GetDBPath returns the trace database path, or "" when persistence is off.
func (c *RecordingConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetSerial returns the normalized serial port options.
func (c *RecordingConfig) GetSerial() pointer.PortOptions {
	var opts pointer.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	normalized, err := opts.Normalize()
	if err != nil {
		normalized, _ = pointer.PortOptions{}.Normalize()
	}
	return normalized
}
