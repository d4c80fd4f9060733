// Command road-smooth re-applies the circular smoothing filter to an existing
// road CSV, for example to compare the radius and window divisors.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/clockdrive/internal/fsutil"
	"github.com/banshee-data/clockdrive/internal/road"
)

var (
	inPath        = flag.String("in", "", "Input road CSV (required)")
	outPath       = flag.String("out", "", "Output CSV (default stdout)")
	radius        = flag.Int("radius", 2, "Smoothing radius")
	normalization = flag.String("normalization", "radius", "Divisor: radius or window")
	summary       = flag.Bool("summary", false, "Print loop statistics to stderr")
)

func main() {
	flag.Parse()
	if *inPath == "" {
		log.Fatal("-in is required")
	}

	if err := run(fsutil.OSFileSystem{}, *inPath, *outPath, *radius, *normalization, *summary, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("road-smooth: %v", err)
	}
}

func run(fsys fsutil.FileSystem, in, out string, radius int, normName string, withSummary bool, stdout, stderr io.Writer) error {
	norm, err := road.ParseNormalization(normName)
	if err != nil {
		return err
	}

	raw, err := road.ReadFile(fsys, in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	filtered, err := norm.Apply(raw, radius)
	if err != nil {
		return err
	}

	if out == "" {
		if err := road.WriteCSV(stdout, filtered); err != nil {
			return err
		}
	} else if err := road.WriteFile(fsys, out, filtered); err != nil {
		return err
	}

	if withSummary {
		s := road.Summarize(filtered)
		rms, err := road.ResidualRMS(raw, filtered)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "samples=%d length=%.3f centroid=%s mean_radius=%.3f max_step=%.3f residual_rms=%.3f\n",
			s.Samples, s.PathLength, s.Centroid, s.MeanRadius, s.MaxStep, rms)
	}
	return nil
}
