package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/banshee-data/clockdrive/internal/api"
	"github.com/banshee-data/clockdrive/internal/recorder"
	"github.com/banshee-data/clockdrive/internal/road"
	"github.com/banshee-data/clockdrive/internal/tracedb"
	"github.com/banshee-data/clockdrive/internal/traceplot"
)

// sessionSaver is the part of *tracedb.DB the finisher uses.
type sessionSaver interface {
	SaveSession(ctx context.Context, rec tracedb.SessionRecord, raw, filtered road.Trace) error
}

// finisher exports a completed recording and fans the result out to the
// plot, the database and the HTTP server.
type finisher struct {
	exporter road.Exporter
	plot     bool
	store    sessionSaver
	server   *api.Server
}

func (f *finisher) finish(ctx context.Context, res recorder.Result) error {
	path, filtered, err := f.exporter.Export(res.Trace, res.FinishedAt)
	if err != nil {
		return err
	}
	if f.server != nil {
		f.server.SetFiltered(filtered)
	}

	summary := road.Summarize(filtered)
	rms, err := road.ResidualRMS(res.Trace, filtered)
	if err != nil {
		return err
	}
	log.Printf("road: %d samples, loop length %.1f, mean radius %.1f, smoothing residual %.2f",
		summary.Samples, summary.PathLength, summary.MeanRadius, rms)

	if f.plot && len(res.Trace) > 0 {
		pngPath := strings.TrimSuffix(path, ".csv") + ".png"
		if err := traceplot.SavePNG(pngPath, res.Trace, filtered, summary.Centroid); err != nil {
			log.Printf("failed to write plot: %v", err)
		} else {
			log.Printf("wrote plot %s", pngPath)
		}
	}

	if f.store != nil {
		rec := tracedb.SessionRecord{
			ID:            res.SessionID,
			StartedAt:     res.StartedAt,
			FinishedAt:    res.FinishedAt,
			Interval:      res.Interval,
			Segments:      res.Segments,
			FilterRadius:  f.exporter.Radius,
			Normalization: string(f.exporter.Normalization),
			ExportPath:    path,
			Samples:       len(res.Trace),
			PathLength:    summary.PathLength,
			ResidualRMS:   rms,
		}
		if err := f.store.SaveSession(ctx, rec, res.Trace, filtered); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	return nil
}
