// Command roadrec records a clock road trace from a pointer device, smooths it
// and exports it for the clock renderer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/clockdrive/internal/api"
	"github.com/banshee-data/clockdrive/internal/config"
	"github.com/banshee-data/clockdrive/internal/fsutil"
	"github.com/banshee-data/clockdrive/internal/pointer"
	"github.com/banshee-data/clockdrive/internal/recorder"
	"github.com/banshee-data/clockdrive/internal/road"
	"github.com/banshee-data/clockdrive/internal/simulate"
	"github.com/banshee-data/clockdrive/internal/timeutil"
	"github.com/banshee-data/clockdrive/internal/tracedb"
	"github.com/banshee-data/clockdrive/internal/version"
)

var (
	configPath    = flag.String("config", "", "Recording config JSON (default "+config.DefaultConfigPath+" when present)")
	serialPort    = flag.String("serial", "", "Serial device streaming x,y pointer lines")
	replayPath    = flag.String("replay", "", "Replay pointer positions from a road CSV instead of a device")
	outDir        = flag.String("out", "", "Export directory (overrides config)")
	dbPath        = flag.String("db", "", "SQLite trace database (overrides config)")
	listen        = flag.String("listen", "", "Serve status, trace and chart on this address")
	interval      = flag.Float64("interval", 0, "Seconds per clock segment (overrides config)")
	radius        = flag.Int("radius", 0, "Smoothing radius (overrides config)")
	normalization = flag.String("normalization", "", "Smoothing divisor: radius or window (overrides config)")
	noPlot        = flag.Bool("no-plot", false, "Do not write a PNG plot next to the export")
	hold          = flag.Bool("hold", false, "Keep serving -listen after the recording finishes")
	simulatePlan  = flag.String("simulate", "", "Fast-forward the clock display instead of recording: 24h or 1h")
	roadPath      = flag.String("road", "", "Road CSV driven by -simulate")
	displayTime   = flag.String("time", "", "With -simulate 1h, start at this time instead of now")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath, fsutil.OSFileSystem{})
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyFlags(cfg); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *simulatePlan != "" {
		if err := runSimulation(ctx, *simulatePlan, *roadPath, *displayTime); err != nil {
			log.Fatalf("simulation failed: %v", err)
		}
		return
	}

	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open pointer source: %v", err)
	}
	defer closeSource()

	var store *tracedb.DB
	if path := cfg.GetDBPath(); path != "" {
		store, err = tracedb.Open(path)
		if err != nil {
			log.Fatalf("failed to open trace database: %v", err)
		}
		defer store.Close()
	}

	rec, err := recorder.New(cfg.GetInterval(), cfg.GetSegments())
	if err != nil {
		log.Fatalf("invalid recorder settings: %v", err)
	}

	fin := &finisher{
		exporter: road.Exporter{
			FS:            fsutil.OSFileSystem{},
			Dir:           cfg.GetExportDir(),
			Prefix:        cfg.GetExportPrefix(),
			Radius:        cfg.GetFilterRadius(),
			Normalization: cfg.GetNormalization(),
		},
		plot: cfg.GetPlot(),
	}
	if store != nil {
		fin.store = store
	}
	session := recorder.NewSession(rec, timeutil.RealClock{}, source, cfg.GetTickInterval(), fin.finish)

	fmt.Fprintln(os.Stderr, recorder.Instructions(cfg.GetInterval(), cfg.GetSegments()))

	var wg sync.WaitGroup
	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	if *listen != "" {
		var sessions api.SessionStore
		if store != nil {
			sessions = store
		}
		server := api.NewServer(session, sessions, cfg.GetFilterRadius(), cfg.GetNormalization())
		fin.server = server

		mux := http.NewServeMux()
		mux.Handle("/", server.Handler())
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				log.Fatalf("failed to attach admin routes: %v", err)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(serveCtx, *listen, mux)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		reportStatus(serveCtx, session, time.Second)
	}()

	err = session.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Printf("recording cancelled, nothing exported")
	case err != nil:
		log.Printf("recording failed: %v", err)
	default:
		log.Printf("recording complete")
		if *listen != "" && *hold {
			log.Printf("serving results on %s until interrupted", *listen)
			<-ctx.Done()
		}
	}

	stopServing()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

// loadConfig reads path, or the shipped defaults when path is empty and the
// defaults file exists. Otherwise all built-in defaults apply.
func loadConfig(path string, fsys fsutil.FileSystem) (*config.RecordingConfig, error) {
	if path == "" {
		if !fsys.Exists(config.DefaultConfigPath) {
			return &config.RecordingConfig{}, nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadRecordingConfig(fsys, path)
}

func applyFlags(cfg *config.RecordingConfig) error {
	if *outDir != "" {
		cfg.ExportDir = outDir
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *interval != 0 {
		cfg.IntervalSeconds = interval
	}
	if *radius != 0 {
		cfg.FilterRadius = radius
	}
	if *normalization != "" {
		cfg.Normalization = normalization
	}
	if *noPlot {
		off := false
		cfg.Plot = &off
	}
	return cfg.Validate()
}

// openSource returns the serial device or replay script selected by flags.
// The serial monitor runs until ctx is cancelled.
func openSource(ctx context.Context, cfg *config.RecordingConfig) (pointer.Source, func(), error) {
	switch {
	case *serialPort != "" && *replayPath != "":
		return nil, nil, errors.New("-serial and -replay are mutually exclusive")
	case *replayPath != "":
		f, err := os.Open(*replayPath)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		src, err := pointer.LoadScripted(f)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("replaying %d positions from %s", src.Remaining(), *replayPath)
		return src, func() {}, nil
	case *serialPort != "":
		src, err := pointer.OpenSerial(*serialPort, cfg.GetSerial())
		if err != nil {
			return nil, nil, err
		}
		go func() {
			if err := src.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("pointer monitor stopped: %v", err)
			}
		}()
		return src, func() { src.Close() }, nil
	default:
		return nil, nil, errors.New("one of -serial or -replay is required")
	}
}

func reportStatus(ctx context.Context, session *recorder.Session, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := session.Status()
			if banner := st.String(); banner != last {
				log.Print(banner)
				last = banner
			}
			if st.Phase == recorder.PhaseFinished {
				return
			}
		}
	}
}

func serveHTTP(ctx context.Context, addr string, h http.Handler) {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()
	log.Printf("serving on %s", addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
}

func runSimulation(ctx context.Context, planName, roadCSV, startText string) error {
	now := time.Now()
	plan, err := simulate.PlanByName(planName, simulate.ParseDisplayTime(startText, now))
	if err != nil {
		return err
	}

	var trace road.Trace
	if roadCSV != "" {
		trace, err = road.ReadFile(fsutil.OSFileSystem{}, roadCSV)
		if err != nil {
			return fmt.Errorf("load road %s: %w", roadCSV, err)
		}
	}

	marker := &simulate.Marker{Trace: trace}
	took, err := simulate.Run(ctx, plan, marker, timeutil.RealClock{})
	if err != nil {
		return err
	}

	st := marker.Stats()
	log.Printf("simulated %s: %d frames in %.3fs, last frame %s at %s",
		plan.Name, st.Draws, took.Seconds(), st.LastAt.Format(time.DateTime), st.Last)
	return nil
}
