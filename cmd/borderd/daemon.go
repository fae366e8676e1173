package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"borderd/internal/alert"
	"borderd/internal/camera"
	"borderd/internal/config"
	"borderd/internal/ledger"
	"borderd/internal/logging"
	"borderd/internal/spectral"
	"borderd/internal/statestore"
	"borderd/internal/vision"
)

// setup loads config, initializes logging, and opens the shared stores.
func setup(configPath string) (*config.Config, *statestore.Store, *ledger.Ledger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "borderd",
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logging: %w", err)
	}
	logging.SetDefault(logger)

	store, err := statestore.Open(cfg.Storage.StateDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open state store: %w", err)
	}

	lg, err := ledger.Open(ledger.Options{
		DBPath:    cfg.Storage.DBPath,
		ImageDirs: ledger.DefaultImageDirs(cfg.Storage.ImageRoot),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open threat ledger: %w", err)
	}

	return cfg, store, lg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so the
// loops can perform their terminal state writes before exiting.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newVisionLoop assembles the vision sensor loop from config.
func newVisionLoop(cfg *config.Config, store *statestore.Store, lg *ledger.Ledger) (*vision.Loop, func(), error) {
	var source camera.Source
	if cfg.Camera.FrameDir != "" {
		source = camera.NewFileSource(cfg.Camera.FrameDir, 0, true)
	} else {
		var err error
		source, err = camera.NewGstSource(camera.GstConfig{
			Device: cfg.Camera.Device,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.Camera.FPS,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create camera source: %w", err)
		}
	}

	detector, err := vision.NewONNXDetector(cfg.Vision.ModelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load detection model: %w", err)
	}

	throttle := alert.NewThrottle(alert.NewSounder(cfg.Alert.Sink), cfg.AlertCooldown())

	loop, err := vision.NewLoop(vision.LoopConfig{
		Source:              source,
		Detector:            detector,
		Ledger:              lg,
		State:               store,
		Throttle:            throttle,
		ConfidenceThreshold: cfg.Vision.ConfidenceThreshold,
		BlankWidth:          cfg.Camera.Width,
		BlankHeight:         cfg.Camera.Height,
	})
	if err != nil {
		detector.Close()
		return nil, nil, err
	}
	return loop, detector.Close, nil
}

// newSpectralLoop assembles the spectral sensor loop from config.
func newSpectralLoop(cfg *config.Config, store *statestore.Store) (*spectral.Loop, error) {
	return spectral.NewLoop(spectral.LoopConfig{
		Scanner: spectral.NmcliScanner{Interface: cfg.Spectral.Interface},
		State:   store,
		Period:  cfg.SpectralPeriod(),
		Rule: spectral.Rule{
			MaxNetworksForIsolation: cfg.Spectral.MaxNetworksForIsolation,
			StrongRSSIdBm:           cfg.Spectral.StrongRSSIdBm,
		},
	})
}

func cmdVision() {
	fs := flag.NewFlagSet("vision", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file")
	fs.Parse(os.Args[2:])

	cfg, store, lg, err := setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()

	loop, cleanup, err := newVisionLoop(cfg, store, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	if err := loop.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Vision loop failed: %v\n", err)
		os.Exit(1)
	}
}

func cmdSpectral() {
	fs := flag.NewFlagSet("spectral", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file")
	fs.Parse(os.Args[2:])

	cfg, store, lg, err := setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	lg.Close() // the spectral loop never touches the ledger

	loop, err := newSpectralLoop(cfg, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := loop.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Spectral loop failed: %v\n", err)
		os.Exit(1)
	}
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file")
	fs.Parse(os.Args[2:])

	cfg, store, lg, err := setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()

	visionLoop, cleanup, err := newVisionLoop(cfg, store, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	spectralLoop, err := newSpectralLoop(cfg, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 2)
	run := func(name string, f func(context.Context) error) {
		err := f(ctx)
		if err != nil {
			logging.Error("sensor loop failed", "loop", name, "error", err)
			// Bring the healthy loop down too so it writes its terminal
			// verdict instead of lingering half-alive.
			cancel()
		}
		errCh <- err
	}
	go run("vision", visionLoop.Run)
	go run("spectral", spectralLoop.Run)

	var failed bool
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
