package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/bluescan/internal/app"
	"github.com/ayusman/bluescan/internal/capture"
	"github.com/ayusman/bluescan/internal/config"
	"github.com/ayusman/bluescan/internal/detector"
	"github.com/ayusman/bluescan/internal/logging"
	"github.com/ayusman/bluescan/internal/server"
	"github.com/ayusman/bluescan/internal/store"
)

const version = "0.1.0"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "serve":
		err = handleServe(args)
	case "scan":
		err = handleScan(args)
	case "detect":
		err = handleDetect(args)
	case "profile":
		err = handleProfile(args)
	case "version":
		fmt.Printf("bluescan version %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "bluescan %s: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bluescan - Locate blue call-to-action buttons on screen

Usage: bluescan <command> [options]

Commands:
  serve      Run the HTTP API
  scan       Capture the display once and print the detection report
  detect     Run detection on an image file
  profile    Print the resolution profile for a display size
  version    Show bluescan version
  help       Show this help message

Common Flags:
  --config <file>      YAML configuration file
                       Settings can also be set with BLUESCAN_* variables

Examples:
  bluescan serve --config bluescan.yaml
  bluescan detect --image screenshot.png
  bluescan profile --resolution 3840x2160`)
}

// env bundles what every command needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	app    *app.App
	det    *detector.ButtonDetector
}

func (r *env) Close() {
	if r.app != nil {
		r.app.Close()
	}
	if r.store != nil {
		r.store.Close()
	}
	logging.Sync(r.logger)
}

// setup loads configuration and builds the application. Capture is only
// opened when withScreen is set and enabled in the configuration.
func setup(configPath string, withScreen bool) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	r := &env{cfg: cfg, logger: logger}

	if cfg.Store.Path != "" {
		st, err := store.New(cfg.Store.Path, store.WithLogger(logger.Named("store")))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		r.store = st
	}

	dcfg, err := cfg.DetectorConfig()
	if err != nil {
		r.Close()
		return nil, err
	}

	opts := []detector.Option{detector.WithLogger(logger.Named("detector"))}
	if dcfg.Debug {
		opts = append(opts, detector.WithDebugSink(debugLogger(logger.Named("debug"))))
	}

	var screen capture.Screen
	if withScreen && cfg.Capture.Enabled {
		ds, err := capture.NewDisplayScreen(cfg.Capture.Display)
		if err != nil {
			logger.Warn("screen capture unavailable", zap.Int("display", cfg.Capture.Display), zap.Error(err))
		} else {
			logger.Info("capturing display", zap.Int("display", ds.Display()))
			screen = ds
		}
	}

	det, err := detector.New(dcfg, opts...)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.det = det

	a, err := app.New(app.Config{
		Store:    r.store,
		Screen:   screen,
		Detector: det,
		Logger:   logger,
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	r.app = a

	return r, nil
}

// debugLogger reports every candidate of a detection at debug level.
func debugLogger(logger *zap.Logger) detector.DebugSink {
	return detector.DebugSinkFunc(func(frame gocv.Mat, candidates []detector.Candidate, selected *detector.Candidate) {
		for i, c := range candidates {
			logger.Debug("candidate",
				zap.Int("index", i),
				zap.Int("x", c.X),
				zap.Int("y", c.Y),
				zap.Int("width", c.Width),
				zap.Int("height", c.Height),
				zap.Int("area", c.Area),
				zap.Float64("blue_ratio", c.BlueRatio),
				zap.Float64("score", c.Score),
				zap.Bool("selected", selected != nil && selected.Region == c.Region),
			)
		}
		logger.Debug("frame analyzed",
			zap.Int("cols", frame.Cols()),
			zap.Int("rows", frame.Rows()),
			zap.Int("candidates", len(candidates)),
		)
	})
}

func handleServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	fs.Parse(args)

	r, err := setup(*configPath, true)
	if err != nil {
		return err
	}
	defer r.Close()

	if *addr != "" {
		r.cfg.Server.Addr = *addr
	}

	srv := server.New(server.Config{
		App:           r.app,
		Store:         r.store,
		Profiles:      detector.NewProfileLookup(r.det.Config()),
		MaxUploadSize: r.cfg.Server.MaxUploadSize,
		Logger:        r.logger.Named("http"),
	})
	httpServer := srv.HTTPServer(r.cfg.Server.Addr, r.cfg.Server.ReadTimeout, r.cfg.Server.WriteTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("starting server",
			zap.String("addr", r.cfg.Server.Addr),
			zap.Bool("screen", r.app.HasScreen()),
			zap.String("store", r.cfg.Store.Path),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func handleScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	fs.Parse(args)

	r, err := setup(*configPath, true)
	if err != nil {
		return err
	}
	defer r.Close()

	report, err := r.app.ScanScreen()
	if err != nil {
		return err
	}
	return printJSON(report)
}

func handleDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	imagePath := fs.String("image", "", "PNG or JPEG screenshot (required)")
	fs.Parse(args)

	if *imagePath == "" {
		fs.Usage()
		return errors.New("--image is required")
	}

	r, err := setup(*configPath, false)
	if err != nil {
		return err
	}
	defer r.Close()

	frame, err := capture.LoadFrame(*imagePath)
	if err != nil {
		return err
	}
	defer frame.Close()

	report, err := r.app.DetectFrame(frame, app.SourceFile)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func handleProfile(args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	resolution := fs.String("resolution", "", "Display size as WIDTHxHEIGHT (required)")
	fs.Parse(args)

	res, err := detector.ParseResolution(*resolution)
	if err != nil {
		fs.Usage()
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	dcfg, err := cfg.DetectorConfig()
	if err != nil {
		return err
	}

	profile, err := detector.DeriveProfile(dcfg.Base, res)
	if err != nil {
		return err
	}
	return printJSON(profile)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
