// Package app runs single bluescan detection cycles: capture or accept a
// frame, detect, record the outcome and notify observers.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/bluescan/internal/capture"
	"github.com/ayusman/bluescan/internal/detector"
	"github.com/ayusman/bluescan/internal/store"
)

// Frame sources recorded in the history.
const (
	SourceScreen = "screen"
	SourceUpload = "upload"
	SourceFile   = "file"
)

// ErrNoScreen is returned by ScanScreen when no screen is configured.
var ErrNoScreen = errors.New("no screen configured")

// Config holds configuration options for the application.
type Config struct {
	// Store records every cycle when set.
	Store *store.Store

	// Screen is captured by ScanScreen when set.
	Screen capture.Screen

	// Detector overrides the detector built from DetectorConfig.
	Detector detector.Detector

	DetectorConfig detector.Config

	Logger *zap.Logger
}

// Report is the outcome of one detection cycle.
type Report struct {
	ID         string              `json:"id"`
	CreatedAt  time.Time           `json:"created_at"`
	Source     string              `json:"source"`
	Found      bool                `json:"found"`
	Result     *detector.Result    `json:"result,omitempty"`
	Resolution detector.Resolution `json:"resolution"`
	Latency    time.Duration       `json:"latency_ns"`
	Error      string              `json:"error,omitempty"`
}

// resolutionDetector is implemented by detectors that accept an explicit
// display resolution, such as detector.ButtonDetector.
type resolutionDetector interface {
	DetectAt(frame *gocv.Mat, res detector.Resolution) (*detector.Result, error)
}

// App is the main application that orchestrates capture, detection and history.
type App struct {
	config    Config
	detector  detector.Detector
	screen    capture.Screen
	logger    *zap.Logger
	mu        sync.RWMutex
	observers []detector.Observer
}

// New creates a new App instance with the given configuration.
func New(config Config) (*App, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		config: config,
		screen: config.Screen,
		logger: logger,
	}

	if config.Detector != nil {
		a.detector = config.Detector
	} else {
		d, err := detector.New(config.DetectorConfig, detector.WithLogger(logger.Named("detector")))
		if err != nil {
			return nil, err
		}
		a.detector = d
	}

	return a, nil
}

// SetDetector sets the button detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the active detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// HasScreen reports whether ScanScreen can capture.
func (a *App) HasScreen() bool {
	return a.screen != nil
}

// History returns the detection repository, or nil without a store.
func (a *App) History() *store.DetectionRepository {
	if a.config.Store == nil {
		return nil
	}
	return a.config.Store.Detections()
}

// AddObserver registers o for the result of every cycle.
func (a *App) AddObserver(o detector.Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// Statistics returns the detector counters.
func (a *App) Statistics() detector.Stats {
	return a.Detector().Statistics()
}

// ResetStatistics clears the detector counters.
func (a *App) ResetStatistics() {
	a.Detector().ResetStatistics()
}

// ScanScreen captures the screen once and looks for a button in it.
// A failed capture still counts as an attempt and yields a not-found report.
func (a *App) ScanScreen() (*Report, error) {
	if a.screen == nil {
		return nil, ErrNoScreen
	}

	res, err := a.screen.Resolution()
	if err != nil {
		return nil, fmt.Errorf("query screen resolution: %w", err)
	}

	frame, err := a.screen.CaptureFrame()
	if err != nil {
		a.logger.Warn("screen capture failed", zap.Error(err))
		return a.run(nil, SourceScreen, &res, err.Error())
	}
	defer frame.Close()

	return a.run(frame, SourceScreen, &res, "")
}

// DetectFrame looks for a button in a caller supplied frame. The profile
// follows the frame size.
func (a *App) DetectFrame(frame *gocv.Mat, source string) (*Report, error) {
	return a.run(frame, source, nil, "")
}

func (a *App) run(frame *gocv.Mat, source string, display *detector.Resolution, captureErr string) (*Report, error) {
	det := a.Detector()

	start := time.Now()
	var result *detector.Result
	var err error
	if rd, ok := det.(resolutionDetector); ok && display != nil {
		result, err = rd.DetectAt(frame, *display)
	} else {
		result, err = det.Detect(frame)
	}
	latency := time.Since(start)

	report := &Report{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Found:     result != nil,
		Result:    result,
		Latency:   latency,
		Error:     captureErr,
	}
	switch {
	case result != nil:
		report.Resolution = result.Resolution
	case display != nil:
		report.Resolution = *display
	case frame != nil && !frame.Empty():
		report.Resolution = detector.Resolution{Width: frame.Cols(), Height: frame.Rows()}
	}

	if err != nil {
		report.Error = err.Error()
		a.record(report)
		a.logger.Error("detection failed", zap.String("source", source), zap.Error(err))
		return nil, err
	}

	a.record(report)
	a.notify(result)

	if result != nil {
		a.logger.Info("button found",
			zap.String("source", source),
			zap.Int("center_x", result.CenterX),
			zap.Int("center_y", result.CenterY),
			zap.Float64("score", result.Score),
			zap.Duration("latency", latency),
		)
	} else {
		a.logger.Debug("no button found", zap.String("source", source), zap.Duration("latency", latency))
	}

	return report, nil
}

// record stores the report. History failures are logged, never returned.
func (a *App) record(r *Report) {
	repo := a.History()
	if repo == nil {
		return
	}

	d := &store.Detection{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		Source:       r.Source,
		ScreenWidth:  r.Resolution.Width,
		ScreenHeight: r.Resolution.Height,
		Found:        r.Found,
		LatencyMS:    float64(r.Latency) / float64(time.Millisecond),
		Error:        r.Error,
	}
	if res := r.Result; res != nil {
		d.CenterX = res.CenterX
		d.CenterY = res.CenterY
		d.Width = res.Width
		d.Height = res.Height
		d.Score = res.Score
		d.BlueRatio = res.BlueRatio
		d.Candidates = res.Candidates
	}

	if err := repo.Create(d); err != nil {
		a.logger.Error("failed to record detection", zap.String("id", r.ID), zap.Error(err))
	}
}

func (a *App) notify(result *detector.Result) {
	a.mu.RLock()
	observers := make([]detector.Observer, len(a.observers))
	copy(observers, a.observers)
	a.mu.RUnlock()

	for _, o := range observers {
		o.OnResult(result)
	}
}

// Close releases the detector and screen. The store is owned by the caller.
func (a *App) Close() error {
	var errs []error
	if err := a.Detector().Close(); err != nil {
		errs = append(errs, err)
	}
	if a.screen != nil {
		if err := a.screen.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
