// Package detector locates blue buttons in screen captures using HSV
// thresholding, contour filtering and weighted scoring.
package detector

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Detector defines the interface for button detection implementations.
type Detector interface {
	// Detect analyzes a frame and returns the best button, or nil when
	// there is no frame or nothing qualifies.
	Detect(frame *gocv.Mat) (*Result, error)

	// Statistics returns a snapshot of the detection counters.
	Statistics() Stats

	// ResetStatistics clears the detection counters.
	ResetStatistics()

	// Close releases any resources held by the detector.
	Close() error
}

// Result is a detected button.
type Result struct {
	CenterX    int        `json:"center_x"`
	CenterY    int        `json:"center_y"`
	X          int        `json:"x"`
	Y          int        `json:"y"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Score      float64    `json:"score"`
	BlueRatio  float64    `json:"blue_ratio"`
	Candidates int        `json:"candidates"`
	Resolution Resolution `json:"resolution"`
}

func newResult(c Candidate, candidates int, res Resolution) *Result {
	center := c.Center()
	return &Result{
		CenterX:    center.X,
		CenterY:    center.Y,
		X:          c.X,
		Y:          c.Y,
		Width:      c.Width,
		Height:     c.Height,
		Score:      c.Score,
		BlueRatio:  c.BlueRatio,
		Candidates: candidates,
		Resolution: res,
	}
}

// ResolutionProvider reports the current display resolution.
type ResolutionProvider interface {
	Resolution() (Resolution, error)
}

// DebugSink receives a copy of the frame with all surviving candidates and
// the selected one (nil when none). The frame is closed after the call returns.
type DebugSink interface {
	OnDebugFrame(frame gocv.Mat, candidates []Candidate, selected *Candidate)
}

// DebugSinkFunc adapts a function to DebugSink.
type DebugSinkFunc func(frame gocv.Mat, candidates []Candidate, selected *Candidate)

func (f DebugSinkFunc) OnDebugFrame(frame gocv.Mat, candidates []Candidate, selected *Candidate) {
	f(frame, candidates, selected)
}

// Observer is notified after every completed detection. result is nil when
// nothing was found.
type Observer interface {
	OnResult(result *Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(result *Result)

func (f ObserverFunc) OnResult(result *Result) { f(result) }

// Config holds configuration options for button detection.
type Config struct {
	// Base are the thresholds authored at the reference resolution.
	Base BaseThresholds

	// ColorRanges are OR-combined during segmentation.
	ColorRanges []ColorRange

	// KernelSize is the side of the square morphology kernel (default: 3).
	KernelSize int

	// MinBlueRatio is the lowest matching-pixel fraction inside a box (0.0-1.0).
	MinBlueRatio float64

	// CacheSize bounds the number of cached resolution profiles (default: 10).
	CacheSize int

	// ResolutionTolerance is used by IsResolutionSimilar (default: 0.1).
	ResolutionTolerance float64

	// Debug enables the DebugSink.
	Debug bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Base:                DefaultBaseThresholds(),
		ColorRanges:         DefaultColorRanges(),
		KernelSize:          DefaultKernelSize,
		MinBlueRatio:        DefaultMinBlueRatio,
		CacheSize:           DefaultCacheSize,
		ResolutionTolerance: DefaultResolutionTolerance,
	}
}

// Validate checks the configuration without building a detector.
func (c Config) Validate() error {
	if err := c.Base.Validate(); err != nil {
		return err
	}
	if len(c.ColorRanges) == 0 {
		return fmt.Errorf("%w: no color ranges", ErrInvalidColorRange)
	}
	for _, r := range c.ColorRanges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if c.MinBlueRatio < 0 || c.MinBlueRatio > 1 {
		return fmt.Errorf("min blue ratio %v out of [0,1]", c.MinBlueRatio)
	}
	if c.ResolutionTolerance < 0 {
		return fmt.Errorf("resolution tolerance %v is negative", c.ResolutionTolerance)
	}
	return nil
}

// Option configures a ButtonDetector.
type Option func(*ButtonDetector)

// WithResolutionProvider makes profiles follow the display resolution
// instead of the frame size.
func WithResolutionProvider(p ResolutionProvider) Option {
	return func(d *ButtonDetector) { d.provider = p }
}

// WithDebugSink sets the sink used when Config.Debug is enabled.
func WithDebugSink(s DebugSink) Option {
	return func(d *ButtonDetector) { d.debugSink = s }
}

// WithObserver adds an observer notified after each detection.
func WithObserver(o Observer) Option {
	return func(d *ButtonDetector) { d.observers = append(d.observers, o) }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *ButtonDetector) { d.logger = l }
}

// ButtonDetector is the OpenCV implementation of Detector.
type ButtonDetector struct {
	cfg       Config
	segmenter *Segmenter
	extractor *Extractor
	cache     *ProfileCache
	stats     *Statistics
	provider  ResolutionProvider
	debugSink DebugSink
	logger    *zap.Logger

	mu        sync.RWMutex
	observers []Observer
}

// New creates a ButtonDetector from cfg.
func New(cfg Config, opts ...Option) (*ButtonDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}

	d := &ButtonDetector{
		cfg:    cfg,
		cache:  NewProfileCache(cfg.Base, cfg.CacheSize),
		stats:  NewStatistics(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	seg, err := NewSegmenter(cfg.ColorRanges, cfg.KernelSize)
	if err != nil {
		return nil, err
	}
	d.segmenter = seg
	d.extractor = NewExtractor(seg, cfg.MinBlueRatio, d.logger)

	return d, nil
}

// Config returns the configuration the detector was built with.
func (d *ButtonDetector) Config() Config {
	return d.cfg
}

// AddObserver registers an observer after construction.
func (d *ButtonDetector) AddObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Detect runs segmentation, extraction and scoring on frame.
// A nil or empty frame (no frame this cycle) and a frame without qualifying
// regions both return (nil, nil). An invalid profile aborts the call with
// ErrInvalidProfile. Two further errors also abort it: a frame that is not
// 8-bit BGR or BGRA returns ErrInvalidFrame, and a failed resolution query
// is returned wrapped. Every call counts as an attempt.
func (d *ButtonDetector) Detect(frame *gocv.Mat) (*Result, error) {
	if frame == nil || frame.Empty() || d.provider == nil {
		return d.detect(frame, nil)
	}

	res, err := d.provider.Resolution()
	if err != nil {
		d.stats.RecordAttempt()
		return nil, fmt.Errorf("query display resolution: %w", err)
	}
	return d.detect(frame, &res)
}

// DetectAt is Detect with the profile taken from res instead of the
// resolution provider or the frame size.
func (d *ButtonDetector) DetectAt(frame *gocv.Mat, res Resolution) (*Result, error) {
	return d.detect(frame, &res)
}

func (d *ButtonDetector) detect(frame *gocv.Mat, display *Resolution) (*Result, error) {
	start := time.Now()
	d.stats.RecordAttempt()

	if frame == nil || frame.Empty() {
		d.logger.Debug("no frame to analyze")
		return nil, nil
	}

	res := Resolution{Width: frame.Cols(), Height: frame.Rows()}
	if display != nil {
		res = *display
	}

	profile, err := d.cache.Get(res)
	if err != nil {
		d.logger.Error("resolution profile rejected", zap.Stringer("resolution", res), zap.Error(err))
		return nil, err
	}

	mask, err := d.segmenter.Segment(*frame)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	candidates, err := d.extractor.Extract(*frame, mask, profile)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		candidates[i].Score = ScoreCandidate(candidates[i], frame.Rows(), profile.Weights)
	}

	var result *Result
	var selected *Candidate
	if best, ok := SelectBest(candidates); ok {
		selected = &best
		result = newResult(best, len(candidates), res)
		d.stats.RecordSuccess()
	}

	elapsed := time.Since(start)
	d.stats.RecordLatency(elapsed)

	d.logger.Debug("detection complete",
		zap.Stringer("resolution", res),
		zap.Int("candidates", len(candidates)),
		zap.Bool("found", result != nil),
		zap.Duration("latency", elapsed),
	)

	if d.cfg.Debug && d.debugSink != nil {
		clone := frame.Clone()
		d.debugSink.OnDebugFrame(clone, candidates, selected)
		clone.Close()
	}

	d.notify(result)

	return result, nil
}

func (d *ButtonDetector) notify(result *Result) {
	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, o := range observers {
		o.OnResult(result)
	}
}

// Profile returns the cached profile for res.
func (d *ButtonDetector) Profile(res Resolution) (ResolutionProfile, error) {
	return d.cache.Get(res)
}

// ProfileCache exposes the underlying cache.
func (d *ButtonDetector) ProfileCache() *ProfileCache {
	return d.cache
}

// IsResolutionSimilar compares a and b with the configured tolerance.
func (d *ButtonDetector) IsResolutionSimilar(a, b Resolution) bool {
	return IsResolutionSimilar(a, b, d.cfg.ResolutionTolerance)
}

// Statistics returns a snapshot of the detection counters.
func (d *ButtonDetector) Statistics() Stats {
	return d.stats.Snapshot()
}

// SuccessRate returns the percentage of attempts that found a button.
func (d *ButtonDetector) SuccessRate() float64 {
	return d.stats.SuccessRate()
}

// ResetStatistics clears the detection counters.
func (d *ButtonDetector) ResetStatistics() {
	d.stats.Reset()
}

// Close is a no-op; every Mat is released within Detect.
func (d *ButtonDetector) Close() error {
	return nil
}
