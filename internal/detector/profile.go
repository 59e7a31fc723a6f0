package detector

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidProfile is returned when thresholds cannot be derived for a resolution.
// It signals a broken resolution source and must not be treated as "not found".
var ErrInvalidProfile = errors.New("invalid resolution profile")

// Resolution is a display size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses "WIDTHxHEIGHT", e.g. "1920x1080".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("parse resolution %q: expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Resolution{}, fmt.Errorf("parse resolution %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Resolution{}, fmt.Errorf("parse resolution %q: %w", s, err)
	}
	return Resolution{Width: width, Height: height}, nil
}

// ScoreWeights weights the three terms of a candidate score.
type ScoreWeights struct {
	Color    float64 `json:"color"`
	Position float64 `json:"position"`
	Size     float64 `json:"size"`
}

// DefaultScoreWeights favors color match, then low screen position, then size.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Color: 0.5, Position: 0.3, Size: 0.2}
}

// BaseThresholds are geometric bounds authored at a reference resolution.
type BaseThresholds struct {
	Reference         Resolution
	MinWidth          int
	MaxWidth          int
	MinHeight         int
	MaxHeight         int
	MinArea           int
	MaxArea           int
	MinAspectRatio    float64
	MaxAspectRatio    float64
	EdgeMarginPercent float64
	Weights           ScoreWeights
}

// DefaultBaseThresholds returns bounds tuned on a 1920x1080 display.
func DefaultBaseThresholds() BaseThresholds {
	return BaseThresholds{
		Reference:         Resolution{Width: 1920, Height: 1080},
		MinWidth:          50,
		MaxWidth:          300,
		MinHeight:         20,
		MaxHeight:         80,
		MinArea:           1000,
		MaxArea:           20000,
		MinAspectRatio:    1.8,
		MaxAspectRatio:    6.0,
		EdgeMarginPercent: 0.05,
		Weights:           DefaultScoreWeights(),
	}
}

// Validate checks the base bounds before any scaling happens.
func (b BaseThresholds) Validate() error {
	if b.Reference.Width <= 0 || b.Reference.Height <= 0 {
		return fmt.Errorf("%w: reference resolution %s", ErrInvalidProfile, b.Reference)
	}
	if b.EdgeMarginPercent < 0 || b.EdgeMarginPercent >= 0.5 {
		return fmt.Errorf("%w: edge margin percent %v out of [0,0.5)", ErrInvalidProfile, b.EdgeMarginPercent)
	}
	if b.Weights.Color < 0 || b.Weights.Position < 0 || b.Weights.Size < 0 {
		return fmt.Errorf("%w: negative score weight", ErrInvalidProfile)
	}
	return checkBounds(b.MinWidth, b.MaxWidth, b.MinHeight, b.MaxHeight, b.MinArea, b.MaxArea,
		b.MinAspectRatio, b.MaxAspectRatio)
}

// ResolutionProfile holds thresholds resolved for one display resolution.
type ResolutionProfile struct {
	Resolution     Resolution   `json:"resolution"`
	ScaleX         float64      `json:"scale_x"`
	ScaleY         float64      `json:"scale_y"`
	AreaScale      float64      `json:"area_scale"`
	MinWidth       int          `json:"min_width"`
	MaxWidth       int          `json:"max_width"`
	MinHeight      int          `json:"min_height"`
	MaxHeight      int          `json:"max_height"`
	MinArea        int          `json:"min_area"`
	MaxArea        int          `json:"max_area"`
	MinAspectRatio float64      `json:"min_aspect_ratio"`
	MaxAspectRatio float64      `json:"max_aspect_ratio"`
	EdgeMargin     int          `json:"edge_margin"`
	Weights        ScoreWeights `json:"weights"`
}

// Validate enforces non-negative bounds, min <= max, and 1 <= min aspect <= max aspect.
func (p ResolutionProfile) Validate() error {
	if p.Resolution.Width <= 0 || p.Resolution.Height <= 0 {
		return fmt.Errorf("%w: resolution %s", ErrInvalidProfile, p.Resolution)
	}
	if p.EdgeMargin < 0 {
		return fmt.Errorf("%w: negative edge margin", ErrInvalidProfile)
	}
	return checkBounds(p.MinWidth, p.MaxWidth, p.MinHeight, p.MaxHeight, p.MinArea, p.MaxArea,
		p.MinAspectRatio, p.MaxAspectRatio)
}

func checkBounds(minW, maxW, minH, maxH, minA, maxA int, minAR, maxAR float64) error {
	pairs := []struct {
		name     string
		min, max int
	}{
		{"width", minW, maxW},
		{"height", minH, maxH},
		{"area", minA, maxA},
	}
	for _, p := range pairs {
		if p.min < 0 || p.max < 0 {
			return fmt.Errorf("%w: negative %s bound", ErrInvalidProfile, p.name)
		}
		if p.min > p.max {
			return fmt.Errorf("%w: min %s %d > max %d", ErrInvalidProfile, p.name, p.min, p.max)
		}
	}
	if minAR < 1 || minAR > maxAR {
		return fmt.Errorf("%w: aspect ratio bounds [%v,%v]", ErrInvalidProfile, minAR, maxAR)
	}
	return nil
}

// truncate drops the fractional part, tolerating binary float error
// such as 300*(1280/1920) evaluating to 199.99999999999997.
func truncate(v float64) int {
	return int(math.Floor(v + 1e-9))
}

// DeriveProfile scales base thresholds to res. Width bounds follow the
// horizontal scale, height bounds the vertical one, and area bounds the
// geometric mean of both. Aspect ratios and weights are copied unchanged.
// The edge margin is a fraction of the shorter screen side.
func DeriveProfile(base BaseThresholds, res Resolution) (ResolutionProfile, error) {
	if res.Width <= 0 || res.Height <= 0 {
		return ResolutionProfile{}, fmt.Errorf("%w: non-positive resolution %s", ErrInvalidProfile, res)
	}
	if err := base.Validate(); err != nil {
		return ResolutionProfile{}, err
	}

	scaleX := float64(res.Width) / float64(base.Reference.Width)
	scaleY := float64(res.Height) / float64(base.Reference.Height)
	areaScale := math.Sqrt(scaleX * scaleY)

	p := ResolutionProfile{
		Resolution:     res,
		ScaleX:         scaleX,
		ScaleY:         scaleY,
		AreaScale:      areaScale,
		MinWidth:       truncate(float64(base.MinWidth) * scaleX),
		MaxWidth:       truncate(float64(base.MaxWidth) * scaleX),
		MinHeight:      truncate(float64(base.MinHeight) * scaleY),
		MaxHeight:      truncate(float64(base.MaxHeight) * scaleY),
		MinArea:        truncate(float64(base.MinArea) * areaScale),
		MaxArea:        truncate(float64(base.MaxArea) * areaScale),
		MinAspectRatio: base.MinAspectRatio,
		MaxAspectRatio: base.MaxAspectRatio,
		EdgeMargin:     truncate(float64(min(res.Width, res.Height)) * base.EdgeMarginPercent),
		Weights:        base.Weights,
	}
	if err := p.Validate(); err != nil {
		return ResolutionProfile{}, err
	}
	return p, nil
}

// RejectReason names the filter a region failed. The empty value means accepted.
type RejectReason string

const (
	Accepted          RejectReason = ""
	RejectArea        RejectReason = "area"
	RejectWidth       RejectReason = "width"
	RejectHeight      RejectReason = "height"
	RejectAspectRatio RejectReason = "aspect_ratio"
	RejectEdgeMargin  RejectReason = "edge_margin"
	RejectBlueRatio   RejectReason = "blue_ratio"
)

// Check runs the geometric filters against a region found in a frame of
// frameW x frameH pixels. All bounds are inclusive.
func (p ResolutionProfile) Check(r Region, frameW, frameH int) RejectReason {
	if r.Area < p.MinArea || r.Area > p.MaxArea {
		return RejectArea
	}
	if r.Width < p.MinWidth || r.Width > p.MaxWidth {
		return RejectWidth
	}
	if r.Height < p.MinHeight || r.Height > p.MaxHeight {
		return RejectHeight
	}
	if r.Height <= 0 {
		return RejectAspectRatio
	}
	aspect := float64(r.Width) / float64(r.Height)
	if aspect < p.MinAspectRatio || aspect > p.MaxAspectRatio {
		return RejectAspectRatio
	}
	m := p.EdgeMargin
	if r.X < m || r.Y < m || r.X+r.Width > frameW-m || r.Y+r.Height > frameH-m {
		return RejectEdgeMargin
	}
	return Accepted
}

// DefaultResolutionTolerance is the relative per-dimension difference
// under which two resolutions count as similar.
const DefaultResolutionTolerance = 0.1

// IsResolutionSimilar reports whether a and b differ by at most tolerance,
// relative to the larger value, in both width and height.
func IsResolutionSimilar(a, b Resolution, tolerance float64) bool {
	return withinTolerance(a.Width, b.Width, tolerance) && withinTolerance(a.Height, b.Height, tolerance)
}

func withinTolerance(a, b int, tolerance float64) bool {
	larger := max(a, b)
	if larger <= 0 {
		return a == b
	}
	diff := math.Abs(float64(a - b))
	return diff/float64(larger) <= tolerance
}
