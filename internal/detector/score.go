package detector

import (
	"image"
	"math"
)

// sizeNormalizer is the pixel area at which the size term saturates.
const sizeNormalizer = 5000.0

// Region is the bounding box and enclosed pixel area of one mask component.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
	Area   int `json:"area"`
}

// Bounds returns the region as an image.Rectangle.
func (r Region) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Center returns the box center using integer halving.
func (r Region) Center() image.Point {
	return image.Pt(r.X+r.Width/2, r.Y+r.Height/2)
}

// Candidate is a region that passed every filter.
type Candidate struct {
	Region
	BlueRatio float64 `json:"blue_ratio"`
	Score     float64 `json:"score"`
}

// ScoreCandidate combines color match, vertical position and size.
// Candidates lower on screen score higher on the position term. The
// result is not clamped, so weights summing above 1 can exceed 1.
func ScoreCandidate(c Candidate, frameHeight int, w ScoreWeights) float64 {
	var position float64
	if frameHeight > 0 {
		position = float64(c.Y) / float64(frameHeight)
	}
	size := math.Min(float64(c.Area)/sizeNormalizer, 1.0)
	return c.BlueRatio*w.Color + position*w.Position + size*w.Size
}

// SelectBest returns the highest scoring candidate. Ties go to the
// earliest candidate in the slice.
func SelectBest(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}
