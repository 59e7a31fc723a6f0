// Package testframes builds synthetic screen captures for tests.
package testframes

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// BGR colors used by the fixtures.
var (
	Gray      = gocv.NewScalar(128, 128, 128, 0)
	Blue      = gocv.NewScalar(255, 0, 0, 0)     // H=120 S=255 V=255
	LightBlue = gocv.NewScalar(200, 169, 106, 0) // H=100 S=120 V=200, outside standard_blue
	Red       = gocv.NewScalar(0, 0, 255, 0)
	White     = gocv.NewScalar(255, 255, 255, 0)
)

// ButtonRect is the box drawn by ButtonFrame.
var ButtonRect = image.Rect(860, 900, 1060, 950)

// Blank returns a w x h BGR frame filled with c. The caller closes it.
func Blank(w, h int, c gocv.Scalar) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(c, h, w, gocv.MatTypeCV8UC3)
}

// Fill paints rect on frame with c.
func Fill(frame *gocv.Mat, rect image.Rectangle, c gocv.Scalar) {
	roi := frame.Region(rect)
	roi.SetTo(c)
	roi.Close()
}

// WithBoxes returns a gray w x h frame with every rect painted blue.
func WithBoxes(w, h int, rects ...image.Rectangle) gocv.Mat {
	frame := Blank(w, h, Gray)
	for _, r := range rects {
		Fill(&frame, r, Blue)
	}
	return frame
}

// ButtonFrame returns a gray 1920x1080 frame with one 200x50 blue button
// whose center is (960, 925).
func ButtonFrame() gocv.Mat {
	return WithBoxes(1920, 1080, ButtonRect)
}

// EncodePNG encodes frame as PNG bytes.
func EncodePNG(frame gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
