package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// MaxHue is the largest hue value in OpenCV's 8-bit HSV encoding.
const MaxHue = 179

// ErrInvalidColorRange is returned when a color range has inverted or out-of-range bounds.
var ErrInvalidColorRange = errors.New("invalid color range")

// HSV is a pixel in OpenCV's 8-bit hue-saturation-value encoding.
// H is in [0,179], S and V are in [0,255].
type HSV struct {
	H uint8 `json:"h"`
	S uint8 `json:"s"`
	V uint8 `json:"v"`
}

// ColorRange is a named, inclusive HSV box.
type ColorRange struct {
	Name  string `json:"name"`
	Lower HSV    `json:"lower"`
	Upper HSV    `json:"upper"`
}

// NewColorRange creates a validated ColorRange.
func NewColorRange(name string, lower, upper HSV) (ColorRange, error) {
	r := ColorRange{Name: name, Lower: lower, Upper: upper}
	if err := r.Validate(); err != nil {
		return ColorRange{}, err
	}
	return r, nil
}

// Validate checks that lower <= upper on every channel and that hue stays within MaxHue.
func (r ColorRange) Validate() error {
	if r.Lower.H > r.Upper.H || r.Lower.S > r.Upper.S || r.Lower.V > r.Upper.V {
		return fmt.Errorf("%w: %q lower bound exceeds upper bound", ErrInvalidColorRange, r.Name)
	}
	if r.Upper.H > MaxHue {
		return fmt.Errorf("%w: %q hue %d exceeds %d", ErrInvalidColorRange, r.Name, r.Upper.H, MaxHue)
	}
	return nil
}

// Contains reports whether p falls inside the range on all three channels.
func (r ColorRange) Contains(p HSV) bool {
	return p.H >= r.Lower.H && p.H <= r.Upper.H &&
		p.S >= r.Lower.S && p.S <= r.Upper.S &&
		p.V >= r.Lower.V && p.V <= r.Upper.V
}

func (r ColorRange) lowerScalar() gocv.Scalar {
	return gocv.NewScalar(float64(r.Lower.H), float64(r.Lower.S), float64(r.Lower.V), 0)
}

func (r ColorRange) upperScalar() gocv.Scalar {
	return gocv.NewScalar(float64(r.Upper.H), float64(r.Upper.S), float64(r.Upper.V), 0)
}

// DefaultColorRanges returns the two blue bands buttons are usually painted in.
func DefaultColorRanges() []ColorRange {
	return []ColorRange{
		{Name: "standard_blue", Lower: HSV{105, 80, 80}, Upper: HSV{125, 255, 255}},
		{Name: "light_blue", Lower: HSV{95, 60, 100}, Upper: HSV{115, 200, 255}},
	}
}
