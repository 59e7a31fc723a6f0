package detector

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrInvalidFrame is returned for frames that are not 8-bit BGR or BGRA.
var ErrInvalidFrame = errors.New("invalid frame")

// DefaultKernelSize is the side of the square morphology kernel.
const DefaultKernelSize = 3

// Segmenter thresholds frames against a set of HSV ranges.
type Segmenter struct {
	ranges     []ColorRange
	kernelSize int
}

// NewSegmenter creates a Segmenter. At least one valid range is required.
func NewSegmenter(ranges []ColorRange, kernelSize int) (*Segmenter, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: no color ranges", ErrInvalidColorRange)
	}
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	if kernelSize <= 0 {
		kernelSize = DefaultKernelSize
	}
	rs := make([]ColorRange, len(ranges))
	copy(rs, ranges)
	return &Segmenter{ranges: rs, kernelSize: kernelSize}, nil
}

// Ranges returns a copy of the configured ranges in insertion order.
func (s *Segmenter) Ranges() []ColorRange {
	out := make([]ColorRange, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// toHSV converts a BGR or BGRA frame to HSV. The caller closes the result.
// On error the returned Mat is the zero value and must not be used.
func toHSV(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Type() != gocv.MatTypeCV8UC3 && frame.Type() != gocv.MatTypeCV8UC4 {
		return gocv.Mat{}, fmt.Errorf("%w: want 8-bit 3 or 4 channels, got %d channels", ErrInvalidFrame, frame.Channels())
	}

	hsv := gocv.NewMat()
	if frame.Channels() == 4 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(frame, &bgr, gocv.ColorBGRAToBGR)
		gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)
		return hsv, nil
	}
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)
	return hsv, nil
}

// rangeMask ORs the per-range masks of an HSV image into a single 8-bit mask.
func (s *Segmenter) rangeMask(hsv gocv.Mat) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), hsv.Rows(), hsv.Cols(), gocv.MatTypeCV8U)
	part := gocv.NewMat()
	defer part.Close()

	for _, r := range s.ranges {
		gocv.InRangeWithScalar(hsv, r.lowerScalar(), r.upperScalar(), &part)
		gocv.BitwiseOr(mask, part, &mask)
	}
	return mask
}

// Segment returns a binary mask (0 or 255) of pixels inside any range,
// denoised with one open pass followed by one close pass.
// The caller closes the returned Mat unless err is non-nil.
func (s *Segmenter) Segment(frame gocv.Mat) (gocv.Mat, error) {
	hsv, err := toHSV(frame)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer hsv.Close()

	mask := s.rangeMask(hsv)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(s.kernelSize, s.kernelSize))
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(mask, &opened, gocv.MorphOpen, kernel)
	gocv.MorphologyEx(opened, &mask, gocv.MorphClose, kernel)

	return mask, nil
}

// BlueRatio returns the fraction of pixels inside rect that match any range.
// It works on the raw frame, so morphology does not inflate the ratio.
func (s *Segmenter) BlueRatio(frame gocv.Mat, rect image.Rectangle) (float64, error) {
	rect = rect.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	total := rect.Dx() * rect.Dy()
	if total == 0 {
		return 0, nil
	}

	roi := frame.Region(rect)
	defer roi.Close()

	hsv, err := toHSV(roi)
	if err != nil {
		return 0, err
	}
	defer hsv.Close()

	mask := s.rangeMask(hsv)
	defer mask.Close()

	return float64(gocv.CountNonZero(mask)) / float64(total), nil
}
