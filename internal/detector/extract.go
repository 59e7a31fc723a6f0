package detector

import (
	"image/color"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DefaultMinBlueRatio is the lowest fraction of matching pixels a box may hold.
const DefaultMinBlueRatio = 0.3

// Extractor turns mask components into filtered candidates.
type Extractor struct {
	segmenter    *Segmenter
	minBlueRatio float64
	logger       *zap.Logger
}

// NewExtractor creates an Extractor that measures blue ratio with seg.
func NewExtractor(seg *Segmenter, minBlueRatio float64, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{segmenter: seg, minBlueRatio: minBlueRatio, logger: logger}
}

// Extract finds the outer contours of mask and keeps those that pass every
// profile filter and the blue-ratio test. Order follows contour order.
// Score is left at zero.
func (e *Extractor) Extract(frame, mask gocv.Mat, profile ResolutionProfile) ([]Candidate, error) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return nil, nil
	}

	// Each contour is filled into scratch to count its enclosed pixels,
	// then its box is cleared for the next one.
	scratch := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), mask.Rows(), mask.Cols(), gocv.MatTypeCV8U)
	defer scratch.Close()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 0}

	frameW, frameH := frame.Cols(), frame.Rows()
	var candidates []Candidate
	rejected := make(map[RejectReason]int)

	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		if rect.Empty() {
			continue
		}

		gocv.DrawContours(&scratch, contours, i, white, -1)
		roi := scratch.Region(rect)
		area := gocv.CountNonZero(roi)
		roi.SetTo(gocv.NewScalar(0, 0, 0, 0))
		roi.Close()

		region := Region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy(), Area: area}
		if reason := profile.Check(region, frameW, frameH); reason != Accepted {
			rejected[reason]++
			continue
		}

		ratio, err := e.segmenter.BlueRatio(frame, rect)
		if err != nil {
			return nil, err
		}
		if ratio < e.minBlueRatio {
			rejected[RejectBlueRatio]++
			continue
		}

		candidates = append(candidates, Candidate{Region: region, BlueRatio: ratio})
	}

	if len(rejected) > 0 {
		fields := make([]zap.Field, 0, len(rejected)+1)
		fields = append(fields, zap.Int("contours", contours.Size()))
		for reason, n := range rejected {
			fields = append(fields, zap.Int("rejected_"+string(reason), n))
		}
		e.logger.Debug("filtered mask components", fields...)
	}

	return candidates, nil
}
