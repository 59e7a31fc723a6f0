// Package capture grabs screen frames with kbinani/screenshot and hands
// them to the detector as GoCV Mats.
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"

	"github.com/ayusman/bluescan/internal/detector"
)

var (
	// ErrNoDisplay is returned when the requested display does not exist.
	ErrNoDisplay = errors.New("display not available")

	// ErrEmptyFrame is returned when a capture or decode produced no pixels.
	ErrEmptyFrame = errors.New("captured frame is empty")

	// ErrScreenClosed is returned when capturing from a closed screen.
	ErrScreenClosed = errors.New("screen is closed")
)

// Screen defines the interface for screen capture implementations.
// It also satisfies detector.ResolutionProvider.
type Screen interface {
	// CaptureFrame grabs the current screen as a BGR Mat.
	// The caller is responsible for closing the returned Mat.
	CaptureFrame() (*gocv.Mat, error)

	// Resolution returns the current size of the screen in pixels.
	Resolution() (detector.Resolution, error)

	Close() error
}

var _ detector.ResolutionProvider = (Screen)(nil)

// DisplayScreen captures one physical display.
type DisplayScreen struct {
	display int
	mu      sync.Mutex
	closed  bool
}

// NewDisplayScreen returns a Screen for display index n (0 is the primary).
func NewDisplayScreen(n int) (*DisplayScreen, error) {
	if count := screenshot.NumActiveDisplays(); n < 0 || n >= count {
		return nil, fmt.Errorf("%w: index %d, %d active", ErrNoDisplay, n, count)
	}
	return &DisplayScreen{display: n}, nil
}

// Display returns the display index being captured.
func (s *DisplayScreen) Display() int {
	return s.display
}

func (s *DisplayScreen) bounds() (image.Rectangle, error) {
	if s.display >= screenshot.NumActiveDisplays() {
		return image.Rectangle{}, fmt.Errorf("%w: index %d", ErrNoDisplay, s.display)
	}
	return screenshot.GetDisplayBounds(s.display), nil
}

// Resolution returns the display bounds.
func (s *DisplayScreen) Resolution() (detector.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return detector.Resolution{}, ErrScreenClosed
	}
	b, err := s.bounds()
	if err != nil {
		return detector.Resolution{}, err
	}
	return detector.Resolution{Width: b.Dx(), Height: b.Dy()}, nil
}

// CaptureFrame grabs the whole display.
func (s *DisplayScreen) CaptureFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrScreenClosed
	}

	b, err := s.bounds()
	if err != nil {
		return nil, err
	}

	img, err := screenshot.CaptureRect(b)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", s.display, err)
	}

	return FromImage(img)
}

// Close marks the screen closed. Subsequent captures fail.
func (s *DisplayScreen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FromImage converts an image to a BGR Mat.
// The caller is responsible for closing the returned Mat.
func FromImage(img image.Image) (*gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}

	return &mat, nil
}
