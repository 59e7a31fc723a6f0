package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/bluescan/internal/detector"
)

// MockScreen plays back pre-built frames for testing
type MockScreen struct {
	frames     []*gocv.Mat
	index      int
	loop       bool
	resolution detector.Resolution
	resErr     error
	mu         sync.Mutex
	closed     bool
}

// NewMockScreen creates a MockScreen. The resolution defaults to the
// size of the first frame.
func NewMockScreen(frames []*gocv.Mat, loop bool) *MockScreen {
	s := &MockScreen{
		frames: frames,
		loop:   loop,
	}
	if len(frames) > 0 && frames[0] != nil {
		s.resolution = detector.Resolution{Width: frames[0].Cols(), Height: frames[0].Rows()}
	}
	return s
}

func (s *MockScreen) CaptureFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrScreenClosed
	}

	if len(s.frames) == 0 {
		return nil, fmt.Errorf("no frames available: %w", ErrEmptyFrame)
	}

	if s.index >= len(s.frames) {
		if s.loop {
			s.index = 0
		} else {
			return nil, fmt.Errorf("no more frames: %w", ErrEmptyFrame)
		}
	}

	// Clone the frame so the original isn't modified
	frame := s.frames[s.index].Clone()
	s.index++

	return &frame, nil
}

func (s *MockScreen) Resolution() (detector.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resErr != nil {
		return detector.Resolution{}, s.resErr
	}
	return s.resolution, nil
}

func (s *MockScreen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetResolution overrides the reported display resolution
func (s *MockScreen) SetResolution(r detector.Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolution = r
}

// SetResolutionError makes Resolution fail with err
func (s *MockScreen) SetResolutionError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resErr = err
}

// SetFrames replaces the frame sequence
func (s *MockScreen) SetFrames(frames []*gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = frames
	s.index = 0
}

// Reset restarts playback from the beginning
func (s *MockScreen) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
}
