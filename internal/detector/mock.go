package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	result *Result
	err    error
	stats  *Statistics
	calls  int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{stats: NewStatistics()}
}

// SetResult sets the result that will be returned by Detect.
func (m *MockDetector) SetResult(r *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured result or error and updates the counters
// the same way ButtonDetector does.
func (m *MockDetector) Detect(frame *gocv.Mat) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.stats.RecordAttempt()
	if m.err != nil {
		return nil, m.err
	}
	if frame == nil || frame.Empty() {
		return nil, nil
	}
	if m.result == nil {
		return nil, nil
	}
	m.stats.RecordSuccess()
	r := *m.result
	return &r, nil
}

func (m *MockDetector) Statistics() Stats { return m.stats.Snapshot() }
func (m *MockDetector) ResetStatistics()  { m.stats.Reset() }

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// CenteredResult returns a Result for a w x h button centered at (cx, cy).
func CenteredResult(cx, cy, w, h int) *Result {
	return &Result{
		CenterX:   cx,
		CenterY:   cy,
		X:         cx - w/2,
		Y:         cy - h/2,
		Width:     w,
		Height:    h,
		Score:     0.9,
		BlueRatio: 1.0,
	}
}
