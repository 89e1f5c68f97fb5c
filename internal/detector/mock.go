package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/tracker"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results. Without any
// detections set it reports an empty scene, which is also what the
// service falls back to when no model is configured.
type MockDetector struct {
	detections []tracker.Detection
	err        error
	calls      int
	mu         sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(detections []tracker.Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = detections
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]tracker.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]tracker.Detection(nil), m.detections...), nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// RedLight returns a detection of a red light centred on (cx, cy).
func RedLight(cx, cy float64) tracker.Detection {
	return light(cx, cy, "red")
}

// GreenLight returns a detection of a green light centred on (cx, cy).
func GreenLight(cx, cy float64) tracker.Detection {
	return light(cx, cy, "green")
}

func light(cx, cy float64, label string) tracker.Detection {
	return tracker.Detection{
		BBox:  tracker.BBox{X1: cx - 10, Y1: cy - 25, X2: cx + 10, Y2: cy + 25},
		Label: label,
		Score: 0.9,
	}
}
