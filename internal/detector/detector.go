// Package detector turns video frames into traffic-light detections.
package detector

import (
	"errors"

	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/tracker"
)

var (
	// ErrModelNotConfigured is returned when no model path is set.
	ErrModelNotConfigured = errors.New("detector model not configured")
	// ErrEmptyFrame is returned when Detect is given a nil or empty frame.
	ErrEmptyFrame = errors.New("empty frame")
)

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the detected objects in
	// frame pixel coordinates. Returns an empty slice if nothing is detected.
	Detect(frame *gocv.Mat) ([]tracker.Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for detection.
type Config struct {
	// ModelPath is the path to an ONNX export of a YOLOv5-style model whose
	// classes are light states.
	ModelPath string `yaml:"model_path"`

	// Labels maps class indexes to state labels.
	Labels []string `yaml:"labels"`

	// InputSize is the square network input size in pixels (default: 640).
	InputSize int `yaml:"input_size" validate:"gt=0"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`

	// NMSThreshold is the IoU above which overlapping boxes are suppressed (0.0-1.0).
	NMSThreshold float64 `yaml:"nms_threshold" validate:"gte=0,lte=1"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Labels:        []string{"red", "amber", "green", "off", "arrow"},
		InputSize:     640,
		MinConfidence: 0.3,
		NMSThreshold:  0.45,
	}
}
