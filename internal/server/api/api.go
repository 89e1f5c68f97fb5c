// Package api provides the HTTP API handlers for the signalwatch service.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/pipeline"
	"github.com/ayusman/signalwatch/internal/tracker"
)

// Processor is the part of the application the API drives.
type Processor interface {
	// ProcessDetections runs caller-supplied detections through the pipeline.
	ProcessDetections(ctx context.Context, detections []tracker.Detection) pipeline.FrameResult
	// ProcessFrame runs the detector on frame and feeds the pipeline.
	ProcessFrame(ctx context.Context, frame *gocv.Mat) (pipeline.FrameResult, error)
	// LastResult returns the most recent result, if any frame was processed.
	LastResult() (pipeline.FrameResult, bool)
	// Tracks returns a snapshot of the live tracks.
	Tracks() []tracker.Track
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
