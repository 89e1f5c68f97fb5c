// Package pipeline binds one frame of detections through the tracker and the
// decision engine.
package pipeline

import (
	"log"
	"time"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/tracker"
)

// FrameResult is what a frame produces for the result sinks.
type FrameResult struct {
	Time     time.Time       `json:"time"`
	Decision decision.Result `json:"decision"`
	Tracks   []tracker.Track `json:"-"`
	// Dropped counts detections rejected by validation before tracking.
	Dropped int `json:"dropped,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	// Validate drops detections that fail tracker.Validate before they reach
	// the tracker.
	Validate bool
}

// Pipeline feeds detections to a Tracker and the resulting tracks to an
// Engine. It keeps no state of its own; the tracker owns the track store.
type Pipeline struct {
	tracker *tracker.Tracker
	engine  *decision.Engine
	opts    Options
}

// New creates a Pipeline over the given tracker and engine.
func New(t *tracker.Tracker, e *decision.Engine, opts Options) *Pipeline {
	return &Pipeline{
		tracker: t,
		engine:  e,
		opts:    opts,
	}
}

// Tracker returns the underlying tracker.
func (p *Pipeline) Tracker() *tracker.Tracker {
	return p.tracker
}

// Process runs one frame of detections through the tracker and the engine.
func (p *Pipeline) Process(detections []tracker.Detection) FrameResult {
	dropped := 0
	if p.opts.Validate {
		detections, dropped = filterValid(detections)
	}

	tracks := p.tracker.Update(detections)

	return FrameResult{
		Time:     time.Now(),
		Decision: p.engine.Decide(tracks),
		Tracks:   tracks,
		Dropped:  dropped,
	}
}

// filterValid returns the detections that pass validation and how many were dropped.
func filterValid(detections []tracker.Detection) ([]tracker.Detection, int) {
	valid := make([]tracker.Detection, 0, len(detections))
	for _, d := range detections {
		if err := tracker.Validate(d); err != nil {
			log.Printf("Dropping detection: %v", err)
			continue
		}
		valid = append(valid, d)
	}
	return valid, len(detections) - len(valid)
}
