// Package decision reduces a set of tracks into a single advisory by
// majority vote over each track's recent label history.
package decision

import (
	"strings"

	"github.com/ayusman/signalwatch/internal/tracker"
)

// Advisory is the aggregate signal produced for a frame.
type Advisory string

const (
	// AdvisoryNoData means no frame has been processed yet.
	AdvisoryNoData Advisory = "NO_DATA"
	// AdvisoryNoDetections means the frame produced no live tracks.
	AdvisoryNoDetections Advisory = "NO_DETECTIONS"
	// AdvisoryStop means the share of red-majority tracks reached the red threshold.
	AdvisoryStop Advisory = "STOP"
	// AdvisoryGo means green-majority tracks are at least as many as red-majority ones.
	AdvisoryGo Advisory = "GO"
	// AdvisoryCaution covers the remaining case.
	AdvisoryCaution Advisory = "CAUTION"
)

// Labels that take part in voting. Matching is case-insensitive.
const (
	LabelRed   = "red"
	LabelGreen = "green"
)

// Config holds the voting parameters.
type Config struct {
	// Window is the number of most recent history entries considered per track.
	Window int `yaml:"window" validate:"gt=0"`

	// RedThreshold is the fraction of tracks voting red at which the
	// advisory becomes STOP.
	RedThreshold float64 `yaml:"red_threshold" validate:"gte=0,lte=1"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Window:       5,
		RedThreshold: 0.6,
	}
}

// TrackSummary is the per-track part of a Result.
type TrackSummary struct {
	ID      int      `json:"id"`
	Label   string   `json:"label"`
	History []string `json:"history"`
}

// Result is the outcome of a single Decide call.
type Result struct {
	Advisory    Advisory       `json:"advisory"`
	TotalTracks int            `json:"total_tracks"`
	RedVotes    int            `json:"red_votes"`
	GreenVotes  int            `json:"green_votes"`
	Tracks      []TrackSummary `json:"tracks"`
}

// Engine applies the voting rules. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	config Config
}

// New creates an Engine. A non-positive window falls back to the default.
func New(config Config) *Engine {
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	return &Engine{config: config}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Decide computes the advisory for the given tracks.
func (e *Engine) Decide(tracks []tracker.Track) Result {
	res := Result{
		Advisory: AdvisoryNoDetections,
		Tracks:   make([]TrackSummary, 0, len(tracks)),
	}
	if len(tracks) == 0 {
		return res
	}

	for _, t := range tracks {
		window := lastN(t.History, e.config.Window)

		var red, green int
		for _, label := range window {
			switch {
			case strings.EqualFold(label, LabelRed):
				red++
			case strings.EqualFold(label, LabelGreen):
				green++
			}
		}
		switch {
		case red > green:
			res.RedVotes++
		case green > red:
			res.GreenVotes++
		}

		res.Tracks = append(res.Tracks, TrackSummary{
			ID:      t.ID,
			Label:   t.Label,
			History: window,
		})
	}

	res.TotalTracks = len(tracks)
	ratio := float64(res.RedVotes) / float64(res.TotalTracks)
	switch {
	case ratio >= e.config.RedThreshold:
		res.Advisory = AdvisoryStop
	case res.GreenVotes >= res.RedVotes:
		res.Advisory = AdvisoryGo
	default:
		res.Advisory = AdvisoryCaution
	}
	return res
}

// lastN returns a copy of the last n entries of s.
func lastN(s []string, n int) []string {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return append(make([]string, 0, len(s)), s...)
}
