// Package tracker assigns persistent identities to per-frame object detections
// using greedy nearest-centroid matching.
package tracker

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// HistoryLimit is the maximum number of labels kept in a track's history.
const HistoryLimit = 10

// BBox is an axis-aligned bounding region given by its top-left (X1, Y1) and
// bottom-right (X2, Y2) corners. It marshals to JSON as [x1, y1, x2, y2].
type BBox struct {
	X1 float64
	Y1 float64
	X2 float64 `validate:"gtfield=X1"`
	Y2 float64 `validate:"gtfield=Y1"`
}

// Centroid returns the midpoint of the box.
func (b BBox) Centroid() r2.Vec {
	return r2.Vec{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// MarshalJSON implements json.Marshaler.
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON implements json.Unmarshaler. Exactly four coordinates are required.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var coords []float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	if len(coords) != 4 {
		return fmt.Errorf("bbox: expected 4 coordinates, got %d", len(coords))
	}
	b.X1, b.Y1, b.X2, b.Y2 = coords[0], coords[1], coords[2], coords[3]
	return nil
}

// Detection is a single object reported by a detection source for one frame.
type Detection struct {
	BBox  BBox    `json:"bbox"`
	Label string  `json:"label" validate:"required"`
	Score float64 `json:"score" validate:"gte=0,lte=1"`
}

// Track is a persistent identity built from spatially close detections
// across frames.
type Track struct {
	ID      int      `json:"id"`
	BBox    BBox     `json:"bbox"`
	Label   string   `json:"label"`
	Score   float64  `json:"score"`
	History []string `json:"history"`
	Age     int      `json:"age"`
}

// observe folds a matched detection into the track and resets its age.
func (t *Track) observe(d Detection) {
	t.BBox = d.BBox
	t.Label = d.Label
	t.Score = d.Score
	t.History = append(t.History, d.Label)
	if len(t.History) > HistoryLimit {
		// Copy down rather than reslice so the backing array stays bounded.
		n := copy(t.History, t.History[len(t.History)-HistoryLimit:])
		t.History = t.History[:n]
	}
	t.Age = 0
}

// clone returns a copy that shares no memory with t.
func (t *Track) clone() Track {
	c := *t
	c.History = append([]string(nil), t.History...)
	return c
}
