// Package testutil holds recorded detection scenarios shared by tests.
package testutil

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/pipeline"
	"github.com/ayusman/signalwatch/internal/tracker"
)

//go:embed testdata/*.json
var scenariosFS embed.FS

// Scenario is a recorded sequence of per-frame detections with the
// advisory and live track count expected after each frame.
type Scenario struct {
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	MaxDistance  float64               `json:"max_distance"`
	MaxAge       int                   `json:"max_age"`
	Window       int                   `json:"window"`
	RedThreshold float64               `json:"red_threshold"`
	Frames       [][]tracker.Detection `json:"frames"`
	Expect       []decision.Advisory   `json:"expect"`
	Tracks       []int                 `json:"tracks"`
}

// TrackerConfig returns the tracker settings the scenario was recorded with.
func (s *Scenario) TrackerConfig() tracker.Config {
	return tracker.Config{MaxDistance: s.MaxDistance, MaxAge: s.MaxAge}
}

// DecisionConfig returns the voting settings the scenario was recorded with.
func (s *Scenario) DecisionConfig() decision.Config {
	return decision.Config{Window: s.Window, RedThreshold: s.RedThreshold}
}

// Pipeline builds a fresh validating pipeline for the scenario.
func (s *Scenario) Pipeline() *pipeline.Pipeline {
	return pipeline.New(
		tracker.New(s.TrackerConfig()),
		decision.New(s.DecisionConfig()),
		pipeline.Options{Validate: true},
	)
}

// LoadScenario loads a scenario by name.
func LoadScenario(name string) (*Scenario, error) {
	data, err := scenariosFS.ReadFile(path.Join("testdata", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", name, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", name, err)
	}
	if len(s.Expect) != len(s.Frames) || len(s.Tracks) != len(s.Frames) {
		return nil, fmt.Errorf("scenario %s: %d frames but %d advisories and %d track counts",
			name, len(s.Frames), len(s.Expect), len(s.Tracks))
	}

	return &s, nil
}

// Scenarios loads every recorded scenario, sorted by name.
func Scenarios() ([]*Scenario, error) {
	entries, err := scenariosFS.ReadDir("testdata")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(name)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
