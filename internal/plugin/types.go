// Package plugin discovers and runs hook plugins that react to advisory
// changes.
package plugin

import (
	"encoding/json"
	"strings"

	"github.com/ayusman/signalwatch/internal/decision"
)

// EventAdvisoryChanged is the only event sent to plugins.
const EventAdvisoryChanged = "advisory_changed"

// Manifest describes a plugin's metadata and the advisories it reacts to.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
	// Advisories filters which new advisories trigger the plugin. Empty
	// means every change.
	Advisories []string `json:"advisories,omitempty"`
}

// Request is written to the plugin's stdin.
type Request struct {
	Event    string            `json:"event"`
	Advisory decision.Advisory `json:"advisory"`
	Previous decision.Advisory `json:"previous"`
	Decision decision.Result   `json:"decision"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Subscribes reports whether the plugin wants to hear about advisory.
func (p *Plugin) Subscribes(advisory decision.Advisory) bool {
	if len(p.Manifest.Advisories) == 0 {
		return true
	}
	for _, a := range p.Manifest.Advisories {
		if strings.EqualFold(a, string(advisory)) {
			return true
		}
	}
	return false
}
