// Package tray provides a system tray indicator for the current advisory.
package tray

import (
	"context"
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/pipeline"
)

// Tray represents the system tray application. It is a sink.Sink: every
// published result refreshes the advisory shown in the menu.
type Tray struct {
	onToggle func(enabled bool)
	onOpen   func()
	onQuit   func()
	enabled  bool
	advisory decision.Advisory
	tracks   int
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuAdvisory *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled:  true,
		advisory: decision.AdvisoryNoData,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback for the "Open Status" menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, unblocking Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	t.mu.Lock()
	systray.SetTitle(title(t.advisory))
	systray.SetTooltip("SignalWatch traffic light advisory")

	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Toggle the capture loop")
	systray.AddSeparator()

	t.menuAdvisory = systray.AddMenuItem(advisoryLabel(t.advisory, t.tracks), "Current advisory")
	t.menuAdvisory.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Status...", "Open the status page in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit SignalWatch")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the enabled state and notifies the callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Publish shows the advisory of res.
func (t *Tray) Publish(_ context.Context, res pipeline.FrameResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := t.advisory != res.Decision.Advisory || t.tracks != res.Decision.TotalTracks
	t.advisory = res.Decision.Advisory
	t.tracks = res.Decision.TotalTracks

	if changed && t.menuAdvisory != nil {
		t.menuAdvisory.SetTitle(advisoryLabel(t.advisory, t.tracks))
		systray.SetTitle(title(t.advisory))
	}
	return nil
}

// Advisory returns the advisory currently shown.
func (t *Tray) Advisory() decision.Advisory {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.advisory
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func title(advisory decision.Advisory) string {
	switch advisory {
	case decision.AdvisoryStop:
		return "● STOP"
	case decision.AdvisoryGo:
		return "● GO"
	case decision.AdvisoryCaution:
		return "● CAUTION"
	default:
		return "○ SignalWatch"
	}
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func advisoryLabel(advisory decision.Advisory, tracks int) string {
	return fmt.Sprintf("Advisory: %s (%d tracks)", advisory, tracks)
}
