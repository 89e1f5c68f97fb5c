// Package app wires capture, detection, the frame pipeline and the result
// sinks into the running signalwatch service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/signalwatch/internal/capture"
	"github.com/ayusman/signalwatch/internal/detector"
	"github.com/ayusman/signalwatch/internal/pipeline"
	"github.com/ayusman/signalwatch/internal/plugin"
	"github.com/ayusman/signalwatch/internal/sink"
	"github.com/ayusman/signalwatch/internal/tracker"
)

// ErrNoCamera is returned by Start when no camera is configured.
var ErrNoCamera = errors.New("no camera configured")

// pluginQueue bounds pending plugin notifications.
const pluginQueue = 16

// Config holds configuration options for the application.
type Config struct {
	Pipeline *pipeline.Pipeline
	// Camera feeds the capture loop; nil leaves only the HTTP frame path.
	Camera capture.Camera
	FPS    int
	// Detector is used as given. When nil, a YOLO detector is built from
	// DetectorConfig, falling back to an empty-scene mock.
	Detector       detector.Detector
	DetectorConfig detector.Config
	// Overlay keeps a rendered JPEG of the last captured frame.
	Overlay         bool
	PluginDir       string
	PluginTimeoutMs int
}

// App is the main application that runs frames through the pipeline and
// publishes results.
type App struct {
	config     Config
	camera     capture.Camera
	detector   detector.Detector
	pipeline   *pipeline.Pipeline
	pluginMgr  *plugin.Manager
	pluginSink *sink.Async
	sinks      sink.Multi
	enabled    bool
	// order serializes frames from the HTTP path and the capture loop so
	// results are stored and published in tracker order.
	order    sync.Mutex
	last     *pipeline.FrameResult
	lastJPEG []byte
	mu       sync.RWMutex
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.PluginTimeoutMs <= 0 {
		config.PluginTimeoutMs = 5000
	}

	a := &App{
		config:    config,
		camera:    config.Camera,
		detector:  config.Detector,
		pipeline:  config.Pipeline,
		pluginMgr: plugin.NewManager(config.PluginDir),
		enabled:   true,
	}

	if a.detector == nil {
		if yolo, err := detector.NewYOLODetector(config.DetectorConfig); err == nil {
			a.detector = yolo
			log.Printf("Using YOLO detector %s", config.DetectorConfig.ModelPath)
		} else {
			log.Printf("YOLO detector not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	if config.PluginDir != "" {
		hooks := sink.NewPlugins(a.pluginMgr, plugin.NewExecutor(config.PluginTimeoutMs))
		a.pluginSink = sink.NewAsync(hooks, pluginQueue)
		a.sinks = append(a.sinks, a.pluginSink)
	}

	return a
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	if err := a.pluginMgr.Discover(); err != nil {
		return err
	}
	for _, p := range a.pluginMgr.List() {
		log.Printf("Loaded plugin %s %s", p.Manifest.Name, p.Manifest.Version)
	}
	return nil
}

// AddSink registers s to receive every frame result.
func (a *App) AddSink(s sink.Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// SetEnabled enables or disables the capture loop. HTTP frames are always
// processed.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether the capture loop is processing frames.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Camera returns the camera instance, or nil.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// ProcessDetections runs one frame of detections through the pipeline and
// publishes the result. Sink failures are logged. Sinks see results in the
// order the tracker produced them; slow sinks belong behind sink.Async.
func (a *App) ProcessDetections(ctx context.Context, detections []tracker.Detection) pipeline.FrameResult {
	a.order.Lock()
	defer a.order.Unlock()

	res := a.pipeline.Process(detections)

	a.mu.Lock()
	a.last = &res
	sinks := append(sink.Multi(nil), a.sinks...)
	a.mu.Unlock()

	if err := sinks.Publish(ctx, res); err != nil {
		log.Printf("Publish failed: %v", err)
	}
	return res
}

// ProcessFrame detects lights in frame and processes the detections.
func (a *App) ProcessFrame(ctx context.Context, frame *gocv.Mat) (pipeline.FrameResult, error) {
	d := a.Detector()
	detections, err := d.Detect(frame)
	if err != nil {
		return pipeline.FrameResult{}, fmt.Errorf("detect: %w", err)
	}
	return a.ProcessDetections(ctx, detections), nil
}

// LastResult returns the most recent frame result.
func (a *App) LastResult() (pipeline.FrameResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return pipeline.FrameResult{}, false
	}
	return *a.last, true
}

// Tracks returns a snapshot of the live tracks.
func (a *App) Tracks() []tracker.Track {
	return a.pipeline.Tracker().Tracks()
}

// LastJPEG returns the overlay of the last captured frame.
func (a *App) LastJPEG() ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastJPEG, a.lastJPEG != nil
}

func (a *App) setLastJPEG(jpeg []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastJPEG = jpeg
}

// Start opens the camera and begins the capture loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.camera == nil {
		return ErrNoCamera
	}

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runLoop(a.stopCh, a.doneCh)

	log.Println("Capture loop started")
	return nil
}

// Stop halts the capture loop and closes the camera. It is safe to call
// when the loop is not running.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	log.Println("Capture loop stopped")
}

// Running reports whether the capture loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Close stops the loop and releases the detector and plugin queue.
func (a *App) Close() error {
	a.Stop()

	if a.pluginSink != nil {
		a.pluginSink.Close()
	}
	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			return fmt.Errorf("close detector: %w", err)
		}
	}
	return nil
}
