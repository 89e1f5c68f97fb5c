package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/signalwatch/internal/app"
	"github.com/ayusman/signalwatch/internal/capture"
	"github.com/ayusman/signalwatch/internal/config"
	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/pipeline"
	"github.com/ayusman/signalwatch/internal/server"
	"github.com/ayusman/signalwatch/internal/sink"
	"github.com/ayusman/signalwatch/internal/store"
	"github.com/ayusman/signalwatch/internal/tracker"
	"github.com/ayusman/signalwatch/internal/tray"
)

// Queue sizes for the sinks that do I/O off the frame path.
const (
	journalQueue = 64
	hubQueue     = 16
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	withTray := flag.Bool("tray", false, "show the system tray indicator")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	fmt.Println("Signalwatch - Traffic Light Advisory")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *withTray {
		cfg.Tray = true
	}

	st, err := store.New(cfg.Store.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	p := pipeline.New(
		tracker.New(cfg.Tracker),
		decision.New(cfg.Decision),
		pipeline.Options{Validate: cfg.Pipeline.Validate},
	)

	appCfg := app.Config{
		Pipeline:        p,
		FPS:             cfg.Camera.FPS,
		DetectorConfig:  cfg.Detector,
		Overlay:         cfg.Camera.Enabled,
		PluginDir:       cfg.Plugins.Dir,
		PluginTimeoutMs: cfg.Plugins.TimeoutMs,
	}
	if cfg.Camera.Enabled {
		appCfg.Camera = capture.NewCamera(cfg.Camera.Source, cfg.Camera.Loop)
	}
	application := app.New(appCfg)
	defer application.Close()

	if err := application.DiscoverPlugins(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}

	hub := server.NewHub()
	sinks, closeSinks := resultSinks(st, cfg.Store.Keep, hub)
	defer closeSinks()
	for _, s := range sinks {
		application.AddSink(s)
	}

	srvCfg := server.Config{
		StaticDir: cfg.Server.StaticDir,
		Processor: application,
		Store:     st,
		Hub:       hub,
	}
	if srvCfg.StaticDir == "" {
		srvCfg.StaticDir = findWebDir()
	}
	if srvCfg.StaticDir != "" {
		fmt.Printf("Serving static files from: %s\n", srvCfg.StaticDir)
	}
	if cfg.Camera.Enabled {
		srvCfg.Frames = application
	}

	httpSrv := server.New(srvCfg).HTTPServer(cfg.Server.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if cfg.Camera.Enabled {
		if err := application.Start(); err != nil {
			log.Printf("Capture loop not started: %v", err)
		}
	}

	if cfg.Tray {
		t := tray.New()
		application.AddSink(t)
		t.OnToggle(application.SetEnabled)
		t.OnOpen(func() { openBrowser(statusURL(cfg.Server.Addr)) })
		t.OnQuit(stop)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine.
		t.Run()
	} else {
		<-ctx.Done()
	}

	log.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	application.Stop()
}

// resultSinks builds the sinks every frame result is published to. The
// journal and the websocket hub write to slow consumers, so they run behind
// their own queues.
func resultSinks(st *store.Store, keep int, hub *server.Hub) (sink.Multi, func()) {
	journal := sink.NewAsync(sink.NewJournal(st.Decisions(), keep), journalQueue)
	advisories := sink.NewAsync(hub, hubQueue)

	closeAll := func() {
		advisories.Close()
		journal.Close()
	}
	return sink.Multi{sink.NewLog(), journal, advisories}, closeAll
}

// statusURL turns a listen address into a browsable status URL.
func statusURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/status"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.signalwatch/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".signalwatch", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
