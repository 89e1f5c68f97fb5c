// Package server provides the HTTP server for the signalwatch service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/signalwatch/internal/server/api"
	"github.com/ayusman/signalwatch/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	// Processor backs the frame, status and tracks endpoints.
	Processor api.Processor
	// Store backs the decisions endpoint.
	Store *store.Store
	// Hub serves the advisory websocket.
	Hub *Hub
	// Frames backs the MJPEG overlay stream.
	Frames FrameSource
}

// Server represents the HTTP server for the signalwatch service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers the endpoints whose dependencies are configured.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Processor != nil {
		s.mux.Handle("/api/frame", api.NewFrameHandler(s.config.Processor))
		s.mux.Handle("/api/status", api.NewStatusHandler(s.config.Processor))
		s.mux.Handle("/api/tracks", api.NewTracksHandler(s.config.Processor))
	}

	if s.config.Store != nil {
		s.mux.Handle("/api/decisions", api.NewDecisionsHandler(s.config.Store))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/advisories", s.config.Hub)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// HTTPServer returns an http.Server for addr, for callers that need
// graceful shutdown.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
