package api

import (
	"net/http"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/tracker"
)

// StatusHandler serves GET /api/status, the latest frame result.
type StatusHandler struct {
	proc Processor
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(proc Processor) *StatusHandler {
	return &StatusHandler{proc: proc}
}

type noDataResponse struct {
	Time     *string           `json:"time"`
	Advisory decision.Advisory `json:"advisory"`
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, ok := h.proc.LastResult()
	if !ok {
		writeJSON(w, http.StatusOK, noDataResponse{Advisory: decision.AdvisoryNoData})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TracksHandler serves GET /api/tracks, the live track snapshot.
type TracksHandler struct {
	proc Processor
}

// NewTracksHandler creates a new TracksHandler.
func NewTracksHandler(proc Processor) *TracksHandler {
	return &TracksHandler{proc: proc}
}

type tracksResponse struct {
	Tracks []tracker.Track `json:"tracks"`
}

// ServeHTTP implements the http.Handler interface.
func (h *TracksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tracks := h.proc.Tracks()
	if tracks == nil {
		tracks = []tracker.Track{}
	}
	writeJSON(w, http.StatusOK, tracksResponse{Tracks: tracks})
}
