package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/store"
)

// DefaultDecisionLimit is how many journal records are returned without ?limit.
const DefaultDecisionLimit = 50

// DecisionsHandler serves GET /api/decisions from the journal.
type DecisionsHandler struct {
	store *store.Store
}

// NewDecisionsHandler creates a new DecisionsHandler with the given store.
func NewDecisionsHandler(s *store.Store) *DecisionsHandler {
	return &DecisionsHandler{store: s}
}

type decisionsResponse struct {
	Decisions []*store.DecisionRecord   `json:"decisions"`
	Counts    map[decision.Advisory]int `json:"counts"`
	Summary   *store.Summary            `json:"summary"`
}

// ServeHTTP implements the http.Handler interface.
func (h *DecisionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultDecisionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	repo := h.store.Decisions()
	records, err := repo.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list decisions")
		return
	}
	summary, err := repo.Summarize()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize decisions")
		return
	}

	writeJSON(w, http.StatusOK, decisionsResponse{
		Decisions: records,
		Counts:    summary.Counts,
		Summary:   summary,
	})
}
