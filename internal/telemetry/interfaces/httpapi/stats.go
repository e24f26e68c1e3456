package httpapi

import (
	"encoding/json"
	"net/http"

	"skytrack-cloud/internal/supervisor"
)

// StatsHandler serves the supervisor's counter snapshot.
type StatsHandler struct {
	gate *supervisor.Gate
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(gate *supervisor.Gate) *StatsHandler {
	return &StatsHandler{gate: gate}
}

// ServeHTTP handles GET /api/v1/stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.gate == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.gate.Stats())
}
