package api

import (
	"net/http"

	"github.com/ayusman/bluescan/internal/app"
	"github.com/ayusman/bluescan/internal/detector"
	"github.com/ayusman/bluescan/internal/store"
)

// StatsHandler reports and resets detection statistics.
type StatsHandler struct {
	app *app.App
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(a *app.App) *StatsHandler {
	return &StatsHandler{app: a}
}

type statsResponse struct {
	detector.Stats
	AvgLatencyMS float64        `json:"avg_latency_ms"`
	P95LatencyMS float64        `json:"p95_latency_ms"`
	History      *store.Summary `json:"history,omitempty"`
}

// ServeHTTP handles GET and DELETE /api/stats. DELETE resets the in-memory
// counters; with ?history=true it also clears the recorded history.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodDelete:
		h.reset(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *StatsHandler) get(w http.ResponseWriter) {
	stats := h.app.Statistics()
	response := statsResponse{
		Stats:        stats,
		AvgLatencyMS: float64(stats.AvgLatency.Microseconds()) / 1000,
		P95LatencyMS: float64(stats.P95Latency.Microseconds()) / 1000,
	}

	if repo := h.app.History(); repo != nil {
		summary, err := repo.Summary()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to summarize history")
			return
		}
		response.History = summary
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *StatsHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.app.ResetStatistics()

	if r.URL.Query().Get("history") == "true" {
		if repo := h.app.History(); repo != nil {
			if _, err := repo.DeleteAll(); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to clear history")
				return
			}
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
