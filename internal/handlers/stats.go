package handlers

import (
	"net/http"

	"localfiles/internal/index"
	"localfiles/internal/indexer"
	"localfiles/internal/ingest"
	"localfiles/internal/logging"
	"localfiles/internal/query"
)

// topIDCount is how many ids /api/stats lists.
const topIDCount = 20

// StatsResponse is the /api/stats payload.
type StatsResponse struct {
	Index    index.Stats     `json:"index"`
	Scanner  indexer.Status  `json:"scanner"`
	Pipeline ingest.Stats    `json:"pipeline"`
	TopIDs   []query.IDCount `json:"topIds"`
}

// GetStats reports index contents, scanner state and pipeline progress.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.index.Stats(r.Context())
	if err != nil {
		logging.Error("Failed to collect index stats: %v", err)
		writeJSONError(w, "failed to collect stats", http.StatusInternalServerError)
		return
	}

	top, err := h.query.TopIDs(r.Context(), topIDCount)
	if err != nil {
		logging.Error("Failed to collect top ids: %v", err)
		writeJSONError(w, "failed to collect stats", http.StatusInternalServerError)
		return
	}

	writeJSONStatusCode(w, http.StatusOK, StatsResponse{
		Index:    stats,
		Scanner:  h.scanner.Status(),
		Pipeline: h.pipeline.Stats(),
		TopIDs:   top,
	})
}

// TriggerRescan starts a scan pass unless one is running.
func (h *Handlers) TriggerRescan(w http.ResponseWriter, _ *http.Request) {
	if !h.scanner.TriggerScan() {
		writeJSONStatus(w, http.StatusConflict, "already_running")
		return
	}
	logging.Info("Scan pass requested via API")
	writeJSONStatus(w, http.StatusAccepted, "started")
}
