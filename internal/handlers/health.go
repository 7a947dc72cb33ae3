package handlers

import (
	"net/http"
	"runtime"
	"time"

	"localfiles/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status     string `json:"status"`
	Ready      bool   `json:"ready"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	ScanState  string `json:"scanState"`
	Scanning   bool   `json:"scanning"`
	ScanPasses int    `json:"scanPasses"`
	LastScan   string `json:"lastScan,omitempty"`
	ScanError  string `json:"scanError,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// ready reports whether at least one scan pass has completed, in this
// process or a previous one.
func (h *Handlers) ready() bool {
	st := h.scanner.Status()
	return st.Passes > 0 || !st.LastPassAt.IsZero()
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	st := h.scanner.Status()
	ready := h.ready()

	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		ScanState:    st.State,
		Scanning:     st.Running,
		ScanPasses:   st.Passes,
		ScanError:    st.LastError,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !st.LastPassAt.IsZero() {
		response.LastScan = st.LastPassAt.Format(time.RFC3339)
	}

	switch {
	case !ready:
		response.Status = statusStarting
	case st.LastError != "":
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatusCode(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// HEAD gets headers only
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the first scan pass has completed
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready() {
		writeJSONStatus(w, http.StatusOK, "ready")
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
}
