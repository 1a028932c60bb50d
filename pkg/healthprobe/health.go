package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// HealthChecker provides liveness and readiness handlers.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
	}
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

type probeResponse struct {
	Status   string `json:"status"`
	UptimeMs int64  `json:"uptimeMs"`
	Message  string `json:"message,omitempty"`
}

func writeProbe(w http.ResponseWriter, code int, resp probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Health returns the liveness handler. 200 whenever the process is up.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, http.StatusOK, probeResponse{
			Status:   "healthy",
			UptimeMs: time.Since(h.startTime).Milliseconds(),
		})
	}
}

// Ready returns the readiness handler. 503 until SetReady(true).
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			writeProbe(w, http.StatusServiceUnavailable, probeResponse{
				Status:  "not_ready",
				Message: "application is starting",
			})
			return
		}

		writeProbe(w, http.StatusOK, probeResponse{
			Status:   "ready",
			UptimeMs: time.Since(h.startTime).Milliseconds(),
		})
	}
}
