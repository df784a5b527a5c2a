package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health status of the service.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// CheckFunc probes one dependency (session store, flight API, ...).
type CheckFunc func(ctx context.Context) error

// HealthChecker runs registered dependency checks on demand.
type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	start  time.Time
}

// NewHealthChecker creates an empty health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]CheckFunc),
		start:  time.Now(),
	}
}

// RegisterCheck adds a named dependency check.
func (h *HealthChecker) RegisterCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// HealthResponse is the JSON body returned by the health endpoint.
type HealthResponse struct {
	Status    HealthStatus      `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	UptimeSec int64             `json:"uptime_seconds"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Handler returns an HTTP handler reporting overall health. Each registered
// check runs with a bounded timeout; any failure makes the service unhealthy.
func (h *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		h.mu.RLock()
		checks := make(map[string]CheckFunc, len(h.checks))
		for name, fn := range h.checks {
			checks[name] = fn
		}
		h.mu.RUnlock()

		resp := HealthResponse{
			Status:    HealthStatusHealthy,
			Timestamp: time.Now().UTC(),
			UptimeSec: int64(time.Since(h.start).Seconds()),
			Checks:    make(map[string]string, len(checks)),
		}

		for name, fn := range checks {
			if err := fn(ctx); err != nil {
				resp.Status = HealthStatusUnhealthy
				resp.Checks[name] = err.Error()
			} else {
				resp.Checks[name] = "ok"
			}
		}

		code := http.StatusOK
		if resp.Status != HealthStatusHealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// LivenessHandler reports that the process is up, without probing dependencies.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}
