package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker checks the health of a dependency.
type Checker func(ctx context.Context) error

// Status represents the health status of a component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Response is the JSON body returned by the health endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single health check.
type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

type check struct {
	fn       Checker
	critical bool
}

// Handler serves liveness and readiness endpoints.
type Handler struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
}

// NewHandler creates a health handler with a 5s readiness timeout.
func NewHandler() *Handler {
	return &Handler{checks: make(map[string]check), timeout: 5 * time.Second}
}

// RegisterCritical adds a check whose failure makes the service not ready.
func (h *Handler) RegisterCritical(name string, fn Checker) {
	h.register(name, fn, true)
}

// RegisterNonCritical adds a check whose failure only degrades readiness.
func (h *Handler) RegisterNonCritical(name string, fn Checker) {
	h.register(name, fn, false)
}

func (h *Handler) register(name string, fn Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, critical: critical}
}

// LivenessHandler always reports up while the process is running.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Response{Status: StatusUp, Timestamp: time.Now().UTC()})
	}
}

// ReadinessHandler runs every check concurrently. Any failed critical check
// yields 503; failed non-critical checks yield 200 with status degraded.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		h.mu.RLock()
		checks := make(map[string]check, len(h.checks))
		for k, v := range h.checks {
			checks[k] = v
		}
		h.mu.RUnlock()

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]CheckResult, len(checks))
		)
		for name, c := range checks {
			wg.Add(1)
			go func(name string, c check) {
				defer wg.Done()
				res := CheckResult{Status: StatusUp, Critical: c.critical}
				if err := c.fn(ctx); err != nil {
					res.Status = StatusDown
					res.Error = err.Error()
				}
				mu.Lock()
				results[name] = res
				mu.Unlock()
			}(name, c)
		}
		wg.Wait()

		overall := StatusUp
		for _, res := range results {
			if res.Status != StatusDown {
				continue
			}
			if res.Critical {
				overall = StatusDown
				break
			}
			overall = StatusDegraded
		}

		status := http.StatusOK
		if overall == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, Response{Status: overall, Timestamp: time.Now().UTC(), Checks: results})
	}
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
