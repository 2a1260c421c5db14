package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthChecker serves /healthz and /readyz. Readiness requires the process
// to have been marked ready and every registered dependency check to pass.
type HealthChecker struct {
	ready        atomic.Bool
	startTime    time.Time
	checkTimeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		startTime:    time.Now(),
		checkTimeout: 2 * time.Second,
		checks:       make(map[string]CheckFunc),
	}
}

// AddCheck registers a readiness probe under name, replacing any previous one.
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// LivenessHandler answers 200 while the process is running.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// ReadinessHandler answers 200 when ready and every check passes, 503
// otherwise. The body lists each failing check.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	failures := h.runChecks(r.Context())

	status := "ready"
	code := http.StatusOK
	switch {
	case !h.ready.Load():
		status, code = "not_ready", http.StatusServiceUnavailable
	case len(failures) > 0:
		status, code = "degraded", http.StatusServiceUnavailable
	}

	body := map[string]interface{}{"status": status}
	if len(failures) > 0 {
		body["failures"] = failures
	}
	writeJSON(w, code, body)
}

func (h *HealthChecker) runChecks(ctx context.Context) map[string]string {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]CheckFunc, len(names))
	for i, name := range names {
		checks[i] = h.checks[name]
	}
	h.mu.RUnlock()

	var failures map[string]string
	for i, fn := range checks {
		cctx, cancel := context.WithTimeout(ctx, h.checkTimeout)
		err := fn(cctx)
		cancel()
		if err != nil {
			if failures == nil {
				failures = make(map[string]string)
			}
			failures[names[i]] = err.Error()
		}
	}
	return failures
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
