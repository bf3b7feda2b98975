package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
)

// HealthChecker is a named dependency check.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

var checkTimeout = 2 * time.Second

// HealthManager runs registered checkers for the health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	version  string
	checkers map[string]HealthChecker
}

// NewHealthManager returns a HealthManager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]HealthChecker),
	}
}

// RegisterChecker adds or replaces a named checker.
func (m *HealthManager) RegisterChecker(name string, c HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	checkers := make(map[string]HealthChecker, len(m.checkers))
	for k, v := range m.checkers {
		checkers[k] = v
	}
	m.mu.RUnlock()

	results := make(map[string]string, len(checkers))
	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	for name, c := range checkers {
		wg.Add(1)
		go func(name string, c HealthChecker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			status := "healthy"
			if err := c.CheckHealth(cctx); err != nil {
				status = "unhealthy"
				if cctx.Err() == context.DeadlineExceeded {
					status = "timeout"
				}
			}
			rmu.Lock()
			results[name] = status
			rmu.Unlock()
		}(name, c)
	}
	wg.Wait()
	return results
}

func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	overall := "healthy"
	for _, s := range checks {
		switch s {
		case "unhealthy":
			return "unhealthy"
		case "timeout":
			overall = "degraded"
		}
	}
	return overall
}

// HealthHandler runs every checker. It answers 503 when any is unhealthy.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks := m.runChecks(r.Context())
	status := m.determineOverallStatus(checks)
	if status == "unhealthy" {
		apperrors.WriteJSONError(w, http.StatusServiceUnavailable, apperrors.ErrorBody{
			Code:      apperrors.CodeServiceUnavailable,
			Message:   "one or more health checks failed",
			RequestID: r.Header.Get(apperrors.RequestIDHeader),
			Details:   map[string]any{"checks": checks},
		})
		return
	}
	m.write(w, status, checks)
}

// LivenessHandler reports that the process is serving.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	m.write(w, "healthy", nil)
}

// ReadinessHandler is HealthHandler.
func (m *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	m.HealthHandler(w, r)
}

// StartupHandler reports that startup has finished.
func (m *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	m.write(w, "healthy", nil)
}

func (m *HealthManager) write(w http.ResponseWriter, status string, checks map[string]string) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

var globalHealthManager *HealthManager

// InitHealthManager sets the process-wide HealthManager.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide HealthManager, or nil.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func withGlobal(fn func(*HealthManager, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := globalHealthManager
		if m == nil {
			apperrors.WriteJSONError(w, http.StatusServiceUnavailable, apperrors.ErrorBody{
				Code:    apperrors.CodeServiceUnavailable,
				Message: "health manager not initialized",
			})
			return
		}
		fn(m, w, r)
	}
}

var (
	// HealthHandler serves /health from the process-wide manager.
	HealthHandler = withGlobal((*HealthManager).HealthHandler)

	// LivenessHandler serves /health/live.
	LivenessHandler = withGlobal((*HealthManager).LivenessHandler)

	// ReadinessHandler serves /health/ready.
	ReadinessHandler = withGlobal((*HealthManager).ReadinessHandler)

	// StartupHandler serves /health/startup.
	StartupHandler = withGlobal((*HealthManager).StartupHandler)
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
