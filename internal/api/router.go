package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pm2-watchdog/internal/watchdog"
)

// componentCheckTimeout bounds each component check on /health.
const componentCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports "ok", or "degraded" when an optional transport is down.
// The endpoint itself always answers 200; the watchdog keeps running
// without its optional channels.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}

	if len(s.components) > 0 {
		resp.Components = make(map[string]string, len(s.components))

		names := make([]string, 0, len(s.components))
		for name := range s.components {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
			err := s.components[name].HealthCheck(ctx)
			cancel()

			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version              string                      `json:"version"`
	Processes            []watchdog.MonitoredProcess `json:"processes"`
	MaxRestarts          int                         `json:"max_restarts"`
	ThresholdPolicy      string                      `json:"threshold_policy"`
	CheckIntervalMinutes int                         `json:"check_interval_minutes"`
	Cycles               int64                       `json:"cycles"`
	DroppedTicks         int64                       `json:"dropped_ticks"`
	LastCycle            *watchdog.CycleSummary      `json:"last_cycle,omitempty"`
}

// monitoredProcesses lists the configured processes in check order.
func (s *Server) monitoredProcesses() []watchdog.MonitoredProcess {
	if s.processes != nil {
		return s.processes.Processes()
	}

	procs := make([]watchdog.MonitoredProcess, 0, len(s.monitor.Processes))
	for _, name := range s.monitor.Processes {
		procs = append(procs, watchdog.MonitoredProcess{Name: name})
	}
	return procs
}

// handleStatus returns the monitor settings and the last cycle's results.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Snapshot()

	writeJSON(w, http.StatusOK, StatusResponse{
		Version:              s.version,
		Processes:            s.monitoredProcesses(),
		MaxRestarts:          s.monitor.MaxRestarts,
		ThresholdPolicy:      s.monitor.ThresholdPolicy,
		CheckIntervalMinutes: s.monitor.CheckIntervalMinutes,
		Cycles:               snap.Cycles,
		DroppedTicks:         snap.DroppedTicks,
		LastCycle:            snap.LastCycle,
	})
}
