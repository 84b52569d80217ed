package web

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultPerfWindow = 15 * time.Minute
	defaultPerfTop    = 10
)

// handleHealthz reports liveness and database reachability.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "db": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAdminPerf returns request, query and upstream API timings.
// Query: window (Go duration, default 15m), top (default 10).
func (s *Server) handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Collector == nil {
		http.Error(w, "perf collection disabled", http.StatusNotFound)
		return
	}
	window := defaultPerfWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = d
	}
	top := defaultPerfTop
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid top", http.StatusBadRequest)
			return
		}
		top = n
	}
	writeJSON(w, http.StatusOK, s.deps.Collector.Snapshot(s.deps.Now().Add(-window), top))
}
