// Package webui provides the HTTP dashboard for monitoring tool calls,
// breaker state, and workflow runs.
package webui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"toolflow/pkg/logx"
	"toolflow/pkg/persistence"
	"toolflow/pkg/tool/circuit"
	"toolflow/pkg/tool/metrics"
	"toolflow/pkg/version"
)

// Server represents the dashboard HTTP server.
type Server struct {
	broker   *Broker
	stats    *metrics.Registry
	breakers *circuit.Registry
	store    *persistence.Store
	gatherer prometheus.Gatherer
	logger   *logx.Logger
}

// NewServer creates a dashboard server. store and gatherer may be nil;
// their endpoints then report unavailable.
func NewServer(broker *Broker, stats *metrics.Registry, breakers *circuit.Registry, store *persistence.Store, gatherer prometheus.Gatherer) *Server {
	return &Server{
		broker:   broker,
		stats:    stats,
		breakers: breakers,
		store:    store,
		gatherer: gatherer,
		logger:   logx.NewLogger("webui"),
	}
}

// RegisterRoutes sets up HTTP routes for the API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/tools", s.handleTools)
	mux.HandleFunc("/api/breakers", s.handleBreakers)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/healthz", s.handleHealth)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// handleEvents implements GET /api/events as a server-sent event stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.broker.Subscribe()
	defer cancel()

	s.logger.Debug("SSE subscriber connected from %s", r.RemoteAddr)

	// Keepalive comments stop idle proxies from dropping the stream.
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("Failed to encode event: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

// handleTools implements GET /api/tools.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.stats.Snapshot())
}

// handleBreakers implements GET /api/breakers.
func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.breakers.Snapshots())
}

// handleRuns implements GET /api/runs.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "Run history not available", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.logger.Error("Failed to list runs: %v", err)
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, runs)
}

// handleRun implements GET /api/runs/{id} with per-entity outcomes.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "Run history not available", http.StatusServiceUnavailable)
		return
	}

	id := r.URL.Path[len("/api/runs/"):]
	if id == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	run, err := s.store.GetRun(id)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	outcomes, err := s.store.ListOutcomes(id)
	if err != nil {
		s.logger.Error("Failed to list outcomes for run %s: %v", id, err)
		http.Error(w, "Failed to list outcomes", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]any{
		"run":      run,
		"outcomes": outcomes,
	})
}

// handleLogs implements GET /api/logs with optional component and since filters.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	component := r.URL.Query().Get("component")
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "Invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = t
	}

	s.writeJSON(w, logx.RecentEntries(component, since))
}

// handleHealth implements GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
