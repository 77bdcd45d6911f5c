// Package server exposes the pipeline over HTTP: runs are created from
// observation snapshots, listed, compared for drift, and streamed as
// WebSocket events.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raysh454/tagscope/internal/app"
	"github.com/raysh454/tagscope/internal/interfaces"
	"github.com/raysh454/tagscope/internal/logging"
)

// Server is the HTTP + WebSocket API surface.
type Server struct {
	cfg      Config
	pipeline *app.Pipeline
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
	metrics  *metrics
}

// NewServer creates a Server with its own Pipeline.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	var runStore interfaces.RunStore
	if cfg.Persist {
		var err error
		runStore, err = app.OpenStore(cfg.AppConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("opening run store: %w", err)
		}
	}

	pipeline, err := app.NewPipeline(cfg.AppConfig, runStore, logger)
	if err != nil {
		if runStore != nil {
			runStore.Close()
		}
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		router:   r,
		logger:   logger,
		metrics:  newMetrics(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
	}

	s.routes()
	return s, nil
}

// Pipeline returns the underlying pipeline for advanced use (tests, etc.).
func (s *Server) Pipeline() *app.Pipeline {
	return s.pipeline
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/api/runs", s.optionsHandler("GET, POST"))
	r.Options("/api/runs/{runID}", s.optionsHandler("GET"))
	r.Options("/api/runs/{runID}/drift", s.optionsHandler("GET"))

	// Runs
	r.Post("/api/runs", s.handleCreateRun)
	r.Get("/api/runs", s.handleListRuns)
	r.Get("/api/runs/{runID}", s.handleGetRun)
	r.Get("/api/runs/{runID}/drift", s.handleDrift)

	// WebSocket stream of run completions
	r.Get("/ws/events", s.handleEventsWS)

	// Prometheus
	r.Get("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}).ServeHTTP)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && r.Method == http.MethodPost {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body_bytes", Value: len(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the pipeline and underlying resources.
func (s *Server) Close() {
	if s.pipeline != nil {
		s.pipeline.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var body CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Observation == nil || body.Observation.URL == "" {
		writeError(w, http.StatusBadRequest, "observation with a url is required")
		return
	}

	loaded := s.pipeline.LoadInlineRules(body.Rules)

	s.metrics.runsTotal.Inc()
	started := time.Now()
	run, err := s.pipeline.Run(r.Context(), body.Observation, loaded.Rules, body.Environment)
	if err != nil {
		s.metrics.runFailures.Inc()
		s.logger.Warn("running pipeline", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.runDuration.Observe(time.Since(started).Seconds())
	s.metrics.tagsFound.Observe(float64(run.TagCount))

	s.logger.Info("created run",
		logging.Field{Key: "run_id", Value: run.ID},
		logging.Field{Key: "url", Value: run.URL},
		logging.Field{Key: "tags", Value: run.TagCount})
	writeJSON(w, http.StatusCreated, CreateRunResponse{Run: run, RuleErrors: loaded.Errors})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	runs, err := s.pipeline.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Warn("listing runs", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("listed runs", logging.Field{Key: "count", Value: len(runs)})
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.pipeline.GetRun(r.Context(), runID)
	if err != nil {
		s.logger.Warn("getting run", logging.Field{Key: "run_id", Value: runID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	against := r.URL.Query().Get("against")
	if against == "" {
		writeError(w, http.StatusBadRequest, "missing against query parameter")
		return
	}

	drift, err := s.pipeline.Drift(r.Context(), runID, against)
	if err != nil {
		s.logger.Warn("computing drift",
			logging.Field{Key: "run_id", Value: runID},
			logging.Field{Key: "against", Value: against},
			logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, drift)
}

// WebSockets

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	subID, events := s.pipeline.Subscribe()
	defer s.pipeline.Unsubscribe(subID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				// Assume client disconnected.
				return
			}
		}
	}
}
