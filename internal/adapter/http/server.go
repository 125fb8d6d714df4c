package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renewgrid/sitescout/internal/domain"
	"github.com/renewgrid/sitescout/internal/observability"
)

// SurveyService runs region surveys and legacy point estimates.
type SurveyService interface {
	Survey(ctx context.Context, req domain.SurveyRequest) (*domain.SurveyReport, error)
	EstimatePoint(ctx context.Context, q domain.PointQuery) (domain.PointEstimate, error)
}

// Pinger probes the raster engine.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ResultPublisher mirrors survey outcomes to the result topic.
type ResultPublisher interface {
	PublishResults(ctx context.Context, results []domain.SurveyResult) error
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the survey API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *observability.Metrics
	service    SurveyService
	engine     Pinger
	events     ResultPublisher // nil disables result publication

	// engineReached flips once any engine call has succeeded; readiness
	// reports ready from then on without re-probing.
	engineReached atomic.Bool
}

// NewServer creates the API server. events may be nil, in which case survey
// results are not mirrored to Kafka.
func NewServer(addr string, service SurveyService, engine Pinger, events ResultPublisher, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: newHTTPServer(addr, mux),
		logger:     logger,
		metrics:    metrics,
		service:    service,
		engine:     engine,
		events:     events,
	}

	mux.HandleFunc("POST /get_optimal_location", s.handleSurvey)
	mux.HandleFunc("POST /get_optimal_locations", s.handleLegacyPoint)
	mux.HandleFunc("GET /health", s.handleEngineHealth)
	mux.HandleFunc("GET /healthz", handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleAPIReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/", handleNotFound)

	return s
}

// NewOpsServer creates a server with only the operational endpoints. The
// survey worker uses it; the worker's traffic comes from Kafka, not HTTP.
func NewOpsServer(addr string, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: newHTTPServer(addr, mux),
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", handleLiveness)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/", handleNotFound)

	return s
}

func newHTTPServer(addr string, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 150 * time.Second, // surveys can run for minutes
		IdleTimeout:  60 * time.Second,
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleAPIReady reports ready once the engine has answered any call. Until
// then each probe pings the engine directly.
func (s *Server) handleAPIReady(w http.ResponseWriter, r *http.Request) {
	if s.engineReached.Load() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.engine.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	s.engineReached.Store(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "endpoint not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
