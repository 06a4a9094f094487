package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jordanhubbard/convreview/internal/metrics"
	"github.com/jordanhubbard/convreview/internal/pipeline"
	"github.com/jordanhubbard/convreview/pkg/config"
	"github.com/jordanhubbard/convreview/pkg/models"
)

// BatchAnalyzer runs batch and baseline analysis. The pipeline runs them
// in-process; the Temporal manager runs them as workflows.
type BatchAnalyzer interface {
	AnalyzeBatch(ctx context.Context, req pipeline.BatchRequest) (*models.BatchResult, error)
	EnsureBaselineAnalysis(ctx context.Context, daysBack int) (*models.BatchResult, error)
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server
type Server struct {
	pipeline *pipeline.Pipeline
	batch    BatchAnalyzer
	config   *config.Config
	metrics  *metrics.Metrics
	checks   map[string]HealthCheck
}

// NewServer creates a new API server. batch may be nil, in which case
// batches run on the pipeline directly.
func NewServer(p *pipeline.Pipeline, batch BatchAnalyzer, cfg *config.Config) *Server {
	if batch == nil {
		batch = p
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Server{
		pipeline: p,
		batch:    batch,
		config:   cfg,
		checks:   make(map[string]HealthCheck),
	}
}

// SetMetrics enables request metrics and the /metrics endpoint.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// AddHealthCheck registers a dependency reported by /api/v1/health.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)

	// Analysis
	mux.HandleFunc("/api/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/v1/baseline", s.handleBaseline)
	mux.HandleFunc("/api/v1/analyses", s.handleAnalyses)
	mux.HandleFunc("/api/v1/analyses/", s.handleAnalysis)

	// Teaching
	mux.HandleFunc("/api/v1/teaching-dialogue", s.handleTeachingDialogue)

	// Learnings
	mux.HandleFunc("/api/v1/learnings", s.handleLearnings)
	mux.HandleFunc("/api/v1/learnings/", s.handleLearning)
	mux.HandleFunc("/api/v1/prompt-suggestions", s.handlePromptSuggestions)

	if s.metrics != nil {
		mux.Handle("/metrics", promhttp.Handler())
	}

	// Apply middleware
	handler := s.loggingMiddleware(mux)
	handler = s.corsMiddleware(handler)
	handler = s.authMiddleware(handler)

	return otelhttp.NewHandler(handler, "convreview-api")
}

// Middleware

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs HTTP requests and records their latency
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if r.URL.Path != "/api/v1/health" && r.URL.Path != "/metrics" {
			log.Printf("[API] %s %s %d %v", r.Method, r.URL.Path, rec.status, elapsed.Round(time.Millisecond))
		}
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status), elapsed.Seconds())
		}
	})
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.config.Security.AllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.config.Security.AllowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the X-API-Key header when auth is enabled
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		// Auth enabled without keys is treated as disabled.
		if !s.config.Security.EnableAuth || len(s.config.Security.APIKeys) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			s.respondError(w, http.StatusUnauthorized, "Missing API key")
			return
		}
		for _, key := range s.config.Security.APIKeys {
			if key == apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}
		s.respondError(w, http.StatusUnauthorized, "Invalid API key")
	})
}

// Helper functions

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a pipeline error to its status and writes it.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	status, retryable := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] Internal error: %v", err)
	}
	body := map[string]interface{}{"error": err.Error()}
	if retryable {
		body["retryable"] = true
	}
	s.respondJSON(w, status, body)
}

// parseJSON parses a JSON request body. An empty body leaves v untouched.
func (s *Server) parseJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// requireMethod writes 405 and returns false when r uses another method.
func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		s.respondServiceError(w, ErrMethodNotAllowed)
		return false
	}
	return true
}

// splitPath returns the segments after prefix, e.g. ["abc", "agree"].
func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// routeLabel collapses IDs so request metrics stay low-cardinality.
func routeLabel(path string) string {
	for _, prefix := range []string{"/api/v1/analyses/", "/api/v1/learnings/"} {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		parts := splitPath(path, prefix)
		if len(parts) == 0 {
			return prefix
		}
		parts[0] = "{id}"
		return prefix + strings.Join(parts, "/")
	}
	return path
}
