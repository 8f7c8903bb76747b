// Package api serves the tracking engine over HTTP: group selection, the
// roster and its per-object geometry, the day/night terminator, and an
// event stream of group and roster changes.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orbtrack/internal/auth"
	"github.com/star/orbtrack/internal/geocode"
	"github.com/star/orbtrack/internal/geometry"
	"github.com/star/orbtrack/internal/groups"
	"github.com/star/orbtrack/internal/health"
	"github.com/star/orbtrack/internal/httputil"
	"github.com/star/orbtrack/internal/metrics"
	"github.com/star/orbtrack/internal/propagation"
	"github.com/star/orbtrack/internal/stream"
)

// Groups is the slice of the group pipeline the API needs.
// *groups.Pipeline implements it.
type Groups interface {
	Entries() []groups.Entry
	Entry(i int) (groups.Entry, error)
	Select(i int) error
	Deselect(i int) error
	Roster() ([]*propagation.Object, uint64)
	Resolve(ref groups.ObjectRef) (*propagation.Object, error)
	Subscribe(buffer int) (<-chan groups.Event, func())
}

// Config holds the server's settings.
type Config struct {
	Addr          string
	Auth          auth.Config
	TrustProxy    bool
	RatePerSecond float64 // per client IP; 0 disables limiting
	Burst         int
	Workers       int
	Station       *geometry.GroundStation // nil when no station is configured
	Geocoder      geocode.Geocoder        // nil disables object locations
	Stream        stream.Config
	ReadyChecks   []func() error
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	groups     Groups
	station    *geometry.GroundStation
	geocoder   geocode.Geocoder
	pool       *propagation.WorkerPool
	now        func() time.Time
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, grp Groups, logger *slog.Logger) *Server {
	s := &Server{
		logger:   logger,
		groups:   grp,
		station:  cfg.Station,
		geocoder: cfg.Geocoder,
		pool:     propagation.NewWorkerPool(cfg.Workers, logger),
		now:      time.Now,
	}

	streamCfg := cfg.Stream
	streamCfg.TrustProxy = cfg.TrustProxy
	streamHandler := stream.NewHandler(grp, s.pool, streamCfg, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(cfg.ReadyChecks...))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/groups", s.handleGroups)
	mux.HandleFunc("POST /api/v1/groups/{index}/select", s.handleSelect)
	mux.HandleFunc("POST /api/v1/groups/{index}/deselect", s.handleDeselect)

	mux.HandleFunc("GET /api/v1/objects", s.handleObjects)
	mux.HandleFunc("GET /api/v1/objects/{index}", s.handleObject)
	mux.HandleFunc("GET /api/v1/objects/{index}/ground-track", s.handleGroundTrack)
	mux.HandleFunc("GET /api/v1/objects/{index}/visibility", s.handleVisibility)
	mux.HandleFunc("GET /api/v1/objects/{index}/sky-track", s.handleSkyTrack)
	mux.HandleFunc("GET /api/v1/objects/{index}/passes", s.handlePasses)

	mux.HandleFunc("GET /api/v1/terminator", s.handleTerminator)
	mux.HandleFunc("GET /api/v1/stream", streamHandler.HandleStream)

	// Build middleware chain: metrics -> logging -> rate limit -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	if cfg.RatePerSecond > 0 {
		handler = rateLimitMiddleware(newClientLimiter(cfg.RatePerSecond, cfg.Burst), cfg.TrustProxy)(handler)
	}
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// healthPath returns true for health and readiness paths that should not log at INFO.
func healthPath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if healthPath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
