// Package server exposes learning-map sessions over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /api/maps/{subject}                      map header and visualization
//	GET  /api/maps/{subject}/visualization
//	GET  /api/maps/{subject}/stream               server-sent visualizations
//	POST /api/maps/{subject}/events               {"type": "selectQuestion", "id": "..."}
//	POST /api/maps/{subject}/questions            {"article_id": "...", "text": "..."}
//	POST /api/maps/{subject}/articles/{id}/retry
//	POST /api/maps/{subject}/measurements         {"sizes": {"<id>": {"width": 1, "height": 1}}}
//	POST /api/maps/{subject}/layout
package server

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/buildinfo"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/session"
)

// Options configures a Server.
type Options struct {
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string

	// Registry receives the server's metrics. A nil registry creates a
	// private one, which keeps tests independent.
	Registry *prometheus.Registry

	// Heartbeat is the interval between keep-alive comments on event
	// streams. Defaults to 15s.
	Heartbeat time.Duration

	Logger *log.Logger
}

// Server serves sessions from a Manager.
type Server struct {
	sessions  *session.Manager
	opts      Options
	log       *log.Logger
	metrics   *Metrics
	registry  *prometheus.Registry
	heartbeat time.Duration
}

// New creates a server and installs its Prometheus hooks.
func New(sessions *session.Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	s := &Server{
		sessions:  sessions,
		opts:      opts,
		log:       opts.Logger,
		metrics:   NewMetrics(opts.Registry),
		registry:  opts.Registry,
		heartbeat: opts.Heartbeat,
	}
	s.metrics.Install()
	return s
}

// Handler returns the HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Get()})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/maps/{subject}", func(r chi.Router) {
		r.Get("/", s.handleMap)
		r.Get("/visualization", s.handleVisualization)
		r.Get("/stream", s.handleStream)
		r.Post("/events", s.handleEvent)
		r.Post("/questions", s.handleQuestion)
		r.Post("/articles/{id}/retry", s.handleRetry)
		r.Post("/measurements", s.handleMeasurements)
		r.Post("/layout", s.handleLayout)
	})

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "Last-Event-ID"},
		MaxAge:         86400,
	}).Handler(r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and waits for background generations.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if goerrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.sessions.Wait()
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// statusFor maps error codes to HTTP statuses.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeValidation, errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict, errors.ErrCodeInvalidState:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)
	msg := errors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		if code == "" {
			code = errors.ErrCodeInternal
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
